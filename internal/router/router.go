package router

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/pishro-capital/ledger-core/internal/auth"
	"github.com/pishro-capital/ledger-core/internal/ledger"
	ledgerrepo "github.com/pishro-capital/ledger-core/internal/ledger/repo"
	"github.com/pishro-capital/ledger-core/internal/notify"
	"github.com/pishro-capital/ledger-core/internal/user"
	userrepo "github.com/pishro-capital/ledger-core/internal/user/repo"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps carries the constructed services for route registration. Build wires
// them from a database handle; tests may assemble Deps around fakes.
type Deps struct {
	Users         *user.Handler
	Ledger        *ledger.Handler
	LedgerService *ledger.Service
	UserService   *user.Service
	Reporter      *ledger.Reporter
}

// Build constructs repositories, services, and handlers from a database
// handle. The notifier is optional; pass nil to disable notifications.
func Build(db *sqlx.DB, notifier notify.Notifier, logger *zap.SugaredLogger) Deps {
	userSvc := user.NewService(userrepo.NewUserRepo(db), logger)
	ledgerSvc := ledger.NewService(
		ledgerrepo.NewInvestmentRepo(db),
		ledgerrepo.NewTransactionRepo(db),
		ledgerrepo.NewValuationRepo(db),
		notifier,
		logger,
	)
	reporter := ledger.NewReporter(ledgerSvc, logger)
	return Deps{
		Users:         user.NewHandler(userSvc, logger),
		Ledger:        ledger.NewHandler(ledgerSvc, reporter, logger),
		LedgerService: ledgerSvc,
		UserService:   userSvc,
		Reporter:      reporter,
	}
}

// EnsureSchema creates the tables if they do not exist. Users first; the
// ledger tables reference them.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if err := userrepo.NewUserRepo(db).EnsureTable(ctx); err != nil {
		return err
	}
	if err := ledgerrepo.NewInvestmentRepo(db).EnsureTable(ctx); err != nil {
		return err
	}
	if err := ledgerrepo.NewTransactionRepo(db).EnsureTable(ctx); err != nil {
		return err
	}
	return ledgerrepo.NewValuationRepo(db).EnsureTable(ctx)
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(deps Deps, authCfg auth.Config, logger *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()

	// health, outside the auth gate
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	authed := http.NewServeMux()

	// users
	authed.HandleFunc("GET /api/v1/users", deps.Users.List)
	authed.HandleFunc("POST /api/v1/users", deps.Users.Register)
	authed.HandleFunc("GET /api/v1/users/{id}", deps.Users.Get)
	authed.HandleFunc("POST /api/v1/users/{id}/verify", deps.Users.Verify)
	authed.HandleFunc("PUT /api/v1/users/{id}/role", deps.Users.UpdateRole)
	authed.HandleFunc("GET /api/v1/users/telegram/{telegram_id}", deps.Users.GetByTelegram)
	authed.HandleFunc("GET /api/v1/users/phone/{phone}", deps.Users.GetByPhone)

	// investments and their ledgers
	authed.HandleFunc("GET /api/v1/investments", deps.Ledger.ListInvestments)
	authed.HandleFunc("POST /api/v1/investments", deps.Ledger.CreateInvestment)
	authed.HandleFunc("GET /api/v1/investments/{id}", deps.Ledger.GetInvestment)
	authed.HandleFunc("PUT /api/v1/investments/{id}/status", deps.Ledger.UpdateInvestmentStatus)
	authed.HandleFunc("GET /api/v1/investments/{id}/summary", deps.Ledger.PortfolioSummary)
	authed.HandleFunc("GET /api/v1/investments/{id}/balance", deps.Ledger.BalanceAsOf)
	authed.HandleFunc("GET /api/v1/investments/{id}/transactions", deps.Ledger.TransactionHistory)
	authed.HandleFunc("POST /api/v1/investments/{id}/transactions", deps.Ledger.RecordTransaction)
	authed.HandleFunc("GET /api/v1/investments/{id}/valuations", deps.Ledger.ValuationHistory)
	authed.HandleFunc("POST /api/v1/investments/{id}/valuations", deps.Ledger.RecordValuation)

	// reports
	authed.HandleFunc("GET /api/v1/reports/overview", deps.Ledger.Overview)
	authed.HandleFunc("GET /api/v1/reports/users/{id}", deps.Ledger.UserReport)

	mux.Handle("/api/v1/", auth.Middleware(authCfg, logger)(authed))

	// wrap with security headers middleware then logging middleware
	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
}

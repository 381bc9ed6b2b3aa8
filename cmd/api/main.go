package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/pishro-capital/ledger-core/internal/auth"
	"github.com/pishro-capital/ledger-core/internal/notify"
	"github.com/pishro-capital/ledger-core/internal/router"
	"github.com/pishro-capital/ledger-core/pkg/database"
	"github.com/pishro-capital/ledger-core/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting ledger-core api")

	// init db
	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	// wrap with sqlx for convenience in repos/services
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")
	defer sqlxDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := router.EnsureSchema(ctx, sqlxDB); err != nil {
		sugar.Fatalf("schema: %v", err)
	}

	// when a bot token is configured, recording through the API also pings
	// the investor's chat
	var notifier notify.Notifier
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		api, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			sugar.Fatalf("telegram: %v", err)
		}
		base := router.Build(sqlxDB, nil, sugar)
		notifier = notify.NewTelegram(api, base.UserService, sugar)
	}
	deps := router.Build(sqlxDB, notifier, sugar)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}

	handler := router.RegisterRoutes(deps, auth.ConfigFromEnv(), sugar)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	sugar.Infow("service is running; press Ctrl+C to stop", "addr", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

// Package auth is the transport-side authentication gate for the REST API.
//
// The ledger core itself performs no authentication or authorization; it
// only records the acting user ID carried on every mutating call. This
// package is where that ID enters: a verified bearer credential resolves to
// an actor ID stored on the request context.
package auth

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type contextKey struct{}

var actorKey contextKey

// WithActor returns a context carrying the acting user's ID.
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// ActorFrom returns the acting user's ID from the context, if present.
func ActorFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey).(int64)
	return id, ok
}

// Config controls the middleware. Two credentials are accepted:
//
//   - a JWT signed HS256 with Secret, whose "sub" claim is the acting user ID;
//   - the static service token whose bcrypt hash is ServiceTokenHash, in
//     which case the actor comes from the X-Actor-ID header (machine
//     integrations acting on behalf of a known back-office user).
//
// Disabled skips the gate entirely; the actor then comes from X-Actor-ID
// alone. Development only.
type Config struct {
	Secret           string
	ServiceTokenHash string
	Disabled         bool
}

// ConfigFromEnv reads the auth config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Secret:           os.Getenv("JWT_SECRET"),
		ServiceTokenHash: os.Getenv("SERVICE_TOKEN_HASH"),
		Disabled:         os.Getenv("AUTH_DISABLED") == "1",
	}
}

// Middleware returns a middleware enforcing the configured gate.
func Middleware(cfg Config, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Disabled {
				next.ServeHTTP(w, r.WithContext(withHeaderActor(r)))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			if cfg.Secret != "" {
				if actor, err := actorFromJWT(token, cfg.Secret); err == nil {
					next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
					return
				} else {
					logger.Debugw("jwt rejected", "err", err)
				}
			}
			if cfg.ServiceTokenHash != "" {
				if bcrypt.CompareHashAndPassword([]byte(cfg.ServiceTokenHash), []byte(token)) == nil {
					next.ServeHTTP(w, r.WithContext(withHeaderActor(r)))
					return
				}
			}
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// actorFromJWT verifies the HS256 signature and extracts the subject claim.
func actorFromJWT(token, secret string) (int64, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(sub, 10, 64)
}

func withHeaderActor(r *http.Request) context.Context {
	if v := r.Header.Get("X-Actor-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return WithActor(r.Context(), id)
		}
	}
	return r.Context()
}

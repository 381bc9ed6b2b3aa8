package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func signToken(t *testing.T, secret, sub string, method jwt.SigningMethod) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func gated(cfg Config) (http.Handler, *int64) {
	var seen int64
	h := Middleware(cfg, zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seen
}

func TestMiddlewareJWT(t *testing.T) {
	const secret = "test-secret"
	h, seen := gated(Config{Secret: secret})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "42", jwt.SigningMethodHS256))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rec.Code)
	}
	if *seen != 42 {
		t.Fatalf("actor=%d want 42 from the sub claim", *seen)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	const secret = "test-secret"
	h, _ := gated(Config{Secret: secret})

	cases := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no header", func(r *http.Request) {}},
		{"not bearer", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "42", jwt.SigningMethodHS256))
		}},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer not.a.jwt") }},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c.setup(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status=%d want 401", c.name, rec.Code)
		}
	}
}

func TestMiddlewareServiceToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("svc-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h, seen := gated(Config{ServiceTokenHash: string(hash)})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer svc-token")
	req.Header.Set("X-Actor-ID", "7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rec.Code)
	}
	if *seen != 7 {
		t.Fatalf("actor=%d want 7 from the header", *seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong service token: status=%d want 401", rec.Code)
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h, seen := gated(Config{Disabled: true})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Actor-ID", "9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rec.Code)
	}
	if *seen != 9 {
		t.Fatalf("actor=%d want 9", *seen)
	}
}

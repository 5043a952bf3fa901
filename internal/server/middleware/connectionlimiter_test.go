package middleware_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
	"github.com/TimyBen/cloud-file-management-system/internal/server/middleware"
	"github.com/TimyBen/cloud-file-management-system/pkg/config"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// actorSetter stands in for the auth middleware: it fills the metadata's
// actor the way NewAuthMiddleware does after validating a token.
func actorSetter(userID string) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
			reqMeta.Actor = domain.Actor{ID: userID, Role: domain.GlobalRoleUser}
			next.ServeHTTP(w, r)
		})
	}
}

func limiterChain(userID string, counter middleware.UserConnectionCounter, cycler middleware.UserConnectionCycler, cfg config.ConnectionLimitConfig) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return middleware.Chain(final,
		middleware.RequestMetadataMiddleware(),
		actorSetter(userID),
		middleware.NewConnectionLimiter(newTestLogger(), counter, cycler, cfg),
	)
}

func doRequest(h http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	return rec
}

func TestLimiterRejectMode(t *testing.T) {
	cfg := config.ConnectionLimitConfig{MaxPerUser: 2, Mode: "reject"}

	connections := 0
	counter := func(userID string) int { return connections }
	cycler := func(userID string) { t.Errorf("cycler called in reject mode for %s", userID) }
	h := limiterChain("alice", counter, cycler, cfg)

	// under the limit the request passes
	if rec := doRequest(h); rec.Code != http.StatusOK {
		t.Fatalf("under limit status = %d, want 200", rec.Code)
	}

	// at the limit it is turned away
	connections = 2
	if rec := doRequest(h); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("at limit status = %d, want 429", rec.Code)
	}
}

func TestLimiterCycleModeClosesOldest(t *testing.T) {
	cfg := config.ConnectionLimitConfig{MaxPerUser: 1, Mode: "cycle"}

	var cycled []string
	counter := func(userID string) int { return 1 }
	cycler := func(userID string) { cycled = append(cycled, userID) }
	h := limiterChain("alice", counter, cycler, cfg)

	rec := doRequest(h)
	if rec.Code != http.StatusOK {
		t.Fatalf("cycle mode status = %d, want 200 (new connection admitted)", rec.Code)
	}
	if len(cycled) != 1 || cycled[0] != "alice" {
		t.Errorf("cycler calls = %v, want exactly one for alice", cycled)
	}
}

func TestLimiterDisabledWhenZero(t *testing.T) {
	cfg := config.ConnectionLimitConfig{MaxPerUser: 0, Mode: "reject"}

	counter := func(userID string) int { return 1000 }
	h := limiterChain("alice", counter, nil, cfg)

	if rec := doRequest(h); rec.Code != http.StatusOK {
		t.Errorf("disabled limiter status = %d, want 200", rec.Code)
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aman-churiwal/admission-gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type unavailableStore struct{}

func (unavailableStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, ratelimit.ErrStoreUnavailable
}

func newTestRouter(t *testing.T, reg *ratelimit.Registry, class ratelimit.RouteClass) *gin.Engine {
	t.Helper()

	router := gin.New()
	router.GET("/resource", RateLimit(reg, class), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return router
}

func doRequest(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.RemoteAddr = remoteAddr

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestRateLimit_HeadersOnAllow(t *testing.T) {
	store := ratelimit.NewLocalWindowStore()
	p, err := ratelimit.NewPolicy(ratelimit.PolicyConfig{
		ID:          "general",
		Window:      time.Minute,
		MaxRequests: 5,
	}, store, nil)
	if err != nil {
		t.Fatalf("failed to create policy: %v", err)
	}

	reg := ratelimit.NewRegistry()
	reg.Register(ratelimit.ClassGeneral, p)

	router := newTestRouter(t, reg, ratelimit.ClassGeneral)

	w := doRequest(router, "203.0.113.50:42000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("expected limit header 5, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Fatalf("expected remaining header 4, got %q", got)
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatalf("expected reset header to be set")
	}
	if w.Header().Get("Retry-After") != "" {
		t.Fatalf("did not expect Retry-After on an allowed request")
	}
}

func TestRateLimit_DenialContract(t *testing.T) {
	store := ratelimit.NewLocalWindowStore()
	p, err := ratelimit.NewPolicy(ratelimit.PolicyConfig{
		ID:          "general",
		Window:      time.Minute,
		MaxRequests: 2,
	}, store, nil)
	if err != nil {
		t.Fatalf("failed to create policy: %v", err)
	}

	reg := ratelimit.NewRegistry()
	reg.Register(ratelimit.ClassGeneral, p)

	router := newTestRouter(t, reg, ratelimit.ClassGeneral)

	doRequest(router, "203.0.113.51:42000")
	doRequest(router, "203.0.113.51:42000")

	w := doRequest(router, "203.0.113.51:42000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on denial")
	}

	var body struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retry_after"`
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "rate_limit_exceeded" {
		t.Fatalf("unexpected error field %q", body.Error)
	}
	if body.RetryAfter <= 0 || body.RetryAfter > 60 {
		t.Fatalf("expected retry_after in (0, 60], got %d", body.RetryAfter)
	}
	if body.Suggestion == "" {
		t.Fatalf("expected a suggestion for anonymous denials")
	}

	// Other clients are unaffected
	if w := doRequest(router, "203.0.113.52:42000"); w.Code != http.StatusOK {
		t.Fatalf("expected other client to be allowed, got %d", w.Code)
	}
}

func TestRateLimit_FailClosedBodyIsGeneric(t *testing.T) {
	p, err := ratelimit.NewPolicy(ratelimit.PolicyConfig{
		ID:          "auth",
		Window:      time.Minute,
		MaxRequests: 10,
		FailMode:    ratelimit.FailClosed,
	}, unavailableStore{}, nil)
	if err != nil {
		t.Fatalf("failed to create policy: %v", err)
	}

	reg := ratelimit.NewRegistry()
	reg.Register(ratelimit.ClassAuth, p)

	router := newTestRouter(t, reg, ratelimit.ClassAuth)

	w := doRequest(router, "203.0.113.53:42000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on fail-closed store outage, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["message"] != "Service busy, try again" {
		t.Fatalf("expected the generic busy message, got %v", body["message"])
	}
}

func TestRateLimit_FailOpenNeverErrors(t *testing.T) {
	p, err := ratelimit.NewPolicy(ratelimit.PolicyConfig{
		ID:          "general",
		Window:      time.Minute,
		MaxRequests: 10,
		FailMode:    ratelimit.FailOpen,
	}, unavailableStore{}, nil)
	if err != nil {
		t.Fatalf("failed to create policy: %v", err)
	}

	reg := ratelimit.NewRegistry()
	reg.Register(ratelimit.ClassGeneral, p)

	router := newTestRouter(t, reg, ratelimit.ClassGeneral)

	w := doRequest(router, "203.0.113.54:42000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected fail-open request to proceed, got %d", w.Code)
	}
}

func TestRateLimit_BypassEmitsNoHeaders(t *testing.T) {
	store := ratelimit.NewLocalWindowStore()
	p, err := ratelimit.NewPolicy(ratelimit.PolicyConfig{
		ID:          "general",
		Window:      time.Minute,
		MaxRequests: 1,
	}, store, nil)
	if err != nil {
		t.Fatalf("failed to create policy: %v", err)
	}

	reg := ratelimit.NewRegistry()
	reg.Register(ratelimit.ClassGeneral, p)
	reg.Whitelist("203.0.113.60")

	router := newTestRouter(t, reg, ratelimit.ClassGeneral)

	for i := 0; i < 3; i++ {
		w := doRequest(router, "203.0.113.60:42000")
		if w.Code != http.StatusOK {
			t.Fatalf("expected whitelisted request %d to be allowed, got %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "" {
			t.Fatalf("expected no rate-limit headers on bypass")
		}
	}
}

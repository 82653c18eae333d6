package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fairtest/fairtest-backend/internal/config"
	"github.com/fairtest/fairtest-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fairtest/fairtest-backend/internal/response"
)

func TestRateLimiterRefills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := time.Unix(1_760_000_000, 0)
	rl := NewRateLimiter(ctx, 2, time.Minute)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should pass", i)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatalf("third request should be limited")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatalf("other IPs have their own bucket")
	}

	clock = clock.Add(time.Minute)
	if !rl.allow("10.0.0.1") {
		t.Fatalf("bucket should refill after one interval")
	}

	clock = clock.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Fatalf("stale visitors not swept: %d", len(rl.visitors))
	}
}

func TestRateLimiterMiddlewareSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.Use(response.RequestIDMiddleware(zerolog.Nop()), NewRateLimiter(ctx, 1, time.Minute).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != want {
			t.Fatalf("request %d status = %d, want %d", i, w.Code, want)
		}
		if want == http.StatusTooManyRequests && w.Header().Get("Retry-After") != "60" {
			t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
		}
	}
}

func TestRequireEvaluatorJWTRejectsMissingAndForgedTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(&config.Config{JWTSecret: "secret-a", JWTExpiry: time.Hour}, nil)
	forger := service.NewAuthService(&config.Config{JWTSecret: "secret-b", JWTExpiry: time.Hour}, nil)
	forged, err := forger.GenerateEvaluatorToken(7)
	if err != nil {
		t.Fatalf("GenerateEvaluatorToken: %v", err)
	}

	r := gin.New()
	r.Use(RequireEvaluatorJWT(auth))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"forged", "Bearer " + forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

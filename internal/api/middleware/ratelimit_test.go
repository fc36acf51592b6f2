package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newRateLimitedRouter(t *testing.T, requests int64) *gin.Engine {
	t.Helper()
	mw, err := NewRateLimiter(requests, time.Minute, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := gin.New()
	r.Use(mw)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doFrom(r *gin.Engine, addr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)
	return w
}

func TestNewRateLimiter(t *testing.T) {
	t.Run("invalid configuration", func(t *testing.T) {
		if _, err := NewRateLimiter(0, time.Minute, nil); err == nil {
			t.Error("expected error for zero requests")
		}
		if _, err := NewRateLimiter(10, 0, nil); err == nil {
			t.Error("expected error for zero period")
		}
	})

	t.Run("requests within limit succeed", func(t *testing.T) {
		r := newRateLimitedRouter(t, 5)
		for i := 0; i < 5; i++ {
			if w := doFrom(r, "127.0.0.1:12345"); w.Code != http.StatusOK {
				t.Fatalf("request %d: expected status 200, got %d", i+1, w.Code)
			}
		}
	})

	t.Run("requests exceeding limit rejected", func(t *testing.T) {
		r := newRateLimitedRouter(t, 2)
		for i := 0; i < 2; i++ {
			doFrom(r, "10.0.0.1:12345")
		}

		w := doFrom(r, "10.0.0.1:12345")
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status 429, got %d", w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("expected X-RateLimit-Limit 2, got %q", w.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("different IPs have separate limits", func(t *testing.T) {
		r := newRateLimitedRouter(t, 1)
		if w := doFrom(r, "192.168.1.1:12345"); w.Code != http.StatusOK {
			t.Fatalf("first IP: expected status 200, got %d", w.Code)
		}
		if w := doFrom(r, "192.168.1.2:12345"); w.Code != http.StatusOK {
			t.Fatalf("second IP: expected status 200, got %d", w.Code)
		}
	})
}

func TestNewRateLimitStore(t *testing.T) {
	t.Run("memory store without redis url", func(t *testing.T) {
		store, closeFn, err := NewRateLimitStore(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store == nil {
			t.Fatal("expected a store")
		}
		if err := closeFn(); err != nil {
			t.Errorf("close: %v", err)
		}
	})

	t.Run("invalid redis url", func(t *testing.T) {
		if _, _, err := NewRateLimitStore(context.Background(), "not-a-url"); err == nil {
			t.Fatal("expected error for invalid redis url")
		}
	})

	t.Run("unreachable redis", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, _, err := NewRateLimitStore(ctx, "redis://127.0.0.1:1/0"); err == nil {
			t.Fatal("expected error for unreachable redis")
		}
	})
}

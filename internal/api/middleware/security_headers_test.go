package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newHeadersRouter() *gin.Engine {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestSecurityHeaders_AllHeadersSet(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	newHeadersRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	expected := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": cspAPI,
		"Cache-Control":           "no-store",
	}

	for header, want := range expected {
		if got := w.Header().Get(header); got != want {
			t.Errorf("expected %s %q, got %q", header, want, got)
		}
	}

	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no Strict-Transport-Security without TLS, got %q", got)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{name: "direct TLS", setup: func(r *http.Request) { r.TLS = &tls.ConnectionState{} }},
		{name: "forwarded https", setup: func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/test", nil)
			tt.setup(req)
			newHeadersRouter().ServeHTTP(w, req)

			if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
				t.Errorf("expected HSTS header, got %q", got)
			}
		})
	}
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MacJediWizard/firekeeper/pkg/models"
	"github.com/rs/zerolog"
)

func testPing() models.PingRequest {
	return models.PingRequest{
		URL:       "https://us-central1-proj.cloudfunctions.net/agent",
		ProjectID: "proj",
		Token:     "controller-token",
		Version:   "1.2.3",
	}
}

func TestClient_Ping(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody models.PingRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "controller-token", nil, zerolog.Nop())
	if err := c.Ping(context.Background(), testPing()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if gotPath != PingPath {
		t.Errorf("expected path %s, got %s", PingPath, gotPath)
	}
	if gotAuth != "Bearer controller-token" {
		t.Errorf("unexpected authorization header %q", gotAuth)
	}
	if gotBody != testPing() {
		t.Errorf("unexpected body %+v", gotBody)
	}
}

func TestClient_PingErrors(t *testing.T) {
	t.Run("no controller url", func(t *testing.T) {
		c := NewClient("", "t", nil, zerolog.Nop())
		if err := c.Ping(context.Background(), testPing()); !errors.Is(err, ErrNoController) {
			t.Fatalf("expected ErrNoController, got %v", err)
		}
	})

	t.Run("controller rejects", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unknown agent", http.StatusForbidden)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "t", nil, zerolog.Nop())
		err := c.Ping(context.Background(), testPing())
		if err == nil {
			t.Fatal("expected error for 403")
		}
		if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "unknown agent") {
			t.Errorf("expected status and body in error, got %v", err)
		}
	})

	t.Run("controller unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		c := NewClient(url, "t", nil, zerolog.Nop())
		if err := c.Ping(context.Background(), testPing()); err == nil {
			t.Fatal("expected error for closed server")
		}
	})
}

func TestClient_PingAsync(t *testing.T) {
	t.Run("completes in background", func(t *testing.T) {
		hit := make(chan struct{}, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hit <- struct{}{}
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "t", nil, zerolog.Nop())
		done := c.PingAsync(context.Background(), testPing(), time.Second)

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("ping did not finish")
		}
		select {
		case <-hit:
		default:
			t.Error("expected controller to receive the ping")
		}
	})

	t.Run("times out without blocking the caller", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c := NewClient(srv.URL, "t", nil, zerolog.Nop())

		start := time.Now()
		done := c.PingAsync(context.Background(), testPing(), 100*time.Millisecond)
		if time.Since(start) > 50*time.Millisecond {
			t.Error("expected PingAsync to return immediately")
		}

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("ping did not time out")
		}
	})

	t.Run("survives caller cancellation", func(t *testing.T) {
		hit := make(chan struct{}, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hit <- struct{}{}
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := NewClient(srv.URL, "t", nil, zerolog.Nop())
		<-c.PingAsync(ctx, testPing(), time.Second)

		select {
		case <-hit:
		default:
			t.Error("expected ping to be sent even though the caller context was cancelled")
		}
	})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/MacJediWizard/firekeeper/internal/config"
	"github.com/MacJediWizard/firekeeper/internal/shutdown"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type mockShutdownStatus struct {
	accepting  bool
	running    int
	message    string
	operations []string
}

func (m *mockShutdownStatus) GetStatus() shutdown.HealthStatus {
	state := "running"
	if !m.accepting {
		state = "draining"
	}
	return shutdown.HealthStatus{
		State:             state,
		RunningOperations: m.running,
		Operations:        m.operations,
		AcceptingNewJobs:  m.accepting,
		Message:           m.message,
	}
}

func (m *mockShutdownStatus) IsAcceptingJobs() bool {
	return m.accepting
}

var testRuntime = config.RuntimeEnvironment{
	ProjectID:    "demo-project",
	FunctionName: "backup",
	Region:       "us-central1",
	URL:          "https://us-central1-demo-project.cloudfunctions.net/backup",
}

func setupHealthTestRouter(status ShutdownStatusProvider, tempDir string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHealthHandler(status, testRuntime, tempDir, zerolog.Nop())
	handler.RegisterPublicRoutes(r)
	return r
}

func TestHealthOverall(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		r := setupHealthTestRouter(&mockShutdownStatus{accepting: true}, t.TempDir())

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp HealthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if resp.Status != HealthStatusHealthy {
			t.Fatalf("expected healthy status, got %q", resp.Status)
		}
		if resp.Runtime == nil || resp.Runtime.ProjectID != "demo-project" {
			t.Fatalf("expected runtime environment in response, got %+v", resp.Runtime)
		}
		if resp.Checks["temp_dir"] == nil || resp.Checks["temp_dir"].Status != HealthStatusHealthy {
			t.Fatalf("expected healthy temp_dir check, got %+v", resp.Checks["temp_dir"])
		}
	})

	t.Run("draining", func(t *testing.T) {
		status := &mockShutdownStatus{
			accepting:  false,
			running:    2,
			message:    "waiting for 2 operations",
			operations: []string{"op-a", "op-b"},
		}
		r := setupHealthTestRouter(status, t.TempDir())

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", w.Code)
		}

		var resp HealthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if resp.Status != HealthStatusDraining {
			t.Fatalf("expected draining status, got %q", resp.Status)
		}
		check := resp.Checks["shutdown"]
		if check == nil || check.Error != "waiting for 2 operations" {
			t.Fatalf("expected shutdown check message, got %+v", check)
		}
		ops, ok := check.Details["operations"].([]any)
		if !ok || len(ops) != 2 || ops[0] != "op-a" {
			t.Fatalf("expected in-flight operation ids, got %v", check.Details["operations"])
		}
	})

	t.Run("temp dir not writable", func(t *testing.T) {
		// A regular file where the directory should be.
		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
			t.Fatalf("failed to write blocker: %v", err)
		}
		r := setupHealthTestRouter(&mockShutdownStatus{accepting: true}, filepath.Join(blocker, "tmp"))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", w.Code)
		}

		var resp HealthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if resp.Status != HealthStatusUnhealthy {
			t.Fatalf("expected unhealthy status, got %q", resp.Status)
		}
	})

	t.Run("unhealthy wins over draining", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
			t.Fatalf("failed to write blocker: %v", err)
		}
		r := setupHealthTestRouter(&mockShutdownStatus{accepting: false}, filepath.Join(blocker, "tmp"))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		r.ServeHTTP(w, req)

		var resp HealthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if resp.Status != HealthStatusUnhealthy {
			t.Fatalf("expected unhealthy status, got %q", resp.Status)
		}
	})

	t.Run("nil shutdown provider", func(t *testing.T) {
		r := setupHealthTestRouter(nil, t.TempDir())

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
	})
}

func TestHealthLive(t *testing.T) {
	r := setupHealthTestRouter(&mockShutdownStatus{accepting: false}, t.TempDir())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health/live", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

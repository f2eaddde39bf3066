package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/analysis-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "error",
			ShutdownTimeout: 5 * time.Second,
		},
		Task: config.TaskConfig{
			WarmUp:          time.Millisecond,
			StepInterval:    time.Millisecond,
			ResultsDir:      filepath.Join(dir, "results"),
			MaxLifetime:     time.Minute,
			Retention:       time.Hour,
			ReaperSchedule:  "@every 1m",
			SnapshotRetries: 1,
		},
		Upload: config.UploadConfig{
			Dir:      filepath.Join(dir, "uploads"),
			MaxBytes: 1 << 20,
		},
		Presenter: config.PresenterConfig{
			ImageBaseURL: "https://img.example.com",
			MaxImages:    3,
		},
		Metrics: config.MetricsConfig{
			Enabled:   true,
			Namespace: "analysis",
		},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *application {
	t.Helper()

	app, err := newApplication(cfg)
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app
}

func TestRouter_Health(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	w := httptest.NewRecorder()
	app.setupRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestRouter_PromptLifecycle(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	router := app.setupRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analysis/prompt",
		strings.NewReader(`{"prompt":"monthly revenue"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var submitted struct {
		RequestID string `json:"requestId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
			"/api/analysis/results/"+submitted.RequestID, nil))
		var res struct {
			Status string `json:"status"`
		}
		return json.Unmarshal(w.Body.Bytes(), &res) == nil && res.Status == "completed"
	}, 5*time.Second, 5*time.Millisecond)

	_, err := os.Stat(filepath.Join(app.config.Task.ResultsDir, submitted.RequestID+".json"))
	assert.NoError(t, err, "snapshot written to the results directory")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `analysis_task_submitted_total{type="prompt"} 1`)
	assert.Contains(t, w.Body.String(), `analysis_task_finished_total{status="completed",type="prompt"} 1`)
}

func TestRouter_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	app := newTestApp(t, cfg)

	w := httptest.NewRecorder()
	app.setupRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewApplication_InvalidReaperSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Task.ReaperSchedule = "whenever"

	_, err := newApplication(cfg)
	assert.ErrorContains(t, err, "failed to create task reaper")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	port := freePort(t)
	configPath := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf(`server:
  port: %d
  log_level: error
task:
  results_dir: %s
upload:
  dir: %s
`, port, filepath.Join(dir, "results"), filepath.Join(dir, "uploads"))
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, &Options{ConfigPath: configPath}) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	err := run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "failed to load configuration")
}

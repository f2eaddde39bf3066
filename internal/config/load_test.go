package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv sets environment variables for the duration of the test.
func setupEnv(t *testing.T, envVars map[string]string) {
	t.Helper()
	for name, value := range envVars {
		t.Setenv(name, value)
	}
}

// TestLoadDefaults verifies the defaults when nothing is configured.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.Task.WarmUp)
	assert.Equal(t, 10*time.Second, cfg.Task.StepInterval)
	assert.Equal(t, 30*time.Minute, cfg.Task.MaxLifetime)
	assert.Equal(t, time.Hour, cfg.Task.Retention)
	assert.Equal(t, "@every 1m", cfg.Task.ReaperSchedule)
	assert.Equal(t, 1, cfg.Task.SnapshotRetries)
	assert.Equal(t, "analysis_results", cfg.Task.ResultsDir)
	assert.Equal(t, 3, cfg.Presenter.MaxImages)
	assert.True(t, cfg.Metrics.Enabled)
}

// TestLoadFromEnv verifies that environment variables override defaults.
func TestLoadFromEnv(t *testing.T) {
	setupEnv(t, map[string]string{
		"ANALYSIS_SERVER_PORT":        "9090",
		"ANALYSIS_SERVER_LOG_LEVEL":   "debug",
		"ANALYSIS_TASK_STEP_INTERVAL": "250ms",
		"ANALYSIS_TASK_RESULTS_DIR":   "/var/lib/analysis",
		"ANALYSIS_METRICS_ENABLED":    "false",
	})

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Task.StepInterval)
	assert.Equal(t, "/var/lib/analysis", cfg.Task.ResultsDir)
	assert.False(t, cfg.Metrics.Enabled)
}

// TestEnvironmentVariablePrecedence verifies that env vars win over the file.
func TestEnvironmentVariablePrecedence(t *testing.T) {
	configYaml := `
server:
  port: 7070
  log_level: warn
task:
  warm_up: 1s
upload:
  dir: /tmp/uploads
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYaml), 0o600))

	setupEnv(t, map[string]string{"ANALYSIS_SERVER_PORT": "6060"})

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port, "env should override the file")
	assert.Equal(t, "warn", cfg.Server.LogLevel, "file should override defaults")
	assert.Equal(t, time.Second, cfg.Task.WarmUp)
	assert.Equal(t, "/tmp/uploads", cfg.Upload.Dir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestLoadValidationErrors verifies that invalid values are rejected.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name:    "Invalid port number",
			envVars: map[string]string{"ANALYSIS_SERVER_PORT": "999999"},
		},
		{
			name:    "Invalid log level",
			envVars: map[string]string{"ANALYSIS_SERVER_LOG_LEVEL": "invalid-level"},
		},
		{
			name:    "Zero max lifetime",
			envVars: map[string]string{"ANALYSIS_TASK_MAX_LIFETIME": "0s"},
		},
		{
			name:    "Image base URL is not a URL",
			envVars: map[string]string{"ANALYSIS_PRESENTER_IMAGE_BASE_URL": "not a url"},
		},
		{
			name:    "Too many snapshot retries",
			envVars: map[string]string{"ANALYSIS_TASK_SNAPSHOT_RETRIES": "50"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setupEnv(t, tc.envVars)

			cfg, err := Load("")

			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
			assert.Nil(t, cfg)
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. ANALYSIS_SERVER_PORT.
const EnvPrefix = "ANALYSIS"

// defaults lists every known key. Keys without a default cannot be set from
// the environment, so new settings must be added here.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.log_file":         "",
	"server.shutdown_timeout": "15s",

	"task.warm_up":          "3s",
	"task.step_interval":    "10s",
	"task.results_dir":      "analysis_results",
	"task.max_lifetime":     "30m",
	"task.retention":        "1h",
	"task.reaper_schedule":  "@every 1m",
	"task.snapshot_retries": 1,

	"upload.dir":       "uploads",
	"upload.max_bytes": 32 << 20,

	"presenter.image_base_url": "https://via.placeholder.com",
	"presenter.max_images":     3,

	"metrics.enabled":   true,
	"metrics.namespace": "analysis",
}

// Load configuration from defaults, an optional YAML file and environment
// variables, in increasing order of precedence. When configPath is empty a
// config.yaml in the working directory is used if present.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicitly named file must exist.
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

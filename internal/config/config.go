package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Task      TaskConfig      `mapstructure:"task" validate:"required"`
	Upload    UploadConfig    `mapstructure:"upload" validate:"required"`
	Presenter PresenterConfig `mapstructure:"presenter" validate:"required"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// LogFile enables a rotating file sink in addition to stdout.
	LogFile         string        `mapstructure:"log_file"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// TaskConfig controls the analysis task engine.
type TaskConfig struct {
	WarmUp       time.Duration `mapstructure:"warm_up" validate:"gte=0"`
	StepInterval time.Duration `mapstructure:"step_interval" validate:"gte=0"`
	// ResultsDir holds one snapshot file per task.
	ResultsDir      string        `mapstructure:"results_dir" validate:"required"`
	MaxLifetime     time.Duration `mapstructure:"max_lifetime" validate:"gt=0"`
	Retention       time.Duration `mapstructure:"retention" validate:"gt=0"`
	ReaperSchedule  string        `mapstructure:"reaper_schedule" validate:"required"`
	SnapshotRetries int           `mapstructure:"snapshot_retries" validate:"gte=0,lte=5"`
}

// UploadConfig controls the upload cache.
type UploadConfig struct {
	Dir      string `mapstructure:"dir" validate:"required"`
	MaxBytes int64  `mapstructure:"max_bytes" validate:"gt=0"`
}

// PresenterConfig controls the client-facing result shapes.
type PresenterConfig struct {
	ImageBaseURL string `mapstructure:"image_base_url" validate:"required,url"`
	MaxImages    int    `mapstructure:"max_images" validate:"gte=0"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace" validate:"required_if=Enabled true"`
}

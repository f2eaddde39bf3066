package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/analysis-api/internal/config"
)

// Common errors
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrRegistryStopped = errors.New("registry is stopped")
	ErrNilStore        = errors.New("snapshot store cannot be nil")
	ErrNilLogger       = errors.New("logger cannot be nil")
	ErrNilAnalyzer     = errors.New("analyzer factory cannot be nil")
	ErrNilRegistry     = errors.New("registry cannot be nil")
)

// ComputationError reports an unexpected failure inside a task step. The task
// that hits one ends in the failed status.
type ComputationError struct {
	Step int
	Err  error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("step %d failed: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ComputationError) Unwrap() error {
	return e.Err
}

// Config holds configuration for the task engine
type Config struct {
	// WarmUp is the delay between submission and the first estimate.
	WarmUp time.Duration

	// StepInterval is the simulated computation time of each step.
	StepInterval time.Duration

	// MaxLifetime is how long a task may stay in processing before the
	// reaper cancels it.
	MaxLifetime time.Duration

	// Retention is how long a finished task stays resident before the
	// reaper evicts it. Evicted tasks are still served from snapshots.
	Retention time.Duration

	// ReaperSchedule is a cron spec, e.g. "@every 1m".
	ReaperSchedule string

	// SnapshotRetries is how many times a failed snapshot write is retried.
	SnapshotRetries int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		WarmUp:          3 * time.Second,
		StepInterval:    10 * time.Second,
		MaxLifetime:     30 * time.Minute,
		Retention:       time.Hour,
		ReaperSchedule:  "@every 1m",
		SnapshotRetries: 1,
	}
}

// ConfigFrom converts the loaded application settings.
func ConfigFrom(c config.TaskConfig) Config {
	return Config{
		WarmUp:          c.WarmUp,
		StepInterval:    c.StepInterval,
		MaxLifetime:     c.MaxLifetime,
		Retention:       c.Retention,
		ReaperSchedule:  c.ReaperSchedule,
		SnapshotRetries: c.SnapshotRetries,
	}
}

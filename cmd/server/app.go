package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/analysis-api/internal/config"
	"github.com/phrazzld/analysis-api/internal/metrics"
	"github.com/phrazzld/analysis-api/internal/platform/logger"
	"github.com/phrazzld/analysis-api/internal/presenter"
	"github.com/phrazzld/analysis-api/internal/snapshot"
	"github.com/phrazzld/analysis-api/internal/task"
	"github.com/phrazzld/analysis-api/internal/upload"
	"github.com/phrazzld/analysis-api/internal/viz"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	logCloser io.Closer

	metrics   *metrics.Metrics
	store     snapshot.Store
	registry  *task.Registry
	reaper    *task.Reaper
	uploads   *upload.Cache
	presenter *presenter.Presenter
}

// loadAppConfig loads the application configuration from a config file and
// environment variables.
func loadAppConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newApplication sets up logging and creates every component from cfg. The
// reaper is started; step loops start with their tasks.
func newApplication(cfg *config.Config) (*application, error) {
	log, logCloser, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	app := &application{
		config:    cfg,
		logger:    log,
		logCloser: logCloser,
	}

	log.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"results_dir", cfg.Task.ResultsDir,
		"upload_dir", cfg.Upload.Dir,
		"metrics_enabled", cfg.Metrics.Enabled)

	if cfg.Metrics.Enabled {
		app.metrics = metrics.New(cfg.Metrics.Namespace)
	}

	app.store, err = snapshot.NewFileStore(cfg.Task.ResultsDir)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	taskConfig := task.ConfigFrom(cfg.Task)
	app.registry, err = task.NewRegistry(
		app.store,
		task.NewVisualizationAnalyzers(viz.NewBuilder(log)),
		taskConfig,
		app.metrics,
		log,
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task registry: %w", err)
	}

	app.reaper, err = task.NewReaper(app.registry, taskConfig, log)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task reaper: %w", err)
	}
	app.reaper.Start()

	app.uploads, err = upload.NewCache(cfg.Upload.Dir, cfg.Upload.MaxBytes, log)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create upload cache: %w", err)
	}

	app.presenter = presenter.New(presenter.Config{
		ImageBaseURL: cfg.Presenter.ImageBaseURL,
		MaxImages:    cfg.Presenter.MaxImages,
	})

	log.Info("analysis engine initialized",
		"warm_up", taskConfig.WarmUp.String(),
		"step_interval", taskConfig.StepInterval.String(),
		"reaper_schedule", taskConfig.ReaperSchedule)
	return app, nil
}

// cleanup stops background work and releases resources. It is safe to call
// on a partially initialized application.
func (app *application) cleanup() {
	if app.reaper != nil {
		app.reaper.Stop()
	}
	if app.registry != nil {
		app.registry.Stop()
	}
	if app.logCloser != nil {
		if err := app.logCloser.Close(); err != nil {
			app.logger.Error("failed to close log file", "error", err)
		}
	}
}

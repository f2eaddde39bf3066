package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/analysis-api/internal/domain"
	"github.com/phrazzld/analysis-api/internal/tabular"
	"github.com/phrazzld/analysis-api/internal/viz"
)

// Analyzer computes the visualization for one step of one task. It is only
// called from that task's step loop, never concurrently.
type Analyzer interface {
	Analyze(ctx context.Context, step int) (*domain.Visualization, error)
}

// AnalyzerFactory creates the analyzer for a newly submitted task.
type AnalyzerFactory func(sub domain.Submission, logger *slog.Logger) Analyzer

// StepTitle is the title of the chart produced at step.
func StepTitle(step int) string {
	return fmt.Sprintf("Analysis %d (%s Chart)", step, domain.ChartKindForStep(step).DisplayName())
}

// NewVisualizationAnalyzers returns a factory whose analyzers rotate through
// the chart kinds, using the uploaded table for file tasks.
func NewVisualizationAnalyzers(builder *viz.Builder) AnalyzerFactory {
	return func(sub domain.Submission, logger *slog.Logger) Analyzer {
		return &visualizationAnalyzer{
			builder:    builder,
			submission: sub,
			logger:     logger,
		}
	}
}

type visualizationAnalyzer struct {
	builder    *viz.Builder
	submission domain.Submission
	logger     *slog.Logger

	loaded bool
	source viz.Source
}

// Analyze returns no visualization for the first step and one chart for
// every later step.
func (a *visualizationAnalyzer) Analyze(ctx context.Context, step int) (*domain.Visualization, error) {
	if step <= 1 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := a.builder.Build(domain.ChartKindForStep(step), StepTitle(step), a.table())
	return &v, nil
}

// table loads the uploaded file once. Parse failures are logged and the
// task continues on synthetic data.
func (a *visualizationAnalyzer) table() viz.Source {
	if a.loaded {
		return a.source
	}
	a.loaded = true

	if a.submission.Kind != domain.RequestKindFile || a.submission.SourcePath == "" {
		return nil
	}

	t, err := tabular.Load(a.submission.SourcePath)
	if err != nil {
		var pErr *tabular.ParseError
		if errors.As(err, &pErr) {
			a.logger.Warn("uploaded table unusable, using synthetic data", "error", err)
		} else {
			a.logger.Error("failed to load uploaded table", "error", err)
		}
		return nil
	}

	a.logger.Info("uploaded table loaded",
		"rows", t.Len(),
		"numeric_columns", len(t.NumericColumns()),
		"categorical_columns", len(t.CategoricalColumns()))
	a.source = t
	return a.source
}

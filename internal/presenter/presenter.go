// Package presenter shapes task states into the responses returned to
// polling clients.
package presenter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/phrazzld/analysis-api/internal/domain"
	"github.com/samber/lo"
)

// Widget type names understood by the dashboard client.
const (
	WidgetBarChart     = "bar-chart"
	WidgetLineChart    = "line-chart"
	WidgetScatterChart = "scatter-chart"
	WidgetPieChart     = "pie-chart"
	WidgetDataTable    = "data-table"
)

const widgetDescription = "Generated from analysis processing pipeline"

// Widget is the client-facing form of a visualization.
type Widget struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Metadata    map[string]any `json:"metadata"`
}

// CompletedResponse is returned once every step has run.
type CompletedResponse struct {
	Status          domain.TaskStatus `json:"status"`
	Visualizations  []Widget          `json:"visualizations"`
	AuxiliaryImages []string          `json:"auxiliaryImages"`
}

// FailedResponse is returned for a failed task.
type FailedResponse struct {
	Status domain.TaskStatus `json:"status"`
	Error  string            `json:"error"`
}

// ProgressResponse is returned while a task is processing and after it was
// cancelled.
type ProgressResponse struct {
	Status                 domain.TaskStatus `json:"status"`
	EstimatedTimeRemaining int               `json:"estimatedTimeRemaining"`
	PartialVisualizations  []Widget          `json:"partialVisualizations"`
	AuxiliaryImages        []string          `json:"auxiliaryImages"`
}

// Config controls the decorative images attached to responses.
type Config struct {
	ImageBaseURL string
	MaxImages    int
}

// Presenter converts task states into response bodies. It has no state of
// its own and is safe for concurrent use.
type Presenter struct {
	imageBaseURL string
	maxImages    int
}

// New creates a Presenter. A negative MaxImages is treated as zero.
func New(cfg Config) *Presenter {
	return &Presenter{
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		maxImages:    max(cfg.MaxImages, 0),
	}
}

// Present returns the response body for state as seen at now. The result is
// one of CompletedResponse, FailedResponse or ProgressResponse.
func (p *Presenter) Present(state domain.TaskState, now time.Time) any {
	switch state.Status {
	case domain.TaskStatusCompleted:
		return CompletedResponse{
			Status:          state.Status,
			Visualizations:  Widgets(state.Visualizations()),
			AuxiliaryImages: p.Images(p.maxImages),
		}
	case domain.TaskStatusFailed:
		return FailedResponse{
			Status: state.Status,
			Error:  state.Error,
		}
	}

	remaining := 0
	if state.Status != domain.TaskStatusCancelled {
		remaining = int(state.RemainingTime(now) / time.Second)
	}
	return ProgressResponse{
		Status:                 state.Status,
		EstimatedTimeRemaining: remaining,
		PartialVisualizations:  Widgets(state.Visualizations()),
		AuxiliaryImages:        p.Images(len(state.Results) / 2),
	}
}

// InitialEstimateSeconds is the remaining time reported on submission.
func InitialEstimateSeconds(kind domain.RequestKind) int {
	return int(math.Round(kind.InitialEstimate().Seconds()))
}

// Images returns up to n decorative image URLs, capped at the configured
// maximum.
func (p *Presenter) Images(n int) []string {
	n = min(n, p.maxImages)
	images := make([]string, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		images = append(images,
			fmt.Sprintf("%s/1200x800.png?text=Analysis+View+%d", p.imageBaseURL, i))
	}
	return images
}

// Widgets converts visualizations to widgets numbered from zero.
func Widgets(vizs []domain.Visualization) []Widget {
	return lo.Map(vizs, func(v domain.Visualization, i int) Widget {
		return ToWidget(i, v)
	})
}

// ToWidget converts a single visualization.
func ToWidget(index int, v domain.Visualization) Widget {
	w := Widget{
		ID:          fmt.Sprintf("analysis-viz-%d", index),
		Title:       v.Title,
		Description: widgetDescription,
		Metadata:    map[string]any{},
	}

	switch v.Kind {
	case domain.ChartBar:
		w.Type = WidgetBarChart
		w.Metadata["xAxisLabel"] = "Category"
		w.Metadata["yAxisLabel"] = "Value"
		w.Metadata["data"] = v.Series
	case domain.ChartLine:
		w.Type = WidgetLineChart
		w.Metadata["xAxisLabel"] = "Category"
		w.Metadata["yAxisLabel"] = "Value"
		w.Metadata["data"] = v.Series
	case domain.ChartScatter:
		w.Type = WidgetScatterChart
		w.Metadata["xAxisLabel"] = "X"
		w.Metadata["yAxisLabel"] = "Y"
		w.Metadata["data"] = v.Points
	case domain.ChartPie:
		w.Type = WidgetPieChart
		w.Metadata["data"] = v.Series
	case domain.ChartTable:
		w.Type = WidgetDataTable
		if v.Table != nil {
			w.Metadata["columns"] = v.Table.Columns
			w.Metadata["data"] = v.Table.Rows
		}
	}
	return w
}

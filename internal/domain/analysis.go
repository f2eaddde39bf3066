package domain

import (
	"fmt"
	"strings"
	"time"
)

// RequestKind identifies what a client submitted for analysis.
type RequestKind string

// Supported request kinds
const (
	RequestKindPrompt RequestKind = "prompt"
	RequestKindFile   RequestKind = "file"
)

// Validate checks that the kind is one of the supported request kinds.
func (k RequestKind) Validate() error {
	switch k {
	case RequestKindPrompt, RequestKindFile:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRequestKind, string(k))
	}
}

// TotalSteps returns the step budget for a task of this kind.
func (k RequestKind) TotalSteps() int {
	if k == RequestKindFile {
		return 8
	}
	return 5
}

// ExpectedDuration is the time a task of this kind is expected to take
// from its start until completion.
func (k RequestKind) ExpectedDuration() time.Duration {
	if k == RequestKindFile {
		return 10 * time.Minute
	}
	return 3 * time.Minute
}

// InitialEstimate is the remaining time reported to a client on submission.
func (k RequestKind) InitialEstimate() time.Duration {
	if k == RequestKindFile {
		return 10 * time.Minute
	}
	return 5 * time.Minute
}

// TaskStatus represents the lifecycle state of an analysis task.
type TaskStatus string

// Possible task status values. Processing is the initial state; the other
// three are terminal.
const (
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transitions or results are allowed.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// DefaultRemainingEstimate is reported while a task has no completion estimate yet.
const DefaultRemainingEstimate = 5 * time.Minute

// Submission is a validated request to start an analysis task.
type Submission struct {
	Kind RequestKind
	// Content is the prompt text, or the original filename for file uploads.
	Content string
	// SourcePath is the cached upload on disk. Only set for file submissions.
	SourcePath string
}

// Validate checks the submission before any task is created.
func (s Submission) Validate() error {
	if err := s.Kind.Validate(); err != nil {
		return NewValidationError("kind", "is not supported", err)
	}
	if strings.TrimSpace(s.Content) == "" {
		field := "prompt"
		if s.Kind == RequestKindFile {
			field = "file"
		}
		return NewValidationError(field, "is required", ErrEmptyContent)
	}
	return nil
}

// PartialResult is the output of one step of a task. It is immutable once
// appended to a task.
type PartialResult struct {
	Step          int            `json:"step"`
	Progress      float64        `json:"progress"`
	Timestamp     time.Time      `json:"timestamp"`
	Kind          RequestKind    `json:"type"`
	Visualization *Visualization `json:"visualization,omitempty"`
}

// NewPartialResult creates the result for a step. Progress is step/total.
func NewPartialResult(step, total int, kind RequestKind, at time.Time, viz *Visualization) PartialResult {
	return PartialResult{
		Step:          step,
		Progress:      float64(step) / float64(total),
		Timestamp:     at,
		Kind:          kind,
		Visualization: viz,
	}
}

// TaskState is a point-in-time projection of a task, either taken from a
// resident task or reconstructed from its snapshot.
type TaskState struct {
	ID                      string
	Kind                    RequestKind
	Content                 string
	Status                  TaskStatus
	StartTime               time.Time
	UpdatedAt               time.Time
	EstimatedCompletionTime *time.Time
	Results                 []PartialResult
	Error                   string
}

// RemainingTime returns max(0, eta - now), or DefaultRemainingEstimate when
// no estimate has been computed yet.
func (s TaskState) RemainingTime(now time.Time) time.Duration {
	if s.EstimatedCompletionTime == nil {
		return DefaultRemainingEstimate
	}
	remaining := s.EstimatedCompletionTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Visualizations returns the visualizations of all results in step order.
func (s TaskState) Visualizations() []Visualization {
	vizs := make([]Visualization, 0, len(s.Results))
	for _, r := range s.Results {
		if r.Visualization != nil {
			vizs = append(vizs, *r.Visualization)
		}
	}
	return vizs
}

// Package snapshot persists point-in-time projections of analysis tasks so
// they can be served after the task has left memory.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/phrazzld/analysis-api/internal/domain"
)

// ErrNotFound is returned when no snapshot exists for an id.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the persisted form of a task. Field names are part of the
// on-disk format.
type Snapshot struct {
	RequestID               string                 `json:"request_id"`
	RequestType             domain.RequestKind     `json:"request_type"`
	Content                 string                 `json:"content"`
	Status                  domain.TaskStatus      `json:"status"`
	StartTime               time.Time              `json:"start_time"`
	CurrentTime             time.Time              `json:"current_time"`
	EstimatedCompletionTime *time.Time             `json:"estimated_completion_time"`
	Results                 []domain.PartialResult `json:"results"`
	Error                   *string                `json:"error"`
}

// FromState projects a task state into a snapshot stamped with at.
func FromState(state domain.TaskState, at time.Time) Snapshot {
	s := Snapshot{
		RequestID:               state.ID,
		RequestType:             state.Kind,
		Content:                 state.Content,
		Status:                  state.Status,
		StartTime:               state.StartTime,
		CurrentTime:             at,
		EstimatedCompletionTime: state.EstimatedCompletionTime,
		Results:                 state.Results,
	}
	if s.Results == nil {
		s.Results = []domain.PartialResult{}
	}
	if state.Error != "" {
		msg := state.Error
		s.Error = &msg
	}
	return s
}

// State converts the snapshot back into a task state.
func (s Snapshot) State() domain.TaskState {
	state := domain.TaskState{
		ID:                      s.RequestID,
		Kind:                    s.RequestType,
		Content:                 s.Content,
		Status:                  s.Status,
		StartTime:               s.StartTime,
		UpdatedAt:               s.CurrentTime,
		EstimatedCompletionTime: s.EstimatedCompletionTime,
		Results:                 s.Results,
	}
	if s.Error != nil {
		state.Error = *s.Error
	}
	return state
}

// Store persists snapshots keyed by request id. Write has overwrite
// semantics; a successful Write is visible to every later Read.
type Store interface {
	Write(ctx context.Context, s Snapshot) error
	Read(ctx context.Context, id string) (Snapshot, error)
}

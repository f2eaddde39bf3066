package task

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/analysis-api/internal/domain"
	"github.com/phrazzld/analysis-api/internal/metrics"
	"github.com/phrazzld/analysis-api/internal/snapshot"
)

// newTaskID returns "<kind>-<unix millis>-<8 hex chars>".
func newTaskID(kind domain.RequestKind, now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("%s-%d-%s", kind, now.UnixMilli(), hex.EncodeToString(u[:4]))
}

// AnalysisTask is one asynchronous analysis request. Its state is only
// written by its own step loop and published as an immutable view, so
// readers never block on a running task. The cancellation flag is the only
// state other goroutines may change.
type AnalysisTask struct {
	id       string
	sub      domain.Submission
	total    int
	cfg      Config
	store    snapshot.Store
	analyzer Analyzer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    func() time.Time

	state     atomic.Pointer[domain.TaskState]
	cancelled atomic.Bool
	// durable is set when the published state has been persisted.
	durable atomic.Bool
	done    chan struct{}
}

func newAnalysisTask(
	id string,
	sub domain.Submission,
	cfg Config,
	store snapshot.Store,
	analyzer Analyzer,
	m *metrics.Metrics,
	logger *slog.Logger,
	clock func() time.Time,
) *AnalysisTask {
	t := &AnalysisTask{
		id:       id,
		sub:      sub,
		total:    sub.Kind.TotalSteps(),
		cfg:      cfg,
		store:    store,
		analyzer: analyzer,
		metrics:  m,
		logger:   logger,
		clock:    clock,
		done:     make(chan struct{}),
	}

	now := clock()
	t.state.Store(&domain.TaskState{
		ID:        id,
		Kind:      sub.Kind,
		Content:   sub.Content,
		Status:    domain.TaskStatusProcessing,
		StartTime: now,
		UpdatedAt: now,
		Results:   []domain.PartialResult{},
	})
	return t
}

// ID returns the task's unique identifier
func (t *AnalysisTask) ID() string {
	return t.id
}

// Kind returns the request kind the task was submitted with.
func (t *AnalysisTask) Kind() domain.RequestKind {
	return t.sub.Kind
}

// TotalSteps returns the step budget of the task.
func (t *AnalysisTask) TotalSteps() int {
	return t.total
}

// State returns the most recently published state. The returned results
// slice must not be modified.
func (t *AnalysisTask) State() domain.TaskState {
	return *t.state.Load()
}

// Cancel requests cancellation. It takes effect at the next step boundary;
// a step already in progress still completes.
func (t *AnalysisTask) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether cancellation has been requested.
func (t *AnalysisTask) Cancelled() bool {
	return t.cancelled.Load()
}

// EstimateRemaining returns the time left until the estimated completion.
func (t *AnalysisTask) EstimateRemaining(now time.Time) time.Duration {
	return t.State().RemainingTime(now)
}

// Done is closed when the step loop has exited.
func (t *AnalysisTask) Done() <-chan struct{} {
	return t.done
}

// Durable reports whether the published state is also in the snapshot store.
func (t *AnalysisTask) Durable() bool {
	return t.durable.Load()
}

// Run executes the step loop until the task reaches a terminal status or ctx
// is cancelled. Cancelling ctx stops the loop at the next wait without
// changing the persisted status.
func (t *AnalysisTask) Run(ctx context.Context) {
	defer close(t.done)
	defer t.metrics.TaskStopped()

	t.logger.Info("analysis task started", "total_steps", t.total)
	t.persist(ctx, t.State())

	if !sleep(ctx, t.cfg.WarmUp) {
		t.logger.Info("analysis task interrupted by shutdown", "phase", "warm_up")
		return
	}

	eta := t.State().StartTime.Add(t.sub.Kind.ExpectedDuration())
	t.commit(ctx, func(s *domain.TaskState) {
		s.EstimatedCompletionTime = &eta
	})

	for step := 1; step <= t.total; step++ {
		if t.cancelled.Load() {
			t.finish(ctx, domain.TaskStatusCancelled, "")
			return
		}

		if !sleep(ctx, t.cfg.StepInterval) {
			t.logger.Info("analysis task interrupted by shutdown", "phase", "step", "step", step)
			return
		}

		result, err := t.runStep(ctx, step)
		if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
			t.logger.Info("analysis task interrupted by shutdown", "phase", "step", "step", step)
			return
		}
		if err != nil {
			t.logger.Error("analysis step failed", "step", step, "error", err)
			t.finish(ctx, domain.TaskStatusFailed, err.Error())
			return
		}

		t.commit(ctx, func(s *domain.TaskState) {
			s.Results = append(s.Results, result)
		})
		t.logger.Debug("analysis step completed",
			"step", step,
			"progress", result.Progress,
			"has_visualization", result.Visualization != nil)
	}

	t.finish(ctx, domain.TaskStatusCompleted, "")
}

// runStep computes one partial result. Analyzer errors and panics become a
// ComputationError.
func (t *AnalysisTask) runStep(ctx context.Context, step int) (result domain.PartialResult, err error) {
	timer := t.metrics.StepTimer(string(t.sub.Kind))
	defer timer.ObserveDuration()

	defer func() {
		if r := recover(); r != nil {
			err = &ComputationError{Step: step, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	v, err := t.analyzer.Analyze(ctx, step)
	if err != nil {
		return result, &ComputationError{Step: step, Err: err}
	}

	switch {
	case step == 1:
		v = nil
	case v == nil:
		return result, &ComputationError{Step: step, Err: errors.New("no visualization produced")}
	default:
		if err := v.Validate(); err != nil {
			return result, &ComputationError{Step: step, Err: err}
		}
	}

	return domain.NewPartialResult(step, t.total, t.sub.Kind, t.clock(), v), nil
}

// finish moves the task to a terminal status.
func (t *AnalysisTask) finish(ctx context.Context, status domain.TaskStatus, errMsg string) {
	t.metrics.TaskFinished(string(t.sub.Kind), string(status))
	t.commit(ctx, func(s *domain.TaskState) {
		s.Status = status
		s.Error = errMsg
	})
	t.logger.Info("analysis task finished",
		"status", status,
		"results", len(t.State().Results))
}

// commit derives the next state, persists it and then publishes it, so no
// reader is ever shown a state newer than its snapshot.
func (t *AnalysisTask) commit(ctx context.Context, mutate func(*domain.TaskState)) {
	cur := t.state.Load()
	next := *cur
	next.Results = slices.Clone(cur.Results)
	mutate(&next)
	next.UpdatedAt = t.clock()

	t.persist(ctx, next)
	t.state.Store(&next)
}

// persist writes a snapshot, retrying per configuration. Failures are logged
// and counted but never stop the loop.
func (t *AnalysisTask) persist(ctx context.Context, state domain.TaskState) bool {
	// A snapshot that was started must complete even during shutdown.
	ctx = context.WithoutCancel(ctx)
	snap := snapshot.FromState(state, state.UpdatedAt)

	var err error
	for attempt := 0; attempt <= t.cfg.SnapshotRetries; attempt++ {
		timer := t.metrics.SnapshotTimer()
		err = t.store.Write(ctx, snap)
		timer.ObserveDuration()
		t.metrics.SnapshotWrite(err == nil)
		if err == nil {
			t.durable.Store(true)
			return true
		}
		t.logger.Warn("snapshot write failed",
			"attempt", attempt+1,
			"status", state.Status,
			"error", err)
	}

	t.durable.Store(false)
	t.logger.Error("giving up on snapshot write",
		"status", state.Status,
		"results", len(state.Results),
		"error", err)
	return false
}

// persistLatest retries the snapshot of the published state.
func (t *AnalysisTask) persistLatest(ctx context.Context) bool {
	return t.persist(ctx, t.State())
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/phrazzld/analysis-api/internal/domain"
	"github.com/phrazzld/analysis-api/internal/metrics"
	"github.com/phrazzld/analysis-api/internal/platform/logger"
	"github.com/phrazzld/analysis-api/internal/snapshot"
	"github.com/samber/lo"
)

// Registry is the process-wide index of resident tasks. It starts one step
// loop per task and falls back to the snapshot store for tasks that are no
// longer in memory.
type Registry struct {
	tasks       cmap.ConcurrentMap[string, *AnalysisTask]
	store       snapshot.Store
	newAnalyzer AnalyzerFactory
	config      Config
	metrics     *metrics.Metrics
	logger      *slog.Logger
	clock       func() time.Time
	newID       func(domain.RequestKind, time.Time) string

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	// mu orders task starts against Stop.
	mu      sync.RWMutex
	stopped bool
}

// NewRegistry creates a Registry. m may be nil to disable metrics.
func NewRegistry(
	store snapshot.Store,
	newAnalyzer AnalyzerFactory,
	config Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Registry, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if newAnalyzer == nil {
		return nil, ErrNilAnalyzer
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Registry{
		tasks:       cmap.New[*AnalysisTask](),
		store:       store,
		newAnalyzer: newAnalyzer,
		config:      config,
		metrics:     m,
		logger:      logger.With("component", "task_registry"),
		clock:       time.Now,
		newID:       newTaskID,
		ctx:         ctx,
		cancelFunc:  cancel,
	}, nil
}

// CreateAndStart validates the submission, registers a new task and starts
// its step loop. It returns the task id without waiting for any step.
func (r *Registry) CreateAndStart(ctx context.Context, sub domain.Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return "", ErrRegistryStopped
	}

	var t *AnalysisTask
	for {
		id := r.newID(sub.Kind, r.clock())
		taskLogger := r.logger.With("task_id", id, "request_type", sub.Kind)
		t = newAnalysisTask(id, sub, r.config, r.store, r.newAnalyzer(sub, taskLogger),
			r.metrics, taskLogger, r.clock)
		if r.tasks.SetIfAbsent(id, t) {
			break
		}
		r.logger.Warn("task id collision, regenerating", "task_id", id)
	}

	r.metrics.TaskSubmitted(string(sub.Kind))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t.Run(r.ctx)
	}()

	logger.FromContextOrDefault(ctx, r.logger).Info("analysis task submitted",
		"task_id", t.ID(),
		"request_type", sub.Kind,
		"total_steps", t.TotalSteps())
	return t.ID(), nil
}

// Lookup returns the resident task for id. It never consults the snapshot
// store and never creates a task.
func (r *Registry) Lookup(id string) (*AnalysisTask, bool) {
	return r.tasks.Get(id)
}

// Cancel flags the resident task for cancellation. Tasks that only exist as
// snapshots cannot be cancelled and report ErrTaskNotFound.
func (r *Registry) Cancel(id string) error {
	t, ok := r.tasks.Get(id)
	if !ok {
		return ErrTaskNotFound
	}
	t.Cancel()
	r.logger.Info("analysis task cancellation requested", "task_id", id)
	return nil
}

// Resolve returns the current state of a task, from memory if resident and
// from the snapshot store otherwise.
func (r *Registry) Resolve(ctx context.Context, id string) (domain.TaskState, error) {
	if t, ok := r.tasks.Get(id); ok {
		return t.State(), nil
	}

	snap, err := r.store.Read(ctx, id)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return domain.TaskState{}, ErrTaskNotFound
		}
		return domain.TaskState{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snap.State(), nil
}

// Evict removes a resident task. Its snapshot stays readable through Resolve.
func (r *Registry) Evict(id string) bool {
	_, ok := r.tasks.Pop(id)
	if ok {
		r.logger.Debug("analysis task evicted", "task_id", id)
	}
	return ok
}

// Len returns the number of resident tasks.
func (r *Registry) Len() int {
	return r.tasks.Count()
}

// Tasks returns the resident tasks in no particular order.
func (r *Registry) Tasks() []*AnalysisTask {
	return lo.Values(r.tasks.Items())
}

// Stop gracefully shuts down every step loop. Tasks keep their last
// persisted status.
func (r *Registry) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("task registry stopped", "resident_tasks", r.tasks.Count())
}

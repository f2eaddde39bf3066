package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepResult summarizes one reaper pass.
type SweepResult struct {
	Cancelled int
	Evicted   int
}

// Reaper bounds the life of resident tasks. On every scheduled pass it
// cancels tasks that have been processing longer than MaxLifetime and
// evicts finished tasks older than Retention.
type Reaper struct {
	registry *Registry
	config   Config
	cron     *cron.Cron
	logger   *slog.Logger
	clock    func() time.Time
}

// NewReaper creates a Reaper that runs on config.ReaperSchedule once started.
func NewReaper(registry *Registry, config Config, logger *slog.Logger) (*Reaper, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	r := &Reaper{
		registry: registry,
		config:   config,
		cron:     cron.New(),
		logger:   logger.With("component", "task_reaper"),
		clock:    time.Now,
	}

	if _, err := r.cron.AddFunc(config.ReaperSchedule, func() {
		r.Sweep(r.clock())
	}); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", config.ReaperSchedule, err)
	}
	return r, nil
}

// Start begins the schedule.
func (r *Reaper) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep runs one pass against the resident tasks as of now.
func (r *Reaper) Sweep(now time.Time) SweepResult {
	var res SweepResult

	for _, t := range r.registry.Tasks() {
		state := t.State()

		if !state.Status.IsTerminal() {
			if !t.Cancelled() && now.Sub(state.StartTime) > r.config.MaxLifetime {
				t.Cancel()
				res.Cancelled++
				r.logger.Warn("cancelling task past its maximum lifetime",
					"task_id", t.ID(),
					"age", now.Sub(state.StartTime).String())
			}
			continue
		}

		if now.Sub(state.UpdatedAt) <= r.config.Retention {
			continue
		}
		// Only evict once the terminal state is on disk.
		if !t.Durable() && !t.persistLatest(context.Background()) {
			continue
		}
		if r.registry.Evict(t.ID()) {
			res.Evicted++
		}
	}

	if res.Cancelled > 0 || res.Evicted > 0 {
		r.logger.Info("reaper pass complete",
			"cancelled", res.Cancelled,
			"evicted", res.Evicted,
			"resident", r.registry.Len())
	}
	return res
}

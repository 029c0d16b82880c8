// Package housekeeping runs background maintenance jobs — ECMP
// capacity rechecks and switch counter polls — on a shared cron
// scheduler, off the main event loop's goroutine. Because nhgroup.Pool
// and the rest of the reconciliation state are single-goroutine-owned,
// jobs here never mutate that state directly: each job computes a
// value against the hardware client and queues an Apply closure that
// the event loop runs via Execute, on the owning goroutine.
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"netorch/internal/core"
	"netorch/internal/hwapi"
	"netorch/internal/logging"
	"netorch/internal/nhgroup"
)

// Result is one job run's outcome: Apply performs the state mutation
// the job computed, invoked on the event loop's goroutine.
type Result struct {
	RunID string
	Job   string
	Apply func()
}

// Scheduler wraps a gocron.Scheduler, collecting each job's Result into
// a pending queue drained by Execute. It satisfies core.Source (via
// Ready) and core.Executor (via Execute), so it registers with
// core.EventLoop like any other source.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger

	mu      sync.Mutex
	pending []Result
	ready   chan struct{}
}

var _ core.Source = (*Scheduler)(nil)
var _ core.Executor = (*Scheduler)(nil)

// New builds a Scheduler and starts it immediately so jobs begin
// running as soon as they are registered.
func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("housekeeping: create scheduler: %w", err)
	}
	sched := &Scheduler{
		scheduler: s,
		logger:    logging.Default(logger).With("component", "housekeeping.scheduler"),
		ready:     make(chan struct{}, 1),
	}
	s.Start()
	return sched, nil
}

// Ready satisfies core.Source, firing whenever a job has queued a
// Result for application.
func (s *Scheduler) Ready() <-chan struct{} { return s.ready }

// Execute applies every queued Result's Apply closure, in the order
// its job finished. Runs on the event loop's goroutine.
func (s *Scheduler) Execute(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, r := range batch {
		s.logger.Debug("applying housekeeping result", "job", r.Job, "run_id", r.RunID)
		r.Apply()
	}
	return nil
}

func (s *Scheduler) enqueue(r Result) {
	s.mu.Lock()
	s.pending = append(s.pending, r)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// RegisterCapacityRecheck schedules a periodic recheck of the ECMP
// group pool's hardware capacity, applying any discovered change to
// pool via Pool.SetMaxGroups on the event loop's goroutine.
func (s *Scheduler) RegisterCapacityRecheck(hw hwapi.Client, cfg nhgroup.Config, pool *nhgroup.Pool, interval time.Duration) error {
	task := func() {
		runID := uuid.Must(uuid.NewV7()).String()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		max := nhgroup.DiscoverCapacity(ctx, hw, cfg, s.logger)
		s.enqueue(Result{
			RunID: runID,
			Job:   "capacity-recheck",
			Apply: func() {
				if pool.MaxGroups() == max {
					return
				}
				s.logger.Info("ecmp group capacity changed", "old", pool.MaxGroups(), "new", max)
				pool.SetMaxGroups(max)
			},
		})
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("capacity-recheck"),
	)
	if err != nil {
		return fmt.Errorf("housekeeping: register capacity recheck: %w", err)
	}
	return nil
}

// CounterSample is one switch attribute read by a counter-poll run.
type CounterSample struct {
	Name  string
	Value string
	Err   error
}

// RegisterCounterPoll schedules a periodic read of the named switch
// attributes, logging each sample via the supplied sink on the event
// loop's goroutine. Modeled on flex-counter style polling: the read
// happens off-goroutine against the hardware client, only the
// resulting log call is queued for the owning goroutine.
func (s *Scheduler) RegisterCounterPoll(hw hwapi.Client, names []string, interval time.Duration, sink func([]CounterSample)) error {
	task := func() {
		runID := uuid.Must(uuid.NewV7()).String()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		samples := make([]CounterSample, len(names))
		for i, name := range names {
			value, err := hw.GetSwitchAttribute(ctx, name)
			samples[i] = CounterSample{Name: name, Value: value, Err: err}
		}

		s.enqueue(Result{
			RunID: runID,
			Job:   "counter-poll",
			Apply: func() {
				if sink != nil {
					sink(samples)
				}
			},
		})
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("counter-poll"),
	)
	if err != nil {
		return fmt.Errorf("housekeeping: register counter poll: %w", err)
	}
	return nil
}

// Stop shuts down the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"netorch/internal/logging"
	"netorch/internal/statedb"
)

// Source is a readable event source: a send (or close) on Ready means
// its paired Executor has work to do.
type Source interface {
	Ready() <-chan struct{}
}

// Executor performs the work associated with a registered Source
// becoming ready.
type Executor interface {
	Execute(ctx context.Context) error
}

// ExecutorFunc adapts a function to an Executor.
type ExecutorFunc func(ctx context.Context) error

func (f ExecutorFunc) Execute(ctx context.Context) error { return f(ctx) }

// Orchestrator is the contract every reconciler (RouteReconciler and
// any sibling) implements.
type Orchestrator interface {
	// Process is invoked once per consumer, after that consumer's
	// Drain, to apply its pending rows.
	Process(ctx context.Context, consumer *Consumer) error
	// Tick is invoked on every registered Orchestrator on each poll
	// timeout, so retry-pending entries can be reattempted without
	// fresh input.
	Tick(ctx context.Context) error
	// Sources returns the tables this orchestrator consumes.
	Sources() []statedb.Table
}

// Flusher pushes buffered hardware mutations out: every dispatch ends
// with a flush. It is satisfied by hwapi.Client without this package
// importing hwapi.
type Flusher interface {
	Flush(ctx context.Context) error
}

type registration struct {
	source   Source
	executor Executor
	label    string
}

// EventLoop multiplexes a dynamic set of readable Sources with a fixed
// poll timeout, dispatching to the paired Executor on readiness and to
// every registered Orchestrator's Tick on timeout.
type EventLoop struct {
	pollTimeout   time.Duration
	flusher       Flusher
	logger        *slog.Logger
	registrations []registration
	orchestrators []Orchestrator
}

// NewEventLoop builds an EventLoop with the given poll timeout and
// flush target.
func NewEventLoop(pollTimeout time.Duration, flusher Flusher, logger *slog.Logger) *EventLoop {
	return &EventLoop{
		pollTimeout: pollTimeout,
		flusher:     flusher,
		logger:      logging.Default(logger).With("component", "core.eventloop"),
	}
}

// Register pairs a Source with the Executor invoked when it becomes
// ready. label is used only for logging.
func (l *EventLoop) Register(label string, source Source, executor Executor) {
	l.registrations = append(l.registrations, registration{source: source, executor: executor, label: label})
}

// RegisterOrchestrator adds orch to the set ticked on every poll
// timeout.
func (l *EventLoop) RegisterOrchestrator(orch Orchestrator) {
	l.orchestrators = append(l.orchestrators, orch)
}

// Run blocks, multiplexing registered sources until ctx is cancelled
// or a fatal error occurs. Non-fatal multiplexer errors are logged and
// the loop continues; cancellation returns nil.
func (l *EventLoop) Run(ctx context.Context) error {
	if len(l.registrations) == 0 {
		return errors.New("core: event loop has no registered sources")
	}

	cases := make([]reflect.SelectCase, 0, len(l.registrations)+1)
	for _, r := range l.registrations {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(r.source.Ready()),
		})
	}
	doneIdx := len(cases)
	cases = append(cases, reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(ctx.Done()),
	})

	for {
		chosen, _, recvOK := l.selectWithTimeout(cases)

		if chosen == doneIdx {
			return nil
		}
		if chosen < 0 {
			l.tickAll(ctx)
			if err := l.flush(ctx); err != nil {
				return fmt.Errorf("core: flush after tick: %w", err)
			}
			continue
		}
		if !recvOK {
			// A source's Ready channel was closed; drop it from the
			// select set by replacing it with a never-ready channel.
			cases[chosen].Chan = reflect.ValueOf((<-chan struct{})(nil))
			continue
		}

		r := l.registrations[chosen]
		if err := r.executor.Execute(ctx); err != nil {
			l.logger.Error("executor failed", "source", r.label, "error", err)
		}
		if err := l.flush(ctx); err != nil {
			return fmt.Errorf("core: flush after %s: %w", r.label, err)
		}
	}
}

// selectWithTimeout runs reflect.Select over cases, bounded by the
// loop's poll timeout. chosen is -1 on timeout.
func (l *EventLoop) selectWithTimeout(cases []reflect.SelectCase) (chosen int, recv reflect.Value, recvOK bool) {
	timer := time.NewTimer(l.pollTimeout)
	defer timer.Stop()

	withTimeout := append(append([]reflect.SelectCase(nil), cases...), reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(timer.C),
	})

	chosen, recv, recvOK = reflect.Select(withTimeout)
	if chosen == len(cases) {
		return -1, reflect.Value{}, false
	}
	return chosen, recv, recvOK
}

func (l *EventLoop) tickAll(ctx context.Context) {
	for _, orch := range l.orchestrators {
		if err := orch.Tick(ctx); err != nil {
			l.logger.Error("tick failed", "error", err)
		}
	}
}

func (l *EventLoop) flush(ctx context.Context) error {
	if l.flusher == nil {
		return nil
	}
	return l.flusher.Flush(ctx)
}

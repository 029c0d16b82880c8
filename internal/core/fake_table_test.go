package core

import (
	"context"

	"netorch/internal/statedb"
)

// fakeTable is a hand-written statedb.Table test double, in the
// retrieval pack's style of preferring fakes over mocking frameworks.
type fakeTable struct {
	name     string
	priority int
	ready    chan struct{}
	queued   []statedb.Notification
}

func newFakeTable(name string, priority int) *fakeTable {
	return &fakeTable{name: name, priority: priority, ready: make(chan struct{}, 1)}
}

func (f *fakeTable) Name() string    { return f.name }
func (f *fakeTable) Priority() int   { return f.priority }
func (f *fakeTable) Ready() <-chan struct{} { return f.ready }

func (f *fakeTable) push(n statedb.Notification) {
	f.queued = append(f.queued, n)
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

func (f *fakeTable) Drain(_ context.Context) ([]statedb.Notification, error) {
	out := f.queued
	f.queued = nil
	return out, nil
}

package neighbor

import (
	"context"
	"net/netip"
	"testing"

	"netorch/internal/core"
	"netorch/internal/statedb"
)

type fakeNeighTable struct {
	name     string
	priority int
	ready    chan struct{}
	queued   []statedb.Notification
}

func newFakeNeighTable() *fakeNeighTable {
	return &fakeNeighTable{name: statedb.NeighTable, priority: 20, ready: make(chan struct{}, 1)}
}

func (f *fakeNeighTable) Name() string              { return f.name }
func (f *fakeNeighTable) Priority() int             { return f.priority }
func (f *fakeNeighTable) Ready() <-chan struct{}    { return f.ready }
func (f *fakeNeighTable) push(n statedb.Notification) {
	f.queued = append(f.queued, n)
}
func (f *fakeNeighTable) Drain(context.Context) ([]statedb.Notification, error) {
	out := f.queued
	f.queued = nil
	return out, nil
}

func TestOrchestratorResolvesAddressOnSetWithMAC(t *testing.T) {
	table := NewInMemoryTable()
	src := newFakeNeighTable()
	src.push(statedb.Notification{Key: "1.1.1.1", Op: statedb.Set, Fields: map[string]string{FieldMAC: "aa:bb:cc:dd:ee:ff"}})

	orch := NewOrchestrator(table, src, nil)
	if err := orch.Consumer().Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if err := orch.Process(context.Background(), orch.Consumer()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	addr := netip.MustParseAddr("1.1.1.1")
	if !table.HasNextHop(addr) {
		t.Fatal("expected 1.1.1.1 to be resolved")
	}
	if _, ok := table.NextHopID(addr); !ok {
		t.Error("expected a hardware-id to be assigned")
	}
}

func TestOrchestratorUnresolvesOnDel(t *testing.T) {
	table := NewInMemoryTable()
	table.Resolve(netip.MustParseAddr("1.1.1.1"), "nh-1")

	src := newFakeNeighTable()
	src.push(statedb.Notification{Key: "1.1.1.1", Op: statedb.Del})

	orch := NewOrchestrator(table, src, nil)
	_ = orch.Consumer().Drain(context.Background())
	if err := orch.Process(context.Background(), orch.Consumer()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if table.HasNextHop(netip.MustParseAddr("1.1.1.1")) {
		t.Error("expected 1.1.1.1 to be unresolved after DEL")
	}
}

func TestRefCountIncDec(t *testing.T) {
	table := NewInMemoryTable()
	addr := netip.MustParseAddr("2.2.2.2")
	table.IncRefCount(addr)
	table.IncRefCount(addr)
	table.DecRefCount(addr)
	if got := table.RefCount(addr); got != 1 {
		t.Errorf("RefCount() = %d, want 1", got)
	}
}

func TestRefCountUnderflowPanics(t *testing.T) {
	table := NewInMemoryTable()
	addr := netip.MustParseAddr("3.3.3.3")
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on refcount underflow")
		}
	}()
	table.DecRefCount(addr)
}

var _ core.Orchestrator = (*Orchestrator)(nil)

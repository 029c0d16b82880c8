package housekeeping

import (
	"context"
	"testing"
	"time"

	"netorch/internal/hwapi/hwtest"
	"netorch/internal/neighbor"
	"netorch/internal/nhgroup"
)

func waitReady(t *testing.T, s *Scheduler, timeout time.Duration) {
	t.Helper()
	select {
	case <-s.Ready():
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a queued housekeeping result")
	}
}

func TestCapacityRecheckAppliesOnExecute(t *testing.T) {
	hw := hwtest.New()
	neigh := neighbor.NewInMemoryTable()
	pool := nhgroup.New(context.Background(), hw, neigh, nhgroup.Config{}, nil)
	// The pool discovered the fake's initial 128; only the recheck can
	// bring it to 64.
	hw.NumberOfECMPGroups = "64"

	sched, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sched.Stop()

	if err := sched.RegisterCapacityRecheck(hw, nhgroup.Config{}, pool, 10*time.Millisecond); err != nil {
		t.Fatalf("RegisterCapacityRecheck: %v", err)
	}

	waitReady(t, sched, time.Second)
	if err := sched.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if pool.MaxGroups() != 64 {
		t.Errorf("MaxGroups() = %d, want 64", pool.MaxGroups())
	}
}

func TestCounterPollDeliversSamplesToSink(t *testing.T) {
	hw := hwtest.New()
	hw.NumberOfECMPGroups = "128"

	sched, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sched.Stop()

	got := make(chan []CounterSample, 1)
	sink := func(samples []CounterSample) {
		got <- samples
	}

	if err := sched.RegisterCounterPoll(hw, []string{"NUMBER_OF_ECMP_GROUPS"}, 10*time.Millisecond, sink); err != nil {
		t.Fatalf("RegisterCounterPoll: %v", err)
	}

	waitReady(t, sched, time.Second)
	if err := sched.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case samples := <-got:
		if len(samples) != 1 || samples[0].Value != "128" {
			t.Errorf("unexpected samples: %+v", samples)
		}
	default:
		t.Fatal("expected sink to have been called by Execute")
	}
}

func TestExecuteDrainsInFIFOOrder(t *testing.T) {
	sched, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sched.Stop()

	var order []string
	sched.enqueue(Result{RunID: "1", Job: "a", Apply: func() { order = append(order, "a") }})
	sched.enqueue(Result{RunID: "2", Job: "b", Apply: func() { order = append(order, "b") }})

	if err := sched.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v, want [a b]", order)
	}
}

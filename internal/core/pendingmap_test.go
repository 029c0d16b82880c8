package core

import (
	"testing"

	"netorch/internal/statedb"
)

func TestPendingMapLastWriteWins(t *testing.T) {
	m := NewPendingMap()

	m.Upsert(Row{Key: "10.0.0.0/24", Op: statedb.Set, Fields: map[string]string{"nexthop": "1.1.1.1"}})
	m.Upsert(Row{Key: "10.0.0.0/24", Op: statedb.Set, Fields: map[string]string{"nexthop": "2.2.2.2"}})
	m.Upsert(Row{Key: "10.0.0.0/24", Op: statedb.Del})

	if m.Len() != 1 {
		t.Fatalf("expected exactly one pending row for the key, got %d", m.Len())
	}
	row, ok := m.Get("10.0.0.0/24")
	if !ok {
		t.Fatal("expected row to be present")
	}
	if row.Op != statedb.Del {
		t.Errorf("expected the most recent row (DEL) to win, got %v", row.Op)
	}
}

func TestPendingMapErase(t *testing.T) {
	m := NewPendingMap()
	m.Upsert(Row{Key: "k", Op: statedb.Set})
	m.Erase("k")
	if _, ok := m.Get("k"); ok {
		t.Error("expected row to be gone after Erase")
	}
	if m.Len() != 0 {
		t.Errorf("expected empty map, got len %d", m.Len())
	}
}

func TestPendingMapIndependentKeys(t *testing.T) {
	m := NewPendingMap()
	m.Upsert(Row{Key: "a", Op: statedb.Set})
	m.Upsert(Row{Key: "b", Op: statedb.Set})
	if m.Len() != 2 {
		t.Fatalf("expected 2 independent pending rows, got %d", m.Len())
	}
}

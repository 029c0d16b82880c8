// Package core implements the orchestration core: the event loop that
// multiplexes readable datastore tables, the per-table pending map that
// deduplicates change notifications into the latest intent per key, and
// the orchestrator/consumer contract that drives reconciliation.
package core

import "netorch/internal/statedb"

// Row is a single pending intent for one key: the latest (op, fields)
// tuple seen for it. A Row is replaced wholesale by a newer Row for the
// same key — it is never mutated in place.
type Row struct {
	Key    string
	Op     statedb.Op
	Fields map[string]string
}

func rowFromNotification(n statedb.Notification) Row {
	return Row{Key: n.Key, Op: n.Op, Fields: n.Fields}
}

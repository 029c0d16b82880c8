package core

// PendingMap is a per-consumer, last-write-wins buffer of unapplied
// Rows keyed by row key. At most one Row is ever pending per key; a
// newer Row replaces the older one regardless of its Op.
type PendingMap struct {
	rows map[string]Row
}

// NewPendingMap returns an empty PendingMap.
func NewPendingMap() *PendingMap {
	return &PendingMap{rows: make(map[string]Row)}
}

// Upsert replaces whatever Row is pending for r.Key with r.
func (m *PendingMap) Upsert(r Row) {
	m.rows[r.Key] = r
}

// Erase removes any pending Row for key, e.g. after it was
// successfully processed.
func (m *PendingMap) Erase(key string) {
	delete(m.rows, key)
}

// Get returns the pending Row for key, if any.
func (m *PendingMap) Get(key string) (Row, bool) {
	r, ok := m.rows[key]
	return r, ok
}

// Len returns the number of pending rows.
func (m *PendingMap) Len() int { return len(m.rows) }

// Keys returns the pending keys in unspecified order. Callers must not
// depend on iteration order: cross-table ordering is
// controlled by consumer priority, not within-table order.
func (m *PendingMap) Keys() []string {
	keys := make([]string, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	return keys
}

package core

import (
	"context"
	"fmt"
	"log/slog"

	"netorch/internal/logging"
	"netorch/internal/statedb"
)

// Consumer wraps a statedb.Table with the PendingMap it feeds.
type Consumer struct {
	table   statedb.Table
	pending *PendingMap
	logger  *slog.Logger
}

// NewConsumer creates a Consumer over table.
func NewConsumer(table statedb.Table, logger *slog.Logger) *Consumer {
	return &Consumer{
		table:   table,
		pending: NewPendingMap(),
		logger:  logging.Default(logger).With("component", "core.consumer", "table", table.Name()),
	}
}

func (c *Consumer) Name() string     { return c.table.Name() }
func (c *Consumer) Priority() int    { return c.table.Priority() }
func (c *Consumer) Pending() *PendingMap { return c.pending }

// Drain pulls all currently available change notifications and folds
// them into the PendingMap: later notifications win regardless of op.
func (c *Consumer) Drain(ctx context.Context) error {
	notifs, err := c.table.Drain(ctx)
	if err != nil {
		return fmt.Errorf("core: drain %s: %w", c.table.Name(), err)
	}
	for _, n := range notifs {
		c.pending.Upsert(rowFromNotification(n))
	}
	return nil
}

// RowHandler classifies the outcome of attempting to apply one Row.
type RowHandler func(row Row) (ProcessResult, error)

// ForEach applies handle to every currently pending row. Rows
// classified ResultRetry stay pending; every other outcome erases the
// row. ResultInvalid outcomes are logged with the handler's error, as
// is an error returned with an unrecognized outcome; an error returned
// with ResultRetry, ResultIgnore or ResultSuccess is not logged.
// Iteration order over the pending set is unspecified.
func (c *Consumer) ForEach(handle RowHandler) {
	for _, key := range c.pending.Keys() {
		row, ok := c.pending.Get(key)
		if !ok {
			continue
		}

		result, err := handle(row)
		switch result {
		case ResultRetry:
			continue
		case ResultInvalid:
			c.logger.Warn("invalid row, dropping", "key", row.Key, "op", row.Op, "error", err)
			c.pending.Erase(key)
		case ResultIgnore:
			c.pending.Erase(key)
		case ResultSuccess:
			c.pending.Erase(key)
		default:
			if err != nil {
				c.logger.Warn("row handler error, dropping", "key", row.Key, "error", err)
			}
			c.pending.Erase(key)
		}
	}
}

// Execute drains pending notifications then delegates to proc.
func (c *Consumer) Execute(ctx context.Context, proc func(ctx context.Context, consumer *Consumer) error) error {
	if err := c.Drain(ctx); err != nil {
		return err
	}
	return proc(ctx, c)
}

// ConsumerGroup orders the consumers owned by a single Orchestrator:
// higher priority first, ties broken by table name ascending —
// dependency tables (e.g. LAG before VLAN_MEMBER) reconcile first.
type ConsumerGroup struct {
	consumers []*Consumer
}

// NewConsumerGroup builds a group in priority order.
func NewConsumerGroup(consumers ...*Consumer) *ConsumerGroup {
	g := &ConsumerGroup{consumers: append([]*Consumer(nil), consumers...)}
	g.sort()
	return g
}

func (g *ConsumerGroup) sort() {
	// Simple insertion sort: the group size is small (a handful of
	// tables per orchestrator) and this runs once at construction.
	for i := 1; i < len(g.consumers); i++ {
		for j := i; j > 0 && less(g.consumers[j], g.consumers[j-1]); j-- {
			g.consumers[j], g.consumers[j-1] = g.consumers[j-1], g.consumers[j]
		}
	}
}

func less(a, b *Consumer) bool {
	if a.Priority() != b.Priority() {
		return a.Priority() > b.Priority()
	}
	return a.Name() < b.Name()
}

// Consumers returns the group's members in priority order.
func (g *ConsumerGroup) Consumers() []*Consumer { return g.consumers }

// Tables returns the underlying statedb.Table set, for Orchestrator.Sources.
func (g *ConsumerGroup) Tables() []statedb.Table {
	tables := make([]statedb.Table, len(g.consumers))
	for i, c := range g.consumers {
		tables[i] = c.table
	}
	return tables
}

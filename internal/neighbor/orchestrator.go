package neighbor

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"netorch/internal/core"
	"netorch/internal/logging"
	"netorch/internal/statedb"
)

// FieldMAC is the NEIGH_TABLE field carrying the resolved link-layer
// address; its presence on a SET row is what makes an address
// resolved.
const FieldMAC = "neigh"

// Orchestrator consumes NEIGH_TABLE and populates an InMemoryTable,
// assigning each newly resolved address a synthetic hardware-id.
// Hardware-side next-hop object creation for individual neighbors is
// not modeled here; only the resolved/unresolved signal and the id it
// carries matter to routeorch and nhgroup.
type Orchestrator struct {
	table    *InMemoryTable
	consumer *core.Consumer
	logger   *slog.Logger

	nextID int
}

var _ core.Orchestrator = (*Orchestrator)(nil)

// NewOrchestrator builds a neighbor Orchestrator over table, consuming
// NEIGH_TABLE notifications from src.
func NewOrchestrator(table *InMemoryTable, src statedb.Table, logger *slog.Logger) *Orchestrator {
	logger = logging.Default(logger).With("component", "neighbor.orchestrator")
	return &Orchestrator{
		table:    table,
		consumer: core.NewConsumer(src, logger),
		logger:   logger,
	}
}

// Table returns the underlying neighbor.Table for injection into
// routeorch/nhgroup.
func (o *Orchestrator) Table() Table { return o.table }

// Consumer returns the NEIGH_TABLE consumer, for event-loop wiring.
func (o *Orchestrator) Consumer() *core.Consumer { return o.consumer }

func (o *Orchestrator) Sources() []statedb.Table { return core.NewConsumerGroup(o.consumer).Tables() }

func (o *Orchestrator) Tick(ctx context.Context) error {
	return o.consumer.Execute(ctx, o.Process)
}

// Process applies pending NEIGH_TABLE rows: SET with a MAC field
// resolves the address; SET without one or DEL unresolves it.
func (o *Orchestrator) Process(_ context.Context, consumer *core.Consumer) error {
	consumer.ForEach(func(row core.Row) (core.ProcessResult, error) {
		addr, err := netip.ParseAddr(row.Key)
		if err != nil {
			return core.ResultInvalid, fmt.Errorf("parse neighbor address %q: %w", row.Key, err)
		}

		if row.Op == statedb.Del {
			o.table.Unresolve(addr)
			return core.ResultSuccess, nil
		}

		mac, ok := row.Fields[FieldMAC]
		if !ok || mac == "" {
			o.table.Unresolve(addr)
			return core.ResultSuccess, nil
		}

		o.nextID++
		o.table.Resolve(addr, fmt.Sprintf("nh-%d", o.nextID))
		return core.ResultSuccess, nil
	})
	return nil
}

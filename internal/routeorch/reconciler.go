// Package routeorch implements the route/next-hop reconciler: it
// consumes ROUTE_TABLE notifications, maintains SyncedRoutes, and
// drives the NextHopGroup pool and Bulker to keep hardware state in
// agreement with the datastore.
package routeorch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/netip"

	"netorch/internal/bulker"
	"netorch/internal/core"
	"netorch/internal/hwapi"
	"netorch/internal/logging"
	"netorch/internal/lpmobserve"
	"netorch/internal/neighbor"
	"netorch/internal/netmodel"
	"netorch/internal/nhgroup"
	"netorch/internal/statedb"
)

// Config controls policy knobs that are hardcoded constants elsewhere,
// made configurable here.
type Config struct {
	// ManagementInterfaces overrides the default {eth0, lo, docker0}
	// skip-list.
	ManagementInterfaces []string
}

var defaultManagementInterfaces = []string{"eth0", "lo", "docker0"}

// Reconciler is the RouteReconciler: it owns SyncedRoutes and drives
// the shared NextHopGroup pool, Bulker, and observer registry.
type Reconciler struct {
	synced       SyncedRoutes
	resyncActive bool

	hw        hwapi.Client
	pool      *nhgroup.Pool
	bulker    *bulker.Bulker
	observers *lpmobserve.Registry
	neigh     neighbor.Table

	consumer *core.Consumer
	logger   *slog.Logger

	managementInterfaces map[string]struct{}
	rng                  *rand.Rand
}

var _ core.Orchestrator = (*Reconciler)(nil)

// New builds a Reconciler and installs both default routes as
// hardware drop routes via a direct (non-bulked) create; this must
// complete before the event loop starts. Failure here is fatal and
// the daemon must not start the event loop.
func New(
	ctx context.Context,
	hw hwapi.Client,
	pool *nhgroup.Pool,
	blk *bulker.Bulker,
	observers *lpmobserve.Registry,
	neigh neighbor.Table,
	src statedb.Table,
	cfg Config,
	rng *rand.Rand,
	logger *slog.Logger,
) (*Reconciler, error) {
	logger = logging.Default(logger).With("component", "routeorch.reconciler")

	managementInterfaces := cfg.ManagementInterfaces
	if len(managementInterfaces) == 0 {
		managementInterfaces = defaultManagementInterfaces
	}
	miSet := make(map[string]struct{}, len(managementInterfaces))
	for _, name := range managementInterfaces {
		miSet[name] = struct{}{}
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	r := &Reconciler{
		hw:                   hw,
		pool:                 pool,
		bulker:               blk,
		observers:            observers,
		neigh:                neigh,
		consumer:             core.NewConsumer(src, logger),
		logger:               logger,
		managementInterfaces: miSet,
		rng:                  rng,
	}

	for _, prefix := range []netmodel.IpPrefix{netmodel.DefaultV4, netmodel.DefaultV6} {
		entry := hwapi.RouteEntry{Prefix: prefix.String()}
		attrs := []hwapi.Attribute{{Name: hwapi.AttrPacketAction, Value: hwapi.PacketActionDrop}}
		if err := hw.CreateRoute(ctx, entry, attrs); err != nil {
			return nil, fmt.Errorf("routeorch: install default drop route %s: %w", prefix, err)
		}
		r.synced.Set(prefix, netmodel.IpAddresses{})
	}

	return r, nil
}

// Sources returns the consumer's table, for event-loop registration.
func (r *Reconciler) Sources() []statedb.Table { return core.NewConsumerGroup(r.consumer).Tables() }

// Consumer returns the underlying consumer, for event-loop wiring.
func (r *Reconciler) Consumer() *core.Consumer { return r.consumer }

// Tick drains and processes the consumer on the event loop's poll
// timeout, draining any retry backlog.
func (r *Reconciler) Tick(ctx context.Context) error {
	return r.consumer.Execute(ctx, r.Process)
}

// Attach registers observer for notifications about dst's
// longest-prefix match, seeding its initial routeTable from every
// currently synced prefix whose subnet contains dst.
func (r *Reconciler) Attach(observer lpmobserve.Observer, dst netip.Addr) {
	var matching []lpmobserve.RouteEntry
	r.synced.All(func(p netmodel.IpPrefix, ips netmodel.IpAddresses) bool {
		if p.Contains(dst) {
			matching = append(matching, lpmobserve.RouteEntry{Prefix: p, NextHops: ips})
		}
		return true
	})
	r.observers.Attach(observer, dst, matching)
}

// Detach removes observer from dst's notifications.
func (r *Reconciler) Detach(observer lpmobserve.Observer, dst netip.Addr) {
	r.observers.Detach(observer, dst)
}

// Process handles every pending ROUTE_TABLE row by its key shape
// (resync control, delete, or set), then flushes the bulker once for
// the whole sweep.
func (r *Reconciler) Process(ctx context.Context, consumer *core.Consumer) error {
	consumer.ForEach(func(row core.Row) (core.ProcessResult, error) {
		return r.processRow(ctx, consumer, row)
	})
	return r.bulker.Flush(ctx)
}

func (r *Reconciler) processRow(ctx context.Context, consumer *core.Consumer, row core.Row) (core.ProcessResult, error) {
	if row.Key == statedb.ResyncKey {
		return r.processResync(consumer, row)
	}

	if r.resyncActive {
		// Non-resync keys are left pending, not errored, until resync
		// ends.
		return core.ResultRetry, nil
	}

	prefix, err := netmodel.ParsePrefix(row.Key)
	if err != nil {
		return core.ResultInvalid, fmt.Errorf("routeorch: parse prefix %q: %w", row.Key, err)
	}

	if row.Op == statedb.Del {
		if !r.synced.Has(prefix) {
			return core.ResultSuccess, nil
		}
		return r.removeRoute(ctx, prefix)
	}

	if row.Op != statedb.Set {
		r.logger.Warn("unknown route op", "key", row.Key, "op", row.Op)
		return core.ResultSuccess, nil
	}

	ips, err := netmodel.ParseIpAddresses(row.Fields[statedb.FieldNextHop])
	if err != nil {
		return core.ResultInvalid, fmt.Errorf("routeorch: parse nexthops for %q: %w", row.Key, err)
	}

	if ips.Size() == 0 {
		// No resolvable next hop; leave the route unprogrammed.
		return core.ResultSuccess, nil
	}

	if ifname := row.Fields[statedb.FieldIfName]; r.isManagementInterface(ifname) {
		// Routes pointed at a management/loopback interface are never
		// programmed; if one was previously installed, tear it down.
		if r.synced.Has(prefix) {
			return r.removeRoute(ctx, prefix)
		}
		return core.ResultSuccess, nil
	}

	if existing, ok := r.synced.Get(prefix); ok && existing.Equal(ips) {
		return core.ResultSuccess, nil
	}

	return r.addRoute(ctx, prefix, ips)
}

func (r *Reconciler) processResync(consumer *core.Consumer, row core.Row) (core.ProcessResult, error) {
	if row.Op == statedb.Set {
		r.synced.All(func(p netmodel.IpPrefix, _ netmodel.IpAddresses) bool {
			consumer.Pending().Upsert(core.Row{Key: p.String(), Op: statedb.Del})
			return true
		})
		r.resyncActive = true
		r.logger.Info("resync started")
	} else {
		r.resyncActive = false
		r.logger.Info("resync complete")
	}
	return core.ResultSuccess, nil
}

func (r *Reconciler) isManagementInterface(ifname string) bool {
	_, ok := r.managementInterfaces[ifname]
	return ok
}

// addRoute resolves nexthops to a hardware next-hop or group id and
// installs or updates prefix's route, notifying observers of the
// change.
func (r *Reconciler) addRoute(ctx context.Context, prefix netmodel.IpPrefix, nexthops netmodel.IpAddresses) (core.ProcessResult, error) {
	var nextHopID string

	if single, ok := nexthops.Single(); ok {
		id, ok := r.neigh.NextHopID(single)
		if !ok {
			return core.ResultRetry, nil
		}
		nextHopID = id
	} else {
		id, err := r.pool.GetOrCreate(ctx, nexthops)
		if err != nil {
			r.addTempRoute(ctx, prefix, nexthops)
			return core.ResultRetry, nil
		}
		nextHopID = id
	}

	existing, hadEntry := r.synced.Get(prefix)

	if !hadEntry {
		r.bulker.Create(prefix.String(), []hwapi.Attribute{{Name: hwapi.AttrNextHopID, Value: nextHopID}})
	} else {
		if existing.Size() == 0 {
			r.bulker.Set(prefix.String(), hwapi.Attribute{Name: hwapi.AttrPacketAction, Value: hwapi.PacketActionFwd})
		}
		r.bulker.Set(prefix.String(), hwapi.Attribute{Name: hwapi.AttrNextHopID, Value: nextHopID})

		r.releaseGroupRef(ctx, existing)
	}

	r.acquireGroupRef(nexthops)
	r.synced.Set(prefix, nexthops)
	r.observers.NotifyAdd(prefix, nexthops)

	return core.ResultSuccess, nil
}

// removeRoute tears down prefix's route: a default route is reset to
// a drop rather than deleted; any other prefix is erased outright.
func (r *Reconciler) removeRoute(ctx context.Context, prefix netmodel.IpPrefix) (core.ProcessResult, error) {
	existing, _ := r.synced.Get(prefix)

	if prefix.IsDefaultRoute() {
		r.bulker.Set(prefix.String(), hwapi.Attribute{Name: hwapi.AttrPacketAction, Value: hwapi.PacketActionDrop})
		r.bulker.Set(prefix.String(), hwapi.Attribute{Name: hwapi.AttrNextHopID, Value: hwapi.NextHopIDNull})
		r.synced.Set(prefix, netmodel.IpAddresses{})
	} else {
		// Logged before the erase, with the nexthops read from synced
		// at the top of this function.
		r.logger.Info("route removed", "prefix", prefix, "nexthops", existing)
		r.bulker.Remove(prefix.String())
		r.synced.Delete(prefix)
	}

	r.releaseGroupRef(ctx, existing)

	if prefix.IsDefaultRoute() {
		r.observers.NotifyAdd(prefix, netmodel.IpAddresses{})
	} else {
		r.observers.NotifyRemove(prefix)
	}

	return core.ResultSuccess, nil
}

// addTempRoute restricts the group to resolved members and recurses
// with a single, randomly chosen one so traffic still flows while the
// full group cannot yet be built.
func (r *Reconciler) addTempRoute(ctx context.Context, prefix netmodel.IpPrefix, nexthops netmodel.IpAddresses) {
	resolved := nexthops.Filter(r.neigh.HasNextHop)
	if resolved.Size() == 0 {
		return
	}

	members := resolved.Slice()
	chosen := members[r.rng.Intn(len(members))]

	if _, err := r.addRoute(ctx, prefix, netmodel.NewIpAddresses(chosen)); err != nil {
		r.logger.Warn("temp route failed", "prefix", prefix, "nexthop", chosen, "error", err)
	}
}

// acquireGroupRef accounts for a new route referencing ips. For a
// size-1 nexthop this is the only refcount the reconciler tracks; for
// a group, pool.GetOrCreate (already called by addRoute before this)
// has incremented the group's refcount, so there is nothing further
// to do here.
func (r *Reconciler) acquireGroupRef(ips netmodel.IpAddresses) {
	if single, ok := ips.Single(); ok {
		r.neigh.IncRefCount(single)
	}
}

func (r *Reconciler) releaseGroupRef(ctx context.Context, ips netmodel.IpAddresses) {
	if ips.Size() == 0 {
		return
	}
	if single, ok := ips.Single(); ok {
		r.neigh.DecRefCount(single)
		return
	}
	if err := r.pool.Release(ctx, ips); err != nil {
		r.logger.Warn("release next-hop group failed", "nexthops", ips, "error", err)
	}
}

// Package nhgroup implements the shared, reference-counted next-hop
// group (ECMP) pool.
package nhgroup

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"netorch/internal/hwapi"
	"netorch/internal/logging"
	"netorch/internal/neighbor"
	"netorch/internal/netmodel"
)

const defaultMaxGroups = 128

// Config controls pool-capacity discovery.
type Config struct {
	// Platform is the running platform identifier, e.g. the "platform"
	// environment variable.
	Platform string
	// GroupSizeDivisorPlatforms maps a platform-identifier substring
	// to the divisor to apply to the discovered raw capacity. The
	// default carries a single entry, {"mellanox": 32}.
	GroupSizeDivisorPlatforms map[string]int
}

type group struct {
	ips      netmodel.IpAddresses
	id       string
	refcount int
}

// Pool is the shared ECMP group cache.
type Pool struct {
	hw     hwapi.Client
	neigh  neighbor.Table
	logger *slog.Logger

	maxGroups int
	groups    map[string]*group // keyed by netmodel.IpAddresses.Key()
}

// New constructs a Pool, discovering its capacity from the hardware
// layer via GetSwitchAttribute(NUMBER_OF_ECMP_GROUPS). A failed or
// unparseable query falls back to the default of 128 and is not
// fatal.
func New(ctx context.Context, hw hwapi.Client, neigh neighbor.Table, cfg Config, logger *slog.Logger) *Pool {
	logger = logging.Default(logger).With("component", "nhgroup.pool")

	max := DiscoverCapacity(ctx, hw, cfg, logger)
	return &Pool{
		hw:        hw,
		neigh:     neigh,
		logger:    logger,
		maxGroups: max,
		groups:    make(map[string]*group),
	}
}

// DiscoverCapacity queries the hardware layer for its ECMP group
// capacity, applying any platform-specific divisor from cfg. Exported
// so a housekeeping job can recompute it off the pool's owning
// goroutine and hand the result to SetMaxGroups.
func DiscoverCapacity(ctx context.Context, hw hwapi.Client, cfg Config, logger *slog.Logger) int {
	raw, err := hw.GetSwitchAttribute(ctx, hwapi.AttrNumberOfECMPGroups)
	max := defaultMaxGroups
	if err == nil {
		if parsed, convErr := strconv.Atoi(raw); convErr == nil {
			max = parsed
		} else {
			logger.Warn("failed to parse ECMP group capacity, using default", "value", raw, "default", defaultMaxGroups)
		}
	} else {
		logger.Warn("failed to query ECMP group capacity, using default", "error", err, "default", defaultMaxGroups)
	}

	for substr, divisor := range cfg.GroupSizeDivisorPlatforms {
		if divisor <= 0 {
			continue
		}
		if substringMatch(cfg.Platform, substr) {
			max /= divisor
			logger.Info("adjusted ECMP group capacity for platform", "platform", cfg.Platform, "divisor", divisor, "max", max)
			break
		}
	}
	return max
}

func substringMatch(platform, substr string) bool {
	if platform == "" || substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(platform), strings.ToLower(substr))
}

// SetMaxGroups updates the pool's capacity ceiling. Pool has no
// internal mutex — it is owned by a single goroutine (the event loop's
// Execute) — so callers that recompute capacity on another goroutine
// (housekeeping's capacity-recheck job) must hand the value back for
// application on the owning goroutine rather than calling this directly
// from the job itself.
func (p *Pool) SetMaxGroups(n int) {
	p.maxGroups = n
}

// MaxGroups returns the pool's current capacity ceiling.
func (p *Pool) MaxGroups() int {
	return p.maxGroups
}

// Has reports whether a group for ips already exists.
func (p *Pool) Has(ips netmodel.IpAddresses) bool {
	_, ok := p.groups[ips.Key()]
	return ok
}

// ID returns the hardware group id for ips, if it exists.
func (p *Pool) ID(ips netmodel.IpAddresses) (string, bool) {
	g, ok := p.groups[ips.Key()]
	if !ok {
		return "", false
	}
	return g.id, true
}

// RefCountIsZero reports whether ips's entry, if any, has a zero
// refcount. Release deletes an entry as soon as its refcount reaches
// zero, so an existing entry never reports true.
func (p *Pool) RefCountIsZero(ips netmodel.IpAddresses) bool {
	g, ok := p.groups[ips.Key()]
	return ok && g.refcount == 0
}

// GetOrCreate returns the group id for ips, creating it if absent.
// Every member must have a resolved neighbor or the call fails without
// partially creating the group. Fails if the pool is at capacity.
func (p *Pool) GetOrCreate(ctx context.Context, ips netmodel.IpAddresses) (string, error) {
	if g, ok := p.groups[ips.Key()]; ok {
		g.refcount++
		return g.id, nil
	}

	for _, addr := range ips.Slice() {
		if !p.neigh.HasNextHop(addr) {
			return "", fmt.Errorf("nhgroup: member %s unresolved", addr)
		}
	}

	if len(p.groups) >= p.maxGroups {
		return "", fmt.Errorf("nhgroup: pool at capacity (%d groups)", p.maxGroups)
	}

	id, err := p.hw.CreateNextHopGroup(ctx)
	if err != nil {
		return "", fmt.Errorf("nhgroup: create group: %w", err)
	}
	for _, addr := range ips.Slice() {
		if err := p.hw.CreateNextHopGroupMember(ctx, id, addr.String()); err != nil {
			return "", fmt.Errorf("nhgroup: add member %s: %w", addr, err)
		}
		p.neigh.IncRefCount(addr)
	}

	p.groups[ips.Key()] = &group{ips: ips, id: id, refcount: 1}
	return id, nil
}

// Acquire increments the refcount of an existing entry. The caller
// must already know the entry exists (e.g. via Has).
func (p *Pool) Acquire(ips netmodel.IpAddresses) {
	if g, ok := p.groups[ips.Key()]; ok {
		g.refcount++
	}
}

// Release decrements ips's refcount; at zero it deletes the hardware
// group, decrements every member's neighbor refcount, and removes the
// pool entry.
func (p *Pool) Release(ctx context.Context, ips netmodel.IpAddresses) error {
	g, ok := p.groups[ips.Key()]
	if !ok {
		return nil
	}
	if g.refcount <= 0 {
		panic(fmt.Sprintf("nhgroup: refcount underflow releasing %s", ips))
	}
	g.refcount--
	if g.refcount > 0 {
		return nil
	}

	delete(p.groups, ips.Key())
	for _, addr := range ips.Slice() {
		if err := p.hw.RemoveNextHopGroupMember(ctx, g.id, addr.String()); err != nil {
			p.logger.Warn("remove group member failed", "group", g.id, "member", addr, "error", err)
		}
		p.neigh.DecRefCount(addr)
	}
	if err := p.hw.RemoveNextHopGroup(ctx, g.id); err != nil {
		return err
	}
	return nil
}

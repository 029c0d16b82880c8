// Package lpmobserve implements the observer registry: callers attach
// to a destination IP and are notified whenever the longest-prefix
// match for that destination changes.
package lpmobserve

import (
	"net/netip"
	"sort"
	"sync"

	"netorch/internal/netmodel"
)

// Observer receives longest-prefix-match updates for the destination
// it was attached to.
type Observer interface {
	Update(prefix netmodel.IpPrefix, nexthops netmodel.IpAddresses)
}

// RouteEntry is a single (prefix, nexthops) pair, used both to seed a
// newly attached destination's routeTable and as the notify payload.
type RouteEntry struct {
	Prefix   netmodel.IpPrefix
	NextHops netmodel.IpAddresses
}

type destEntry struct {
	// routeTable holds every currently matching prefix for this
	// destination, sorted ascending by IpPrefix.Compare so the last
	// element is always the longest-prefix match.
	routeTable []RouteEntry
	observers  []Observer
}

func (e *destEntry) find(prefix netmodel.IpPrefix) (int, bool) {
	i := sort.Search(len(e.routeTable), func(i int) bool {
		return e.routeTable[i].Prefix.Compare(prefix) >= 0
	})
	if i < len(e.routeTable) && e.routeTable[i].Prefix.Compare(prefix) == 0 {
		return i, true
	}
	return i, false
}

func (e *destEntry) upsert(entry RouteEntry) {
	i, found := e.find(entry.Prefix)
	if found {
		e.routeTable[i] = entry
		return
	}
	e.routeTable = append(e.routeTable, RouteEntry{})
	copy(e.routeTable[i+1:], e.routeTable[i:])
	e.routeTable[i] = entry
}

func (e *destEntry) erase(prefix netmodel.IpPrefix) (RouteEntry, bool) {
	i, found := e.find(prefix)
	if !found {
		return RouteEntry{}, false
	}
	removed := e.routeTable[i]
	e.routeTable = append(e.routeTable[:i], e.routeTable[i+1:]...)
	return removed, true
}

// max returns the longest-prefix match: the last entry in ascending
// order. The caller must ensure routeTable is non-empty (the default
// route guarantees this once seeded).
func (e *destEntry) max() RouteEntry {
	return e.routeTable[len(e.routeTable)-1]
}

// Registry is the observer registry shared by the RouteReconciler.
type Registry struct {
	mu      sync.Mutex
	entries map[netip.Addr]*destEntry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[netip.Addr]*destEntry)}
}

// Attach registers observer for dst. On first attachment for dst, the
// registry's per-destination routeTable is seeded from matching, which
// the caller must have already filtered to prefixes whose subnet
// contains dst (the registry has no access to the reconciler's synced
// routes). The observer is notified immediately with the current
// longest match, if any.
func (r *Registry) Attach(observer Observer, dst netip.Addr, matching []RouteEntry) {
	r.mu.Lock()
	entry, ok := r.entries[dst]
	if !ok {
		entry = &destEntry{}
		for _, m := range matching {
			entry.upsert(m)
		}
		r.entries[dst] = entry
	}
	entry.observers = append(entry.observers, observer)

	var notify *RouteEntry
	if len(entry.routeTable) > 0 {
		m := entry.max()
		notify = &m
	}
	r.mu.Unlock()

	if notify != nil {
		observer.Update(notify.Prefix, notify.NextHops)
	}
}

// Detach removes observer from dst's observer list — the same list
// Attach appended it to and NotifyAdd/NotifyRemove iterate, so a
// detached observer can never be notified again.
func (r *Registry) Detach(observer Observer, dst netip.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[dst]
	if !ok {
		return
	}
	for i, o := range entry.observers {
		if o == observer {
			entry.observers = append(entry.observers[:i], entry.observers[i+1:]...)
			break
		}
	}
}

// NotifyAdd records that prefix now maps to nexthops and notifies
// every destination whose subnet containment matches prefix, if the
// change affects that destination's longest-prefix match.
func (r *Registry) NotifyAdd(prefix netmodel.IpPrefix, nexthops netmodel.IpAddresses) {
	r.mu.Lock()
	type pending struct {
		observers []Observer
		entry     RouteEntry
	}
	var toNotify []pending

	for dst, entry := range r.entries {
		if !prefix.Contains(dst) {
			continue
		}

		i, found := entry.find(prefix)
		updateRequired := false
		if !found {
			if len(entry.routeTable) == 0 || entry.max().Prefix.Compare(prefix) < 0 {
				updateRequired = true
			}
			entry.upsert(RouteEntry{Prefix: prefix, NextHops: nexthops})
		} else if !entry.routeTable[i].NextHops.Equal(nexthops) {
			wasMax := entry.max().Prefix.Compare(prefix) == 0
			entry.routeTable[i].NextHops = nexthops
			if wasMax {
				updateRequired = true
			}
		}

		if updateRequired {
			toNotify = append(toNotify, pending{
				observers: append([]Observer(nil), entry.observers...),
				entry:     RouteEntry{Prefix: prefix, NextHops: nexthops},
			})
		}
	}
	r.mu.Unlock()

	for _, p := range toNotify {
		for _, o := range p.observers {
			o.Update(p.entry.Prefix, p.entry.NextHops)
		}
	}
}

// NotifyRemove records that prefix no longer exists and notifies every
// matching destination whose longest match changes as a result.
func (r *Registry) NotifyRemove(prefix netmodel.IpPrefix) {
	r.mu.Lock()
	type pending struct {
		observers []Observer
		entry     RouteEntry
	}
	var toNotify []pending

	for dst, entry := range r.entries {
		if !prefix.Contains(dst) {
			continue
		}
		if len(entry.routeTable) == 0 {
			continue
		}
		wasMax := entry.max().Prefix.Compare(prefix) == 0
		if _, found := entry.erase(prefix); !found {
			continue
		}
		if !wasMax {
			continue
		}

		// Default routes guarantee routeTable is never empty here.
		newMax := entry.max()
		toNotify = append(toNotify, pending{
			observers: append([]Observer(nil), entry.observers...),
			entry:     newMax,
		})
	}
	r.mu.Unlock()

	for _, p := range toNotify {
		for _, o := range p.observers {
			o.Update(p.entry.Prefix, p.entry.NextHops)
		}
	}
}

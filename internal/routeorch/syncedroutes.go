package routeorch

import (
	"net/netip"

	"github.com/gaissmai/bart"

	"netorch/internal/netmodel"
)

// SyncedRoutes is the reconciler's view of hardware-programmed state:
// for each prefix, the IpAddresses currently installed (possibly
// empty, for a default route programmed as drop). Backed by a
// longest-prefix-match trie so exact lookups, inserts, and deletes are
// all efficient; the LPM capability itself is unused by the
// reconciler (which tracks longest match incrementally through the
// observer registry) but is exposed for debug tooling.
type SyncedRoutes struct {
	t bart.Table[netmodel.IpAddresses]
}

// Get returns the IpAddresses synced for prefix, if any.
func (s *SyncedRoutes) Get(prefix netmodel.IpPrefix) (netmodel.IpAddresses, bool) {
	return s.t.Get(prefix.Netip())
}

// Set records prefix as synced to ips.
func (s *SyncedRoutes) Set(prefix netmodel.IpPrefix, ips netmodel.IpAddresses) {
	s.t.Insert(prefix.Netip(), ips)
}

// Delete removes prefix from the synced set entirely. Default
// prefixes are never deleted by the reconciler (only re-Set to the
// empty set).
func (s *SyncedRoutes) Delete(prefix netmodel.IpPrefix) {
	s.t.Delete(prefix.Netip())
}

// Has reports whether prefix currently has a synced entry.
func (s *SyncedRoutes) Has(prefix netmodel.IpPrefix) bool {
	_, ok := s.t.Get(prefix.Netip())
	return ok
}

// Lookup returns the longest-prefix match's IpAddresses for dst. The
// reconciler itself never calls this — it tracks longest match
// incrementally through lpmobserve.Registry — it exists for debug
// tooling (netorchctl route lpm).
func (s *SyncedRoutes) Lookup(dst netip.Addr) (netmodel.IpAddresses, bool) {
	return s.t.Lookup(dst)
}

// Len returns the number of synced prefixes.
func (s *SyncedRoutes) Len() int { return s.t.Size() }

// All iterates every synced (prefix, nexthops) pair.
func (s *SyncedRoutes) All(yield func(netmodel.IpPrefix, netmodel.IpAddresses) bool) {
	for pfx, ips := range s.t.All() {
		if !yield(netmodel.PrefixFromNetip(pfx), ips) {
			return
		}
	}
}


package netmodel

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
)

// IpAddresses is an unordered set of next-hop IP addresses. Equality is
// set equality: size 0 means "drop", size 1 is a simple
// next-hop, size >= 2 is an ECMP group.
//
// The zero value is the empty set.
type IpAddresses struct {
	addrs []netip.Addr // sorted ascending, deduplicated
}

// NewIpAddresses builds a set from individual addresses, deduplicating.
func NewIpAddresses(addrs ...netip.Addr) IpAddresses {
	cp := slices.Clone(addrs)
	slices.SortFunc(cp, netip.Addr.Compare)
	cp = slices.CompactFunc(cp, func(a, b netip.Addr) bool { return a == b })
	return IpAddresses{addrs: cp}
}

// ParseIpAddresses parses a comma-separated list of IPs, the format
// used by ROUTE_TABLE's "nexthop" field. An empty string
// yields the empty set.
func ParseIpAddresses(csv string) (IpAddresses, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return IpAddresses{}, nil
	}
	parts := strings.Split(csv, ",")
	addrs := make([]netip.Addr, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, err := netip.ParseAddr(part)
		if err != nil {
			return IpAddresses{}, fmt.Errorf("netmodel: parse nexthop %q: %w", part, err)
		}
		addrs = append(addrs, a)
	}
	return NewIpAddresses(addrs...), nil
}

// Size returns the number of distinct addresses in the set.
func (s IpAddresses) Size() int { return len(s.addrs) }

// Equal reports set equality.
func (s IpAddresses) Equal(o IpAddresses) bool {
	return slices.Equal(s.addrs, o.addrs)
}

// Contains reports whether a is a member of the set.
func (s IpAddresses) Contains(a netip.Addr) bool {
	_, found := slices.BinarySearchFunc(s.addrs, a, netip.Addr.Compare)
	return found
}

// Slice returns the members in canonical (sorted) order. The caller
// must not mutate the result.
func (s IpAddresses) Slice() []netip.Addr { return s.addrs }

// Single returns the lone member of a size-1 set.
func (s IpAddresses) Single() (netip.Addr, bool) {
	if len(s.addrs) != 1 {
		return netip.Addr{}, false
	}
	return s.addrs[0], true
}

// Key returns a canonical string usable as a comparable map key (the
// NextHopGroup pool is keyed by IpAddresses, but a slice isn't
// comparable in Go).
func (s IpAddresses) Key() string {
	return s.String()
}

// String renders the set as its sorted, comma-joined members. For a
// size-1 set this is simply the member's address string.
func (s IpAddresses) String() string {
	strs := make([]string, len(s.addrs))
	for i, a := range s.addrs {
		strs[i] = a.String()
	}
	return strings.Join(strs, ",")
}

// Filter returns the subset of addresses for which keep returns true,
// preserving sorted order. Used by the temp-route fallback to restrict
// a group to its resolved members.
func (s IpAddresses) Filter(keep func(netip.Addr) bool) IpAddresses {
	out := make([]netip.Addr, 0, len(s.addrs))
	for _, a := range s.addrs {
		if keep(a) {
			out = append(out, a)
		}
	}
	return IpAddresses{addrs: out}
}

// Package netmodel implements the IP data model shared by the
// reconciliation core: IpPrefix (with the total order the longest-prefix
// match machinery depends on) and IpAddresses (an unordered next-hop
// set compared by set equality).
package netmodel

import (
	"fmt"
	"net/netip"
)

// IpPrefix is an IP network prefix: (family, address, prefix-length).
// Total order is family, then address, then length — this
// is what makes the last element of lpmobserve's ascending per-destination
// routeTable the longest-prefix match for that destination.
type IpPrefix struct {
	p netip.Prefix
}

// ParsePrefix parses a CIDR string ("10.0.0.0/24", "::/0") into an
// IpPrefix, masking host bits per standard route-table semantics.
func ParsePrefix(s string) (IpPrefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return IpPrefix{}, fmt.Errorf("netmodel: parse prefix %q: %w", s, err)
	}
	return IpPrefix{p: p.Masked()}, nil
}

// PrefixFromNetip wraps an already-validated netip.Prefix.
func PrefixFromNetip(p netip.Prefix) IpPrefix {
	return IpPrefix{p: p.Masked()}
}

// Netip returns the underlying netip.Prefix, e.g. for use as a
// bart.Table key.
func (p IpPrefix) Netip() netip.Prefix { return p.p }

func (p IpPrefix) String() string { return p.p.String() }

// IsValid reports whether p was constructed from a valid prefix.
func (p IpPrefix) IsValid() bool { return p.p.IsValid() }

// Bits returns the prefix length.
func (p IpPrefix) Bits() int { return p.p.Bits() }

// Compare orders prefixes by family (v4 before v6), then address, then
// prefix length.
func (p IpPrefix) Compare(o IpPrefix) int {
	if af, of := familyRank(p.p.Addr()), familyRank(o.p.Addr()); af != of {
		return af - of
	}
	if c := p.p.Addr().Compare(o.p.Addr()); c != 0 {
		return c
	}
	return p.p.Bits() - o.p.Bits()
}

func familyRank(a netip.Addr) int {
	if a.Is4() {
		return 0
	}
	return 1
}

// Contains reports whether a falls within p's subnet (used by the
// observer registry's subnet-containment test).
func (p IpPrefix) Contains(a netip.Addr) bool { return p.p.Contains(a) }

// IsDefaultRoute reports whether p is 0.0.0.0/0 or ::/0.
func (p IpPrefix) IsDefaultRoute() bool { return p.p.Bits() == 0 }

// DefaultV4 and DefaultV6 are the two default-route prefixes that must
// always be present in SyncedRoutes.
var (
	DefaultV4 = IpPrefix{p: netip.MustParsePrefix("0.0.0.0/0")}
	DefaultV6 = IpPrefix{p: netip.MustParsePrefix("::/0")}
)

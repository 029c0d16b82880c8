package routeorch

import (
	"context"
	"math/rand"
	"net/netip"
	"testing"

	"netorch/internal/bulker"
	"netorch/internal/hwapi"
	"netorch/internal/hwapi/hwtest"
	"netorch/internal/lpmobserve"
	"netorch/internal/neighbor"
	"netorch/internal/netmodel"
	"netorch/internal/nhgroup"
	"netorch/internal/statedb"
)

type testHarness struct {
	hw        *hwtest.Fake
	neigh     *neighbor.InMemoryTable
	pool      *nhgroup.Pool
	blk       *bulker.Bulker
	observers *lpmobserve.Registry
	table     *fakeTable
	r         *Reconciler
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()
	hw := hwtest.New()
	neigh := neighbor.NewInMemoryTable()
	pool := nhgroup.New(context.Background(), hw, neigh, nhgroup.Config{}, nil)
	blk := bulker.New(hw, nil)
	observers := lpmobserve.New()
	table := newFakeTable("ROUTE_TABLE", 10)

	r, err := New(context.Background(), hw, pool, blk, observers, neigh, table, cfg, rand.New(rand.NewSource(42)), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hw.Reset() // clear the default-route bootstrap calls

	return &testHarness{hw: hw, neigh: neigh, pool: pool, blk: blk, observers: observers, table: table, r: r}
}

func (h *testHarness) tick(t *testing.T) {
	t.Helper()
	if err := h.r.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
}

func (h *testHarness) setRoute(prefix, nexthop string) {
	h.table.push(statedb.Notification{Key: prefix, Op: statedb.Set, Fields: map[string]string{statedb.FieldNextHop: nexthop}})
}

func (h *testHarness) delRoute(prefix string) {
	h.table.push(statedb.Notification{Key: prefix, Op: statedb.Del})
}

type recordingObserver struct {
	prefix   netmodel.IpPrefix
	nexthops netmodel.IpAddresses
	calls    int
}

func (o *recordingObserver) Update(prefix netmodel.IpPrefix, nexthops netmodel.IpAddresses) {
	o.prefix, o.nexthops, o.calls = prefix, nexthops, o.calls+1
}

func TestInstallSingleNextHopRoute(t *testing.T) {
	h := newHarness(t, Config{})
	h.neigh.Resolve(netip.MustParseAddr("1.1.1.1"), "nh-1")

	obs := &recordingObserver{}
	h.r.Attach(obs, netip.MustParseAddr("10.0.0.5"))
	obs.calls = 0 // clear the attach-time notify (the default route), count only the install's

	h.setRoute("10.0.0.0/24", "1.1.1.1")
	h.tick(t)

	found := false
	for _, c := range h.hw.Calls {
		if c.Method == "BulkCreateRoute" {
			found = true
			if len(c.Entries) != 1 || c.Entries[0].Prefix != "10.0.0.0/24" {
				t.Errorf("unexpected create entries: %+v", c.Entries)
			}
			if len(c.Attrs) != 1 || c.Attrs[0][0].Name != hwapi.AttrNextHopID || c.Attrs[0][0].Value != "nh-1" {
				t.Errorf("unexpected create attrs: %+v", c.Attrs)
			}
		}
	}
	if !found {
		t.Fatal("expected a BulkCreateRoute call")
	}

	if obs.calls != 1 || obs.prefix.String() != "10.0.0.0/24" {
		t.Errorf("expected observer notified with 10.0.0.0/24, got %+v", obs)
	}
}

func TestInstallEcmpGroupRoute(t *testing.T) {
	h := newHarness(t, Config{})
	h.neigh.Resolve(netip.MustParseAddr("1.1.1.1"), "nh-1")
	h.neigh.Resolve(netip.MustParseAddr("2.2.2.2"), "nh-2")

	h.setRoute("10.0.0.0/24", "1.1.1.1,2.2.2.2")
	h.tick(t)

	ips, _ := netmodel.ParseIpAddresses("1.1.1.1,2.2.2.2")
	if !h.pool.Has(ips) {
		t.Fatal("expected a next-hop group to be created")
	}
	if h.pool.RefCountIsZero(ips) {
		t.Error("expected the new group's refcount to be 1, not 0")
	}

	createFound := false
	for _, c := range h.hw.Calls {
		if c.Method == "BulkCreateRoute" {
			createFound = true
		}
	}
	if !createFound {
		t.Fatal("expected a BulkCreateRoute call for the group route")
	}
}

func TestUpdateGroupRouteToSingleReleasesGroup(t *testing.T) {
	h := newHarness(t, Config{})
	h.neigh.Resolve(netip.MustParseAddr("1.1.1.1"), "nh-1")
	h.neigh.Resolve(netip.MustParseAddr("2.2.2.2"), "nh-2")

	h.setRoute("10.0.0.0/24", "1.1.1.1,2.2.2.2")
	h.tick(t)

	h.setRoute("10.0.0.0/24", "1.1.1.1")
	h.tick(t)

	setFound := false
	for _, c := range h.hw.Calls {
		if c.Method == "BulkSetRouteAttribute" && c.Attr.Name == hwapi.AttrNextHopID && c.Attr.Value == "nh-1" {
			setFound = true
		}
	}
	if !setFound {
		t.Error("expected a BulkSetRouteAttribute call setting next hop to nh-1")
	}

	group, _ := netmodel.ParseIpAddresses("1.1.1.1,2.2.2.2")
	if h.pool.Has(group) {
		t.Error("expected the now-unreferenced group to be deleted")
	}
	removeFound := false
	for _, m := range h.hw.MethodSequence() {
		if m == "RemoveNextHopGroup" {
			removeFound = true
		}
	}
	if !removeFound {
		t.Error("expected a RemoveNextHopGroup call")
	}
}

func TestResyncWithIdenticalRouteCausesNoHardwareMutation(t *testing.T) {
	h := newHarness(t, Config{})
	h.neigh.Resolve(netip.MustParseAddr("1.1.1.1"), "nh-1")

	h.setRoute("10.0.0.0/24", "1.1.1.1")
	h.tick(t)
	h.hw.Reset()

	h.table.push(statedb.Notification{Key: "resync", Op: statedb.Set})
	h.setRoute("10.0.0.0/24", "1.1.1.1")
	h.table.push(statedb.Notification{Key: "resync", Op: statedb.Del})
	h.tick(t)

	for _, c := range h.hw.Calls {
		if (c.Method == "BulkCreateRoute" || c.Method == "BulkRemoveRoute" || c.Method == "BulkSetRouteAttribute") && len(c.Entries) > 0 && c.Entries[0].Prefix == "10.0.0.0/24" {
			t.Errorf("expected no hardware mutation for an unchanged route across resync, got %+v", c)
		}
	}
}

func TestTempRouteInstalledWhenGroupMemberUnresolved(t *testing.T) {
	h := newHarness(t, Config{})
	h.neigh.Resolve(netip.MustParseAddr("1.1.1.1"), "nh-1")
	// 2.2.2.2 deliberately left unresolved.

	h.setRoute("10.0.0.0/24", "1.1.1.1,2.2.2.2")
	h.tick(t)

	createFound := false
	for _, c := range h.hw.Calls {
		if c.Method == "BulkCreateRoute" && len(c.Attrs) > 0 && c.Attrs[0][0].Value == "nh-1" {
			createFound = true
		}
	}
	if !createFound {
		t.Fatal("expected a temp route installed pointing at the resolved member")
	}

	// Once the missing member resolves and the row is retried, the
	// full group should install.
	h.neigh.Resolve(netip.MustParseAddr("2.2.2.2"), "nh-2")
	h.hw.Reset()
	h.tick(t)

	group, _ := netmodel.ParseIpAddresses("1.1.1.1,2.2.2.2")
	if !h.pool.Has(group) {
		t.Error("expected the full group to install once all members resolve")
	}
}

func TestDeleteDefaultRouteKeepsEmptyEntryInSynced(t *testing.T) {
	h := newHarness(t, Config{})

	h.delRoute("::/0")
	h.tick(t)

	if !h.r.synced.Has(netmodel.DefaultV6) {
		t.Fatal("expected the default route to remain present in synced")
	}
	ips, _ := h.r.synced.Get(netmodel.DefaultV6)
	if ips.Size() != 0 {
		t.Errorf("expected empty nexthops for the dropped default route, got %v", ips)
	}

	var dropIdx, nullIdx = -1, -1
	for i, c := range h.hw.Calls {
		if c.Method == "BulkSetRouteAttribute" && c.Attr.Name == hwapi.AttrPacketAction && c.Attr.Value == hwapi.PacketActionDrop {
			dropIdx = i
		}
		if c.Method == "BulkSetRouteAttribute" && c.Attr.Name == hwapi.AttrNextHopID && c.Attr.Value == hwapi.NextHopIDNull {
			nullIdx = i
		}
	}
	if dropIdx == -1 || nullIdx == -1 || dropIdx > nullIdx {
		t.Errorf("expected DROP set before NEXT_HOP_ID=NULL set, got drop=%d null=%d", dropIdx, nullIdx)
	}
}

func TestRouteOnManagementInterfaceIsNotProgrammed(t *testing.T) {
	h := newHarness(t, Config{})
	h.neigh.Resolve(netip.MustParseAddr("1.1.1.1"), "nh-1")

	h.table.push(statedb.Notification{
		Key: "10.0.0.0/24",
		Op:  statedb.Set,
		Fields: map[string]string{
			statedb.FieldNextHop: "1.1.1.1",
			statedb.FieldIfName:  "eth0",
		},
	})
	h.tick(t)

	if h.r.synced.Has(mustParsePrefixT(t, "10.0.0.0/24")) {
		t.Error("expected the management-interface route to never be synced")
	}
	for _, c := range h.hw.Calls {
		if c.Method == "BulkCreateRoute" {
			t.Error("expected no hardware create for a management-interface route")
		}
	}
}

func mustParsePrefixT(t *testing.T, s string) netmodel.IpPrefix {
	t.Helper()
	p, err := netmodel.ParsePrefix(s)
	if err != nil {
		t.Fatalf("ParsePrefix(%q): %v", s, err)
	}
	return p
}

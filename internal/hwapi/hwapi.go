// Package hwapi defines the hardware-abstraction surface the
// orchestration core requires: bulk route mutation, non-bulk
// primitives used only at startup, next-hop-group lifecycle, and
// switch-attribute get/set including the post-dispatch flush.
package hwapi

import "context"

// Attribute is a single (name, value) hardware attribute, e.g.
// {"NEXT_HOP_ID", "17"} or {"PACKET_ACTION", "DROP"}.
type Attribute struct {
	Name  string
	Value string
}

// Status is the per-row outcome of a bulk call.
type Status int

const (
	StatusOK Status = iota
	StatusFailure
)

// RouteEntry identifies a route by its prefix string (e.g.
// "10.0.0.0/24" or "::/0").
type RouteEntry struct {
	Prefix string
}

// Switch attribute names.
const (
	AttrNumberOfECMPGroups = "NUMBER_OF_ECMP_GROUPS"
	AttrFlush              = "FLUSH"
)

// Route attribute names used by routeorch.
const (
	AttrNextHopID     = "NEXT_HOP_ID"
	AttrPacketAction  = "PACKET_ACTION"
	PacketActionDrop  = "DROP"
	PacketActionFwd   = "FORWARD"
	NextHopIDNull     = "NULL"
)

// Client is the full hardware-abstraction surface. Production code
// talks to it through hwapi/grpcclient; tests talk to it through
// hwapi/hwtest.
type Client interface {
	// BulkCreateRoute creates many routes in one call. ignoreErrors
	// requests per-row statuses instead of aborting on the first
	// failure.
	BulkCreateRoute(ctx context.Context, entries []RouteEntry, attrs [][]Attribute, ignoreErrors bool) ([]Status, error)
	// BulkSetRouteAttribute sets one attribute per row in one call.
	BulkSetRouteAttribute(ctx context.Context, entries []RouteEntry, attrs []Attribute, ignoreErrors bool) ([]Status, error)
	// BulkRemoveRoute removes many routes in one call.
	BulkRemoveRoute(ctx context.Context, entries []RouteEntry, ignoreErrors bool) ([]Status, error)

	// RemoveRoute and CreateRoute are non-bulk; used only at startup
	// to install the default drop routes.
	RemoveRoute(ctx context.Context, entry RouteEntry) error
	CreateRoute(ctx context.Context, entry RouteEntry, attrs []Attribute) error

	// CreateNextHopGroup returns a hardware group id.
	CreateNextHopGroup(ctx context.Context) (string, error)
	RemoveNextHopGroup(ctx context.Context, groupID string) error
	CreateNextHopGroupMember(ctx context.Context, groupID string, nextHop string) error
	RemoveNextHopGroupMember(ctx context.Context, groupID string, nextHop string) error

	// GetSwitchAttribute reads a capability/capacity attribute.
	GetSwitchAttribute(ctx context.Context, name string) (string, error)
	// SetSwitchAttribute sets a switch-wide attribute; used with
	// AttrFlush after every event-loop dispatch.
	SetSwitchAttribute(ctx context.Context, name string, value string) error

	// Flush is the pipeline flush primitive the event loop calls
	// after every dispatch; implementations typically call
	// SetSwitchAttribute(ctx, AttrFlush, "").
	Flush(ctx context.Context) error
}

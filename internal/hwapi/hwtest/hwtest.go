// Package hwtest provides an in-memory hwapi.Client fake that records
// every call in order, for use by bulker/nhgroup/routeorch tests that
// assert on call shape and ordering.
package hwtest

import (
	"context"
	"fmt"
	"sync"

	"netorch/internal/hwapi"
)

// Call records one invocation against the fake.
type Call struct {
	Method  string
	Entries []hwapi.RouteEntry
	Attrs   [][]hwapi.Attribute
	Attr    hwapi.Attribute
	GroupID string
	NextHop string
}

// Fake is a recording, in-memory hwapi.Client.
type Fake struct {
	mu sync.Mutex

	Calls []Call

	// NumberOfECMPGroups is returned by GetSwitchAttribute for
	// AttrNumberOfECMPGroups. New sets it to "128"; tests overwrite it
	// directly (a non-numeric value exercises the caller's fallback).
	NumberOfECMPGroups string

	// FailCreateGroup, when true, makes CreateNextHopGroup return an
	// error (simulating a full pool / hardware rejection).
	FailCreateGroup bool

	// FlushErr, when set, is returned by Flush.
	FlushErr error

	// RemoveGroupErr, when set, is returned by RemoveNextHopGroup.
	RemoveGroupErr error

	nextGroupID int
}

var _ hwapi.Client = (*Fake)(nil)

// New returns a ready-to-use Fake with a default capacity of 128.
func New() *Fake {
	return &Fake{NumberOfECMPGroups: "128"}
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.Calls = append(f.Calls, c)
	f.mu.Unlock()
}

func (f *Fake) BulkCreateRoute(_ context.Context, entries []hwapi.RouteEntry, attrs [][]hwapi.Attribute, _ bool) ([]hwapi.Status, error) {
	f.record(Call{Method: "BulkCreateRoute", Entries: entries, Attrs: attrs})
	statuses := make([]hwapi.Status, len(entries))
	return statuses, nil
}

func (f *Fake) BulkSetRouteAttribute(_ context.Context, entries []hwapi.RouteEntry, attrs []hwapi.Attribute, _ bool) ([]hwapi.Status, error) {
	for i, e := range entries {
		f.record(Call{Method: "BulkSetRouteAttribute", Entries: []hwapi.RouteEntry{e}, Attr: attrs[i]})
	}
	return make([]hwapi.Status, len(entries)), nil
}

func (f *Fake) BulkRemoveRoute(_ context.Context, entries []hwapi.RouteEntry, _ bool) ([]hwapi.Status, error) {
	f.record(Call{Method: "BulkRemoveRoute", Entries: entries})
	return make([]hwapi.Status, len(entries)), nil
}

func (f *Fake) RemoveRoute(_ context.Context, entry hwapi.RouteEntry) error {
	f.record(Call{Method: "RemoveRoute", Entries: []hwapi.RouteEntry{entry}})
	return nil
}

func (f *Fake) CreateRoute(_ context.Context, entry hwapi.RouteEntry, attrs []hwapi.Attribute) error {
	f.record(Call{Method: "CreateRoute", Entries: []hwapi.RouteEntry{entry}, Attrs: [][]hwapi.Attribute{attrs}})
	return nil
}

func (f *Fake) CreateNextHopGroup(context.Context) (string, error) {
	if f.FailCreateGroup {
		return "", fmt.Errorf("hwtest: group creation rejected")
	}
	f.mu.Lock()
	f.nextGroupID++
	id := fmt.Sprintf("grp-%d", f.nextGroupID)
	f.mu.Unlock()
	f.record(Call{Method: "CreateNextHopGroup", GroupID: id})
	return id, nil
}

func (f *Fake) RemoveNextHopGroup(_ context.Context, groupID string) error {
	f.record(Call{Method: "RemoveNextHopGroup", GroupID: groupID})
	return f.RemoveGroupErr
}

func (f *Fake) CreateNextHopGroupMember(_ context.Context, groupID string, nextHop string) error {
	f.record(Call{Method: "CreateNextHopGroupMember", GroupID: groupID, NextHop: nextHop})
	return nil
}

func (f *Fake) RemoveNextHopGroupMember(_ context.Context, groupID string, nextHop string) error {
	f.record(Call{Method: "RemoveNextHopGroupMember", GroupID: groupID, NextHop: nextHop})
	return nil
}

func (f *Fake) GetSwitchAttribute(_ context.Context, name string) (string, error) {
	if name == hwapi.AttrNumberOfECMPGroups {
		return f.NumberOfECMPGroups, nil
	}
	return "", fmt.Errorf("hwtest: unknown attribute %q", name)
}

func (f *Fake) SetSwitchAttribute(_ context.Context, name string, value string) error {
	f.record(Call{Method: "SetSwitchAttribute", Attr: hwapi.Attribute{Name: name, Value: value}})
	return nil
}

func (f *Fake) Flush(context.Context) error {
	f.record(Call{Method: "Flush"})
	return f.FlushErr
}

// MethodSequence returns the Method field of every recorded call, in
// order, for assertions like flush-ordering tests.
func (f *Fake) MethodSequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = c.Method
	}
	return out
}

// Reset clears the recorded call log without touching configuration.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.Calls = nil
	f.mu.Unlock()
}

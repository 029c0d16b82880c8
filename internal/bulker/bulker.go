// Package bulker implements the write-side batching stage that
// coalesces per-route create/set/remove intents into bulk hardware
// calls.
package bulker

import (
	"context"
	"log/slog"

	"netorch/internal/hwapi"
	"netorch/internal/logging"
)

// Bulker accumulates pending route mutations across creating, setting,
// and removing collections and flushes them as three bulk calls, in
// that fixed order: removes, then creates, then sets — a
// prefix being replaced frees hardware capacity before the replacement
// tries to allocate.
type Bulker struct {
	hw     hwapi.Client
	logger *slog.Logger

	creating map[string][]hwapi.Attribute
	setting  map[string][]hwapi.Attribute
	removing map[string]struct{}
}

// New returns an empty Bulker writing through hw.
func New(hw hwapi.Client, logger *slog.Logger) *Bulker {
	return &Bulker{
		hw:       hw,
		logger:   logging.Default(logger).With("component", "bulker"),
		creating: make(map[string][]hwapi.Attribute),
		setting:  make(map[string][]hwapi.Attribute),
		removing: make(map[string]struct{}),
	}
}

// Create enqueues a route creation. If prefix was pending removal,
// that removal is cancelled first: a prefix never appears in both
// creating and removing simultaneously.
func (b *Bulker) Create(prefix string, attrs []hwapi.Attribute) {
	delete(b.removing, prefix)
	b.creating[prefix] = attrs
}

// Remove enqueues a route removal. If prefix was pending creation, the
// create (and any pending sets) is dropped instead — create-then-remove
// on the same prefix cancels to nothing.
func (b *Bulker) Remove(prefix string) {
	if _, creating := b.creating[prefix]; creating {
		delete(b.creating, prefix)
		delete(b.setting, prefix)
		return
	}
	delete(b.setting, prefix)
	b.removing[prefix] = struct{}{}
}

// Set appends an attribute to set on prefix. If prefix is pending
// creation, the attribute is merged into the create vector instead of
// queued separately. Two identical sets for the same prefix
// are both preserved; there is no attribute-level dedup.
func (b *Bulker) Set(prefix string, attr hwapi.Attribute) {
	if attrs, creating := b.creating[prefix]; creating {
		b.creating[prefix] = append(attrs, attr)
		return
	}
	b.setting[prefix] = append(b.setting[prefix], attr)
}

// Flush issues the three bulk calls in order — removes, creates, sets
// — then clears all three collections regardless of per-row failures;
// the reconciler is expected to retry failed rows through its own
// retry discipline.
func (b *Bulker) Flush(ctx context.Context) error {
	if len(b.removing) > 0 {
		entries := make([]hwapi.RouteEntry, 0, len(b.removing))
		for prefix := range b.removing {
			entries = append(entries, hwapi.RouteEntry{Prefix: prefix})
		}
		if _, err := b.hw.BulkRemoveRoute(ctx, entries, true); err != nil {
			b.logger.Error("bulk remove failed", "error", err)
		}
	}

	if len(b.creating) > 0 {
		entries := make([]hwapi.RouteEntry, 0, len(b.creating))
		attrs := make([][]hwapi.Attribute, 0, len(b.creating))
		for prefix, a := range b.creating {
			entries = append(entries, hwapi.RouteEntry{Prefix: prefix})
			attrs = append(attrs, a)
		}
		if _, err := b.hw.BulkCreateRoute(ctx, entries, attrs, true); err != nil {
			b.logger.Error("bulk create failed", "error", err)
		}
	}

	if len(b.setting) > 0 {
		// Expand each prefix's attribute vector into one row per
		// attribute so bulk-set receives parallel arrays.
		var entries []hwapi.RouteEntry
		var attrs []hwapi.Attribute
		for prefix, prefixAttrs := range b.setting {
			for _, a := range prefixAttrs {
				entries = append(entries, hwapi.RouteEntry{Prefix: prefix})
				attrs = append(attrs, a)
			}
		}
		if _, err := b.hw.BulkSetRouteAttribute(ctx, entries, attrs, true); err != nil {
			b.logger.Error("bulk set failed", "error", err)
		}
	}

	b.creating = make(map[string][]hwapi.Attribute)
	b.setting = make(map[string][]hwapi.Attribute)
	b.removing = make(map[string]struct{})

	return nil
}

// IsPending reports whether prefix has any pending create, set, or
// remove.
func (b *Bulker) IsPending(prefix string) bool {
	if _, ok := b.creating[prefix]; ok {
		return true
	}
	if _, ok := b.setting[prefix]; ok {
		return true
	}
	if _, ok := b.removing[prefix]; ok {
		return true
	}
	return false
}

// CreatingAttrs returns the attribute vector pending create for
// prefix, for tests.
func (b *Bulker) CreatingAttrs(prefix string) ([]hwapi.Attribute, bool) {
	a, ok := b.creating[prefix]
	return a, ok
}

// SettingAttrs returns the attribute vector pending set for prefix,
// for tests.
func (b *Bulker) SettingAttrs(prefix string) ([]hwapi.Attribute, bool) {
	a, ok := b.setting[prefix]
	return a, ok
}

// IsRemoving reports whether prefix is pending removal, for tests.
func (b *Bulker) IsRemoving(prefix string) bool {
	_, ok := b.removing[prefix]
	return ok
}

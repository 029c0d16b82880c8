package bulker

import (
	"context"
	"testing"

	"netorch/internal/hwapi"
	"netorch/internal/hwapi/hwtest"
)

func TestCreateThenRemoveCancelsToNothing(t *testing.T) {
	b := New(hwtest.New(), nil)
	b.Create("10.0.0.0/24", []hwapi.Attribute{{Name: hwapi.AttrNextHopID, Value: "1"}})
	b.Remove("10.0.0.0/24")

	if b.IsPending("10.0.0.0/24") {
		t.Error("expected create+remove on the same prefix to leave nothing pending")
	}
}

func TestRemoveThenCreateLeavesACreate(t *testing.T) {
	b := New(hwtest.New(), nil)
	b.Remove("10.0.0.0/24")
	b.Create("10.0.0.0/24", []hwapi.Attribute{{Name: hwapi.AttrNextHopID, Value: "1"}})

	if b.IsRemoving("10.0.0.0/24") {
		t.Error("expected the earlier remove to be cancelled by the create")
	}
	if _, ok := b.CreatingAttrs("10.0.0.0/24"); !ok {
		t.Error("expected a pending create for the prefix")
	}
}

func TestSetOnCreatingPrefixMergesIntoCreateVector(t *testing.T) {
	b := New(hwtest.New(), nil)
	b.Create("10.0.0.0/24", []hwapi.Attribute{{Name: hwapi.AttrNextHopID, Value: "1"}})
	b.Set("10.0.0.0/24", hwapi.Attribute{Name: hwapi.AttrPacketAction, Value: hwapi.PacketActionFwd})

	attrs, ok := b.CreatingAttrs("10.0.0.0/24")
	if !ok {
		t.Fatal("expected pending create")
	}
	if len(attrs) != 2 {
		t.Fatalf("expected the set to merge into the create vector, got %d attrs", len(attrs))
	}
	if _, pending := b.SettingAttrs("10.0.0.0/24"); pending {
		t.Error("expected no separate pending set once merged into create")
	}
}

func TestIdenticalSetsAreBothPreserved(t *testing.T) {
	b := New(hwtest.New(), nil)
	attr := hwapi.Attribute{Name: hwapi.AttrNextHopID, Value: "1"}
	b.Set("10.0.0.0/24", attr)
	b.Set("10.0.0.0/24", attr)

	attrs, ok := b.SettingAttrs("10.0.0.0/24")
	if !ok {
		t.Fatal("expected pending set")
	}
	if len(attrs) != 2 {
		t.Errorf("expected both identical sets preserved, got %d", len(attrs))
	}
}

func TestFlushOrderIsRemovesThenCreatesThenSets(t *testing.T) {
	hw := hwtest.New()
	b := New(hw, nil)

	b.Create("10.0.2.0/24", []hwapi.Attribute{{Name: hwapi.AttrNextHopID, Value: "2"}})
	b.Set("10.0.3.0/24", hwapi.Attribute{Name: hwapi.AttrPacketAction, Value: hwapi.PacketActionDrop})
	b.Remove("10.0.1.0/24")

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	seq := hw.MethodSequence()
	want := []string{"BulkRemoveRoute", "BulkCreateRoute", "BulkSetRouteAttribute"}
	if len(seq) != len(want) {
		t.Fatalf("got calls %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("got calls %v, want %v", seq, want)
		}
	}
}

func TestFlushClearsAllCollectionsEvenOnFailure(t *testing.T) {
	hw := hwtest.New()
	b := New(hw, nil)
	b.Create("10.0.0.0/24", []hwapi.Attribute{{Name: hwapi.AttrNextHopID, Value: "1"}})
	b.Remove("10.0.1.0/24")
	b.Set("10.0.2.0/24", hwapi.Attribute{Name: hwapi.AttrPacketAction, Value: hwapi.PacketActionDrop})

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if b.IsPending("10.0.0.0/24") || b.IsPending("10.0.1.0/24") || b.IsPending("10.0.2.0/24") {
		t.Error("expected all collections cleared after flush")
	}
}

func TestFlushExpandsMultiAttributeSetsIntoOneRowPerAttribute(t *testing.T) {
	hw := hwtest.New()
	b := New(hw, nil)
	b.Set("10.0.0.0/24", hwapi.Attribute{Name: hwapi.AttrPacketAction, Value: hwapi.PacketActionFwd})
	b.Set("10.0.0.0/24", hwapi.Attribute{Name: hwapi.AttrNextHopID, Value: "7"})

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	setCalls := 0
	for _, c := range hw.Calls {
		if c.Method == "BulkSetRouteAttribute" {
			setCalls++
		}
	}
	if setCalls != 2 {
		t.Errorf("expected 2 expanded rows for the 2-attribute set, got %d", setCalls)
	}
}

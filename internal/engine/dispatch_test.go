package engine

import (
	"context"
	"testing"

	"github.com/priceguard/server/internal/tracking"
)

func TestDispatchEligibility(t *testing.T) {
	idx := &fakeIndex{
		subs: []tracking.Subscription{
			{UserID: "u-above", ProductID: "p1", TargetPrice: 50000},
			{UserID: "u-exact", ProductID: "p1", TargetPrice: 45000},
			{UserID: "u-below", ProductID: "p1", TargetPrice: 40000},
		},
		tokens: map[string]string{
			"u-above": "token-above",
			"u-exact": "token-exact",
			"u-below": "token-below",
		},
	}
	sender := &fakeSender{}
	d := NewDispatcher(idx, sender, discardLogger())

	sent, failed, err := d.Dispatch(context.Background(), []Change{
		{ProductID: "p1", Name: "모니터", Price: 45000},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sent != 2 || failed != 0 {
		t.Fatalf("sent=%d failed=%d, want 2/0", sent, failed)
	}

	tokens := make(map[string]bool)
	for _, p := range sender.allPayloads() {
		tokens[p.Token] = true
	}
	if !tokens["token-above"] || !tokens["token-exact"] {
		t.Fatalf("missing eligible tokens: %v", tokens)
	}
	if tokens["token-below"] {
		t.Fatal("subscriber with target below price was notified")
	}
}

func TestDispatchSkipsUsersWithoutDevice(t *testing.T) {
	idx := &fakeIndex{
		subs: []tracking.Subscription{
			{UserID: "u1", ProductID: "p1", TargetPrice: 50000},
			{UserID: "u2", ProductID: "p1", TargetPrice: 50000},
		},
		tokens: map[string]string{"u2": "token-2"},
	}
	sender := &fakeSender{}
	d := NewDispatcher(idx, sender, discardLogger())

	sent, failed, err := d.Dispatch(context.Background(), []Change{
		{ProductID: "p1", Name: "모니터", Price: 45000},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sent != 1 || failed != 0 {
		t.Fatalf("sent=%d failed=%d, want 1/0", sent, failed)
	}
	payloads := sender.allPayloads()
	if len(payloads) != 1 || payloads[0].Token != "token-2" {
		t.Fatalf("unexpected payloads: %+v", payloads)
	}
}

func TestDispatchEmptyBatchNotSent(t *testing.T) {
	idx := &fakeIndex{
		subs:   []tracking.Subscription{{UserID: "u1", ProductID: "p1", TargetPrice: 10000}},
		tokens: map[string]string{"u1": "token-1"},
	}
	sender := &fakeSender{}
	d := NewDispatcher(idx, sender, discardLogger())

	sent, failed, err := d.Dispatch(context.Background(), []Change{
		{ProductID: "p1", Name: "모니터", Price: 45000},
	})
	if err != nil || sent != 0 || failed != 0 {
		t.Fatalf("sent=%d failed=%d err=%v, want 0/0/nil", sent, failed, err)
	}
	if len(sender.batches) != 0 {
		t.Fatal("provider called with empty batch")
	}
}

func TestDispatchBatchesSubscriptionLookup(t *testing.T) {
	idx := &fakeIndex{
		subs: []tracking.Subscription{
			{UserID: "u1", ProductID: "p1", TargetPrice: 50000},
			{UserID: "u2", ProductID: "p2", TargetPrice: 50000},
		},
		tokens: map[string]string{"u1": "t1", "u2": "t2"},
	}
	sender := &fakeSender{}
	d := NewDispatcher(idx, sender, discardLogger())

	_, _, err := d.Dispatch(context.Background(), []Change{
		{ProductID: "p1", Name: "A", Price: 10000},
		{ProductID: "p2", Name: "B", Price: 20000},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// One lookup covering both products, not one per change.
	if len(idx.lookedUpIDs) != 1 {
		t.Fatalf("subscription lookups = %d, want 1", len(idx.lookedUpIDs))
	}
	if got := idx.lookedUpIDs[0]; len(got) != 2 {
		t.Fatalf("looked up IDs = %v, want both products", got)
	}
	if len(sender.batches) != 1 || len(sender.batches[0]) != 2 {
		t.Fatalf("unexpected batches: %+v", sender.batches)
	}
}

func TestDispatchNoChanges(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(&fakeIndex{}, sender, discardLogger())

	sent, failed, err := d.Dispatch(context.Background(), nil)
	if err != nil || sent != 0 || failed != 0 {
		t.Fatalf("sent=%d failed=%d err=%v, want 0/0/nil", sent, failed, err)
	}
	if len(sender.batches) != 0 {
		t.Fatal("provider called with no changes")
	}
}

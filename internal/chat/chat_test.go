package chat

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/lumora-app/lumora/internal/envelope"
	"github.com/lumora-app/lumora/internal/signaling"
	"github.com/lumora-app/lumora/internal/store"
)

func TestHistoryHidesSignalingEnvelopes(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	m := NewManager(st, "alice")

	if _, err := m.Send(ctx, "conv", "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := signaling.Send(ctx, st, "conv", "alice", envelope.Offer{
		Description: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"},
	}); err != nil {
		t.Fatalf("signaling send failed: %v", err)
	}
	if _, err := m.Send(ctx, "conv", "still there?"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	msgs, err := m.History(ctx, "conv")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("History returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Body != "hello" || msgs[1].Body != "still there?" {
		t.Fatalf("History bodies = %q, %q", msgs[0].Body, msgs[1].Body)
	}
}

func TestWatchDeliversBothSidesSkippingSignaling(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	alice := NewManager(st, "alice")
	bob := NewManager(st, "bob")

	feed, cancel := alice.Watch("conv")
	defer cancel()

	if _, err := alice.Send(ctx, "conv", "ping"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := signaling.Send(ctx, st, "conv", "bob", envelope.End{}); err != nil {
		t.Fatalf("signaling send failed: %v", err)
	}
	if _, err := bob.Send(ctx, "conv", "pong"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var got []store.Message
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case msg := <-feed:
			got = append(got, msg)
		case <-timeout:
			t.Fatalf("timed out with %d messages", len(got))
		}
	}
	if got[0].SenderID != "alice" || got[0].Body != "ping" {
		t.Errorf("first message = %s/%q", got[0].SenderID, got[0].Body)
	}
	if got[1].SenderID != "bob" || got[1].Body != "pong" {
		t.Errorf("second message = %s/%q", got[1].SenderID, got[1].Body)
	}
}

func TestWatchCancelClosesFeed(t *testing.T) {
	st := store.NewMemStore()
	m := NewManager(st, "alice")

	feed, cancel := m.Watch("conv")
	cancel()

	select {
	case _, open := <-feed:
		if open {
			t.Fatal("feed delivered a message after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed after cancel")
	}
}

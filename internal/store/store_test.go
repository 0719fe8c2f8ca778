package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestMemStoreInsertAndList(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	first, err := s.Insert(ctx, "conv-1", "alice", "hello")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if first.ID == "" {
		t.Error("Insert returned empty message ID")
	}

	if _, err := s.Insert(ctx, "conv-1", "bob", "hi"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := s.Insert(ctx, "conv-2", "carol", "other room"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	msgs, err := s.List(ctx, "conv-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("List returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Body != "hello" || msgs[1].Body != "hi" {
		t.Errorf("List order wrong: %q, %q", msgs[0].Body, msgs[1].Body)
	}
}

// TestSubscribeDeliversToAllIncludingInserter verifies the fanout contract:
// every current subscriber hears every insert, the inserter included.
func TestSubscribeDeliversToAllIncludingInserter(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	feedA, cancelA := s.Subscribe("conv-1")
	defer cancelA()
	feedB, cancelB := s.Subscribe("conv-1")
	defer cancelB()

	if _, err := s.Insert(ctx, "conv-1", "alice", "ping"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	for name, feed := range map[string]<-chan Message{"A": feedA, "B": feedB} {
		select {
		case msg := <-feed:
			if msg.Body != "ping" || msg.SenderID != "alice" {
				t.Errorf("subscriber %s got %+v", name, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive the insert", name)
		}
	}
}

func TestSubscribeCancelIdempotent(t *testing.T) {
	s := NewMemStore()

	feed, cancel := s.Subscribe("conv-1")
	cancel()
	cancel() // second cancel must not panic

	if _, ok := <-feed; ok {
		t.Error("channel should be closed after cancel")
	}

	// A cancelled subscriber must not receive later inserts.
	if _, err := s.Insert(context.Background(), "conv-1", "alice", "late"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}

func TestSubscribeScopedToConversation(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	feed, cancel := s.Subscribe("conv-1")
	defer cancel()

	if _, err := s.Insert(ctx, "conv-2", "bob", "elsewhere"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	select {
	case msg := <-feed:
		t.Errorf("received message from another conversation: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSQLStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.db")
	ctx := context.Background()

	s, err := OpenSQL(path)
	if err != nil {
		t.Fatalf("OpenSQL failed: %v", err)
	}
	if _, err := s.Insert(ctx, "conv-1", "alice", "persisted"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenSQL(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	msgs, err := reopened.List(ctx, "conv-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "persisted" {
		t.Fatalf("List after reopen = %+v, want the persisted row", msgs)
	}
}

func TestSQLStoreSubscribe(t *testing.T) {
	s, err := OpenSQL(filepath.Join(t.TempDir(), "messages.db"))
	if err != nil {
		t.Fatalf("OpenSQL failed: %v", err)
	}
	defer s.Close()

	feed, cancel := s.Subscribe("conv-1")
	defer cancel()

	if _, err := s.Insert(context.Background(), "conv-1", "bob", "live"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	select {
	case msg := <-feed:
		if msg.Body != "live" {
			t.Errorf("got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("subscription did not deliver the insert")
	}
}

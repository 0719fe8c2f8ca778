package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store. It backs single-process setups and tests;
// the relay daemon uses it when persistence is disabled.
type MemStore struct {
	hub *Hub

	mu   sync.Mutex
	rows map[string][]Message
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		hub:  NewHub(),
		rows: make(map[string][]Message),
	}
}

// Insert appends a message and fans it out to subscribers.
func (s *MemStore) Insert(_ context.Context, conversationID, senderID, body string) (Message, error) {
	msg := Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}

	s.mu.Lock()
	s.rows[conversationID] = append(s.rows[conversationID], msg)
	s.mu.Unlock()

	s.hub.Publish(msg)
	return msg, nil
}

// List returns the conversation's messages in insert order.
func (s *MemStore) List(_ context.Context, conversationID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.rows[conversationID]))
	copy(out, s.rows[conversationID])
	return out, nil
}

// Subscribe registers a live feed for the conversation.
func (s *MemStore) Subscribe(conversationID string) (<-chan Message, func()) {
	return s.hub.Subscribe(conversationID)
}

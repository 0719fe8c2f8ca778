// Package store provides the conversation-scoped message store that backs
// both chat and call signaling. Messages are append-only rows; a live
// subscription delivers every newly inserted row, in insert order, to all
// current subscribers of the conversation — including the inserter. Callers
// that must not hear themselves filter by sender id.
package store

import (
	"context"
	"time"
)

// Message is one row of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store is the append/query/subscribe surface shared by all backends.
type Store interface {
	// Insert appends a message and returns the stored row.
	Insert(ctx context.Context, conversationID, senderID, body string) (Message, error)

	// List returns the conversation's messages ordered by creation time.
	List(ctx context.Context, conversationID string) ([]Message, error)

	// Subscribe returns a channel of newly inserted messages for the
	// conversation and a cancel func. Cancel is idempotent; the channel is
	// closed after cancellation.
	Subscribe(conversationID string) (<-chan Message, func())
}

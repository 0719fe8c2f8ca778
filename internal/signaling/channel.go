// Package signaling carries call envelopes over the shared conversation
// message store. The store is the same channel ordinary chat flows through;
// this package filters the live feed down to signaling envelopes authored
// by the remote peer and dispatches them in delivery order.
package signaling

import (
	"context"
	"fmt"
	"sync"

	"github.com/lumora-app/lumora/internal/envelope"
	"github.com/lumora-app/lumora/internal/store"
	"github.com/lumora-app/lumora/internal/util"
)

// Handler receives one decoded envelope and the id of the peer that sent it.
type Handler func(env envelope.Envelope, senderID string)

// Channel is a live signaling subscription for one conversation.
type Channel struct {
	st             store.Store
	conversationID string
	localPeerID    string

	mu     sync.Mutex
	closed bool
	cancel func()
	done   chan struct{}
}

// Open subscribes to the conversation's message feed and dispatches every
// signaling envelope not authored by localPeerID to onEnvelope, one at a
// time, in delivery order. Non-signaling bodies are ignored; the chat
// pipeline handles them separately.
//
// onEnvelope must not call Close on this Channel; spawn a goroutine for
// that (see Channel.Close).
func Open(st store.Store, conversationID, localPeerID string, onEnvelope Handler) *Channel {
	feed, cancel := st.Subscribe(conversationID)
	c := &Channel{
		st:             st,
		conversationID: conversationID,
		localPeerID:    localPeerID,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	go c.watch(feed, onEnvelope)
	return c
}

func (c *Channel) watch(feed <-chan store.Message, onEnvelope Handler) {
	defer close(c.done)
	for msg := range feed {
		if msg.SenderID == c.localPeerID {
			continue
		}
		env, ok := envelope.Decode(msg.Body)
		if !ok {
			continue
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		onEnvelope(env, msg.SenderID)
	}
}

// Send encodes env and appends it to the conversation. An insert failure is
// returned, not swallowed — a lost signaling message stalls the negotiation
// and the caller must treat it as fatal for the call.
func (c *Channel) Send(ctx context.Context, env envelope.Envelope) error {
	return Send(ctx, c.st, c.conversationID, c.localPeerID, env)
}

// Close cancels the subscription and waits for any in-flight dispatch to
// finish; after Close returns the handler will not be invoked again. It is
// idempotent. Close must not be called from inside the handler — the wait
// would deadlock.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	<-c.done
	util.LogDebug("signaling: channel for %s closed", c.conversationID)
}

// Send encodes env and inserts it into the conversation on behalf of
// localPeerID.
func Send(ctx context.Context, st store.Store, conversationID, localPeerID string, env envelope.Envelope) error {
	body, err := envelope.Encode(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if _, err := st.Insert(ctx, conversationID, localPeerID, body); err != nil {
		return fmt.Errorf("send envelope: %w", err)
	}
	return nil
}

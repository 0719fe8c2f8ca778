// Package chat is the plain-text side of the shared conversation channel.
// Chat and call signaling ride the same message store; this package hides
// the signaling envelopes so the conversation view only shows human text.
package chat

import (
	"context"

	"github.com/lumora-app/lumora/internal/envelope"
	"github.com/lumora-app/lumora/internal/store"
)

// Manager reads and writes chat messages for one local peer.
type Manager struct {
	st          store.Store
	localPeerID string
}

func NewManager(st store.Store, localPeerID string) *Manager {
	return &Manager{st: st, localPeerID: localPeerID}
}

// Send posts a text message to the conversation.
func (m *Manager) Send(ctx context.Context, conversationID, body string) (store.Message, error) {
	return m.st.Insert(ctx, conversationID, m.localPeerID, body)
}

// History returns the conversation's chat messages in order, with signaling
// envelopes filtered out.
func (m *Manager) History(ctx context.Context, conversationID string) ([]store.Message, error) {
	msgs, err := m.st.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]store.Message, 0, len(msgs))
	for _, msg := range msgs {
		if _, isSignaling := envelope.Decode(msg.Body); isSignaling {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Watch streams new chat messages for the conversation, both sides
// included, skipping signaling envelopes. The returned cancel stops the
// feed and closes the channel.
func (m *Manager) Watch(conversationID string) (<-chan store.Message, func()) {
	feed, cancel := m.st.Subscribe(conversationID)
	out := make(chan store.Message, 64)
	go func() {
		defer close(out)
		for msg := range feed {
			if _, isSignaling := envelope.Decode(msg.Body); isSignaling {
				continue
			}
			out <- msg
		}
	}()
	return out, cancel
}

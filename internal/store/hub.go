package store

import (
	"sync"

	"github.com/lumora-app/lumora/internal/util"
)

// subscriberBuffer is the per-subscriber channel capacity. A slow consumer
// that falls further behind than this loses messages rather than blocking
// every other subscriber of the conversation.
const subscriberBuffer = 64

// Hub fans newly inserted messages out to conversation subscribers. It is
// the in-process delivery half shared by every Store implementation.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Message
	next int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Message)}
}

// Subscribe registers a new subscriber for conversationID. The cancel func
// is idempotent and closes the returned channel.
func (h *Hub) Subscribe(conversationID string) (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[int]chan Message)
	}
	h.subs[conversationID][id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[conversationID][id]; ok {
			delete(h.subs[conversationID], id)
			if len(h.subs[conversationID]) == 0 {
				delete(h.subs, conversationID)
			}
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers msg to every current subscriber of its conversation.
func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[msg.ConversationID] {
		select {
		case ch <- msg:
		default:
			util.LogWarning("store: dropping message %s for slow subscriber", msg.ID)
		}
	}
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lumora-app/lumora/internal/store"
	"github.com/lumora-app/lumora/internal/util"
)

// ErrDisconnected reports an operation on a relay connection that has been
// torn down. There is no automatic reconnect; the caller decides.
var ErrDisconnected = errors.New("relay: connection closed")

// RemoteStore is a store.Store backed by a relay server. It keeps one
// WebSocket per conversation, mirrors the server's history locally, and
// fans the live feed out through the same hub the in-process stores use.
type RemoteStore struct {
	baseURL string
	hub     *store.Hub

	mu     sync.Mutex
	conns  map[string]*conversationConn
	closed bool
}

// conversationConn is the live link for one conversation.
type conversationConn struct {
	ws       *wsConn
	ready    chan struct{} // closed once the history frame arrived
	done     chan struct{} // closed when the read loop exits
	acks     chan store.Message
	insertMu sync.Mutex // serializes inserts so acks match FIFO

	mu      sync.Mutex
	history []store.Message
}

// NewRemoteStore creates a client for the relay at baseURL, e.g.
// "ws://127.0.0.1:8443". Connections are dialed lazily per conversation.
func NewRemoteStore(baseURL string) *RemoteStore {
	return &RemoteStore{
		baseURL: baseURL,
		hub:     store.NewHub(),
		conns:   make(map[string]*conversationConn),
	}
}

// ensure returns the conversation's connection, dialing it on first use.
func (r *RemoteStore) ensure(ctx context.Context, conversationID string) (*conversationConn, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrDisconnected
	}
	if cc, ok := r.conns[conversationID]; ok {
		r.mu.Unlock()
		return cc, nil
	}
	r.mu.Unlock()

	url := fmt.Sprintf("%s/ws?conversation=%s", r.baseURL, conversationID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	cc := &conversationConn{
		ws:    &wsConn{conn: conn},
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		acks:  make(chan store.Message, 1),
	}

	r.mu.Lock()
	if existing, ok := r.conns[conversationID]; ok {
		// Lost the dial race; keep the first connection.
		r.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	r.conns[conversationID] = cc
	r.mu.Unlock()

	go r.readLoop(cc)
	return cc, nil
}

func (r *RemoteStore) readLoop(cc *conversationConn) {
	defer close(cc.done)
	var readyOnce sync.Once
	for {
		var f Frame
		if err := cc.ws.conn.ReadJSON(&f); err != nil {
			util.LogWarning("relay: feed closed: %v", err)
			return
		}
		switch f.Op {
		case OpHistory:
			cc.mu.Lock()
			cc.history = f.Messages
			cc.mu.Unlock()
			readyOnce.Do(func() { close(cc.ready) })
		case OpMessage:
			if f.Message == nil {
				continue
			}
			cc.mu.Lock()
			cc.history = append(cc.history, *f.Message)
			cc.mu.Unlock()
			r.hub.Publish(*f.Message)
		case OpAck:
			if f.Message == nil {
				continue
			}
			select {
			case cc.acks <- *f.Message:
			default:
				// The inserter gave up (context cancelled); drop the ack.
			}
		default:
			util.LogWarning("relay: unexpected frame op %q from server", f.Op)
		}
	}
}

// Insert sends the message to the relay and waits for the stored result.
// The server assigns the ID and timestamp.
func (r *RemoteStore) Insert(ctx context.Context, conversationID, senderID, body string) (store.Message, error) {
	cc, err := r.ensure(ctx, conversationID)
	if err != nil {
		return store.Message{}, err
	}

	cc.insertMu.Lock()
	defer cc.insertMu.Unlock()

	frame := Frame{Op: OpInsert, Message: &store.Message{SenderID: senderID, Body: body}}
	if err := cc.ws.writeJSON(frame); err != nil {
		return store.Message{}, fmt.Errorf("relay insert: %w", err)
	}

	select {
	case msg := <-cc.acks:
		return msg, nil
	case <-cc.done:
		return store.Message{}, ErrDisconnected
	case <-ctx.Done():
		return store.Message{}, ctx.Err()
	}
}

// List returns the locally mirrored conversation history, waiting for the
// initial history frame on a fresh connection.
func (r *RemoteStore) List(ctx context.Context, conversationID string) ([]store.Message, error) {
	cc, err := r.ensure(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	select {
	case <-cc.ready:
	case <-cc.done:
		return nil, ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	out := make([]store.Message, len(cc.history))
	copy(out, cc.history)
	return out, nil
}

// Subscribe registers a live feed for the conversation. The connection is
// dialed on first use; messages that arrive before then are missed, so
// subscribe before expecting traffic.
func (r *RemoteStore) Subscribe(conversationID string) (<-chan store.Message, func()) {
	if _, err := r.ensure(context.Background(), conversationID); err != nil {
		util.LogError("relay: subscribe %s: %v", conversationID, err)
	}
	return r.hub.Subscribe(conversationID)
}

// Close drops every conversation connection.
func (r *RemoteStore) Close() {
	r.mu.Lock()
	r.closed = true
	conns := r.conns
	r.conns = make(map[string]*conversationConn)
	r.mu.Unlock()

	for _, cc := range conns {
		cc.ws.conn.Close()
		<-cc.done
	}
}

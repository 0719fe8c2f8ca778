// Package relay moves the conversation message store over a WebSocket so
// two peers on different machines can share one channel. The server owns
// the authoritative store; clients mirror it through RemoteStore.
package relay

import "github.com/lumora-app/lumora/internal/store"

// Op identifies the kind of relay frame.
type Op string

const (
	// OpInsert (client → server) asks the server to append a message. Only
	// SenderID and Body are honored; the server assigns ID and timestamp.
	OpInsert Op = "insert"
	// OpAck (server → client) answers an insert with the stored message.
	OpAck Op = "ack"
	// OpMessage (server → client) broadcasts a newly stored message to every
	// subscriber of the conversation, the inserter included.
	OpMessage Op = "message"
	// OpHistory (server → client) is the first frame on every connection:
	// the conversation's messages so far, in order.
	OpHistory Op = "history"
)

// Frame is the JSON structure exchanged over the relay WebSocket.
type Frame struct {
	Op       Op              `json:"op"`
	Message  *store.Message  `json:"message,omitempty"`
	Messages []store.Message `json:"messages,omitempty"`
}

package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lumora-app/lumora/internal/store"
	"github.com/lumora-app/lumora/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes to one WebSocket. The history/broadcast pump and
// the insert acks write from different goroutines.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Server exposes a message store over WebSocket. Each connection is scoped
// to one conversation: it receives the history, then a live feed, and may
// insert on behalf of its peer.
type Server struct {
	st       store.Store
	listener net.Listener

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func NewServer(st store.Store) *Server {
	return &Server{st: st, conns: make(map[*wsConn]struct{})}
}

// Start begins listening on addr (use ":0" for an ephemeral port) and
// returns the bound port.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("start relay server: %w", err)
	}
	s.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	go func() {
		_ = http.Serve(listener, mux)
	}()

	util.LogInfo("relay: listening on port %d", port)
	return port, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation")
	if conversationID == "" {
		http.Error(w, "missing conversation", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	go s.serve(&wsConn{conn: conn}, conversationID)
}

func (s *Server) serve(ws *wsConn, conversationID string) {
	s.mu.Lock()
	s.conns[ws] = struct{}{}
	s.mu.Unlock()

	feed, cancel := s.st.Subscribe(conversationID)
	defer func() {
		cancel()
		ws.conn.Close()
		s.mu.Lock()
		delete(s.conns, ws)
		s.mu.Unlock()
	}()

	history, err := s.st.List(context.Background(), conversationID)
	if err != nil {
		util.LogError("relay: list %s: %v", conversationID, err)
		return
	}
	if err := ws.writeJSON(Frame{Op: OpHistory, Messages: history}); err != nil {
		return
	}

	// Broadcast pump. A write failure closes the connection, which also
	// unblocks the read loop below.
	go func() {
		for msg := range feed {
			msg := msg
			if err := ws.writeJSON(Frame{Op: OpMessage, Message: &msg}); err != nil {
				ws.conn.Close()
				return
			}
		}
	}()

	for {
		var f Frame
		if err := ws.conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Op != OpInsert || f.Message == nil {
			util.LogWarning("relay: unexpected frame op %q from client", f.Op)
			continue
		}

		msg, err := s.st.Insert(context.Background(), conversationID, f.Message.SenderID, f.Message.Body)
		if err != nil {
			util.LogError("relay: insert for %s: %v", conversationID, err)
			return
		}
		if err := ws.writeJSON(Frame{Op: OpAck, Message: &msg}); err != nil {
			return
		}
	}
}

// Close stops accepting connections and drops the established ones.
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	for ws := range s.conns {
		ws.conn.Close()
	}
	s.mu.Unlock()
}

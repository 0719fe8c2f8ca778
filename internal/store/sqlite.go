package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLStore is a sqlite-backed Store. Rows survive restarts; subscriptions
// are process-local live feeds on top of the same fanout hub as MemStore,
// so a single daemon instance serves all participants of a conversation.
type SQLStore struct {
	db  *sql.DB
	hub *Hub
}

// OpenSQL opens (or creates) the message database at path.
func OpenSQL(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id       TEXT NOT NULL,
			body            TEXT NOT NULL,
			created_at      INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, created_at);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}

	return &SQLStore{db: db, hub: NewHub()}, nil
}

// Insert appends a message, persists it, and fans it out to subscribers.
func (s *SQLStore) Insert(ctx context.Context, conversationID, senderID, body string) (Message, error) {
	msg := Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	s.hub.Publish(msg)
	return msg, nil
}

// List returns the conversation's messages ordered by creation time.
func (s *SQLStore) List(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.UnixMicro(createdAt).UTC()
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Subscribe registers a live feed for the conversation.
func (s *SQLStore) Subscribe(conversationID string) (<-chan Message, func()) {
	return s.hub.Subscribe(conversationID)
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

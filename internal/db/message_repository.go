package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shivamdeswal5/weconnect/internal/chat"
)

// MessageRepository caches conversation messages locally.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// UpsertBatch stores a batch of messages for a conversation. Re-upserting an
// existing key is a no-op: messages are immutable.
func (r *MessageRepository) UpsertBatch(ctx context.Context, conversationID string, msgs []chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (conversation_id, key, sender_id, text, timestamp_ms)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (conversation_id, key) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, m := range msgs {
			if m.Key == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, conversationID, m.Key, m.SenderID, m.Text, m.Timestamp); err != nil {
				return fmt.Errorf("upsert message %s: %w", m.Key, err)
			}
		}
		return nil
	})
}

// Recent returns the newest limit messages of a conversation in ascending
// timestamp order.
func (r *MessageRepository) Recent(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = chat.DefaultPageSize
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, sender_id, text, timestamp_ms FROM (
			SELECT key, sender_id, text, timestamp_ms
			FROM messages
			WHERE conversation_id = ?
			ORDER BY timestamp_ms DESC
			LIMIT ?
		) ORDER BY timestamp_ms ASC`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// All returns every cached message of a conversation in ascending order,
// used by export.
func (r *MessageRepository) All(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, sender_id, text, timestamp_ms
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp_ms ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Prune drops a conversation's cached history.
func (r *MessageRepository) Prune(ctx context.Context, conversationID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("prune conversation: %w", err)
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]chat.Message, error) {
	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.Key, &m.SenderID, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

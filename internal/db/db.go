// Package db provides the local SQLite history cache. The remote store stays
// the source of truth; the cache lets the client paint recent history
// instantly on open and export conversations offline.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL,
	key             TEXT NOT NULL,
	sender_id       TEXT NOT NULL,
	text            TEXT NOT NULL,
	timestamp_ms    INTEGER NOT NULL,
	PRIMARY KEY (conversation_id, key)
);
CREATE INDEX IF NOT EXISTS idx_messages_conv_ts
	ON messages (conversation_id, timestamp_ms);
`

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the cache database at path and applies the
// schema.
func Open(ctx context.Context, path string, busyTimeoutMs int) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path, busyTimeoutMs)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{DB: sqlDB}, nil
}

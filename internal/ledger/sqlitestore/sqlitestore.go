// Package sqlitestore persists ledger state in a sqlite database. Each
// save replaces the full contents inside one transaction, keeping the
// whole-state-overwrite contract of the ledger.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hossain-khan/social-sync/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS synced_posts (
	source_uri TEXT PRIMARY KEY,
	dest_id    TEXT NOT NULL,
	synced_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS skipped_posts (
	source_uri TEXT PRIMARY KEY,
	reason     TEXT NOT NULL,
	skipped_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Storage is a sqlite backend for the sync ledger.
type Storage struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite ledger at path.
func Open(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the full state. A fresh database yields an empty state.
func (s *Storage) Load() (ledger.State, error) {
	ctx := context.Background()
	var state ledger.State

	rows, err := s.db.QueryContext(ctx, "SELECT source_uri, dest_id, synced_at FROM synced_posts")
	if err != nil {
		return ledger.State{}, fmt.Errorf("query synced: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var rec ledger.SyncRecord
		var syncedAt string
		if err := rows.Scan(&rec.SourceURI, &rec.DestID, &syncedAt); err != nil {
			return ledger.State{}, fmt.Errorf("scan synced: %w", err)
		}
		rec.SyncedAt, err = parseTime(syncedAt)
		if err != nil {
			return ledger.State{}, fmt.Errorf("parse synced_at: %w", err)
		}
		state.Synced = append(state.Synced, rec)
	}
	if err := rows.Err(); err != nil {
		return ledger.State{}, fmt.Errorf("iterate synced: %w", err)
	}

	skipRows, err := s.db.QueryContext(ctx, "SELECT source_uri, reason, skipped_at FROM skipped_posts")
	if err != nil {
		return ledger.State{}, fmt.Errorf("query skipped: %w", err)
	}
	defer func() { _ = skipRows.Close() }()

	for skipRows.Next() {
		var rec ledger.SkipRecord
		var reason, skippedAt string
		if err := skipRows.Scan(&rec.SourceURI, &reason, &skippedAt); err != nil {
			return ledger.State{}, fmt.Errorf("scan skipped: %w", err)
		}
		rec.Reason = ledger.SkipReason(reason)
		rec.SkippedAt, err = parseTime(skippedAt)
		if err != nil {
			return ledger.State{}, fmt.Errorf("parse skipped_at: %w", err)
		}
		state.Skipped = append(state.Skipped, rec)
	}
	if err := skipRows.Err(); err != nil {
		return ledger.State{}, fmt.Errorf("iterate skipped: %w", err)
	}

	meta, err := s.loadMetadata(ctx)
	if err != nil {
		return ledger.State{}, err
	}
	if v := meta["last_sync_time"]; v != "" {
		state.LastSyncTime, err = parseTime(v)
		if err != nil {
			return ledger.State{}, fmt.Errorf("parse last_sync_time: %w", err)
		}
	}
	state.LastSourceURI = meta["last_source_uri"]

	return state, nil
}

// Save replaces the full contents in one transaction.
func (s *Storage) Save(state ledger.State) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}

	for _, stmt := range []string{"DELETE FROM synced_posts", "DELETE FROM skipped_posts", "DELETE FROM metadata"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear state: %w", err)
		}
	}

	for _, rec := range state.Synced {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO synced_posts (source_uri, dest_id, synced_at) VALUES (?, ?, ?)",
			rec.SourceURI, rec.DestID, formatTime(rec.SyncedAt),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert synced: %w", err)
		}
	}
	for _, rec := range state.Skipped {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO skipped_posts (source_uri, reason, skipped_at) VALUES (?, ?, ?)",
			rec.SourceURI, string(rec.Reason), formatTime(rec.SkippedAt),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert skipped: %w", err)
		}
	}

	meta := map[string]string{}
	if !state.LastSyncTime.IsZero() {
		meta["last_sync_time"] = formatTime(state.LastSyncTime)
	}
	if state.LastSourceURI != "" {
		meta["last_source_uri"] = state.LastSourceURI
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO metadata (key, value) VALUES (?, ?)", key, value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *Storage) loadMetadata(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metadata: %w", err)
	}
	return meta, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

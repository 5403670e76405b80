// Package jsonfile persists ledger state as a single JSON document,
// rewritten in full on every save. The field names match the historical
// sync_state.json format.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hossain-khan/social-sync/internal/ledger"
)

// Storage is a whole-file JSON backend for the sync ledger.
type Storage struct {
	path string
}

// New creates a JSON file backend at path. Parent directories are
// created on first save.
func New(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}
	return &Storage{path: path}, nil
}

type diskState struct {
	LastSyncTime  string       `json:"last_sync_time,omitempty"`
	SyncedPosts   []diskSynced `json:"synced_posts"`
	SkippedPosts  []diskSkip   `json:"skipped_posts"`
	LastSourceURI string       `json:"last_bluesky_post_uri,omitempty"`
}

type diskSynced struct {
	SourceURI string `json:"bluesky_uri"`
	DestID    string `json:"mastodon_id"`
	SyncedAt  string `json:"synced_at"`
}

type diskSkip struct {
	SourceURI string `json:"bluesky_uri"`
	Reason    string `json:"reason"`
	SkippedAt string `json:"skipped_at"`
}

// Load reads the full state. A missing file returns fs.ErrNotExist
// (wrapped); unparseable content returns an error so the ledger can
// recover to empty.
func (s *Storage) Load() (ledger.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ledger.State{}, fmt.Errorf("read ledger file: %w", err)
	}

	var disk diskState
	if err := json.Unmarshal(data, &disk); err != nil {
		return ledger.State{}, fmt.Errorf("parse ledger file: %w", err)
	}

	state := ledger.State{LastSourceURI: disk.LastSourceURI}
	if disk.LastSyncTime != "" {
		ts, err := time.Parse(time.RFC3339Nano, disk.LastSyncTime)
		if err != nil {
			return ledger.State{}, fmt.Errorf("parse last_sync_time: %w", err)
		}
		state.LastSyncTime = ts
	}
	for _, rec := range disk.SyncedPosts {
		ts, err := time.Parse(time.RFC3339Nano, rec.SyncedAt)
		if err != nil {
			return ledger.State{}, fmt.Errorf("parse synced_at for %s: %w", rec.SourceURI, err)
		}
		state.Synced = append(state.Synced, ledger.SyncRecord{
			SourceURI: rec.SourceURI,
			DestID:    rec.DestID,
			SyncedAt:  ts,
		})
	}
	for _, rec := range disk.SkippedPosts {
		ts, err := time.Parse(time.RFC3339Nano, rec.SkippedAt)
		if err != nil {
			return ledger.State{}, fmt.Errorf("parse skipped_at for %s: %w", rec.SourceURI, err)
		}
		state.Skipped = append(state.Skipped, ledger.SkipRecord{
			SourceURI: rec.SourceURI,
			Reason:    ledger.SkipReason(rec.Reason),
			SkippedAt: ts,
		})
	}

	return state, nil
}

// Save overwrites the file with the full state.
func (s *Storage) Save(state ledger.State) error {
	disk := diskState{
		LastSourceURI: state.LastSourceURI,
		SyncedPosts:   make([]diskSynced, 0, len(state.Synced)),
		SkippedPosts:  make([]diskSkip, 0, len(state.Skipped)),
	}
	if !state.LastSyncTime.IsZero() {
		disk.LastSyncTime = state.LastSyncTime.UTC().Format(time.RFC3339Nano)
	}
	for _, rec := range state.Synced {
		disk.SyncedPosts = append(disk.SyncedPosts, diskSynced{
			SourceURI: rec.SourceURI,
			DestID:    rec.DestID,
			SyncedAt:  rec.SyncedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	for _, rec := range state.Skipped {
		disk.SkippedPosts = append(disk.SkippedPosts, diskSkip{
			SourceURI: rec.SourceURI,
			Reason:    string(rec.Reason),
			SkippedAt: rec.SkippedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}
	return nil
}

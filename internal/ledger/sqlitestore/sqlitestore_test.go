package sqlitestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hossain-khan/social-sync/internal/ledger"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	storage, err := Open(path)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})
	return storage
}

func TestFreshDatabaseLoadsEmpty(t *testing.T) {
	storage := openTestStorage(t)

	state, err := storage.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(state.Synced) != 0 || len(state.Skipped) != 0 {
		t.Fatalf("fresh db not empty: %+v", state)
	}
	if !state.LastSyncTime.IsZero() || state.LastSourceURI != "" {
		t.Fatalf("fresh db has metadata: %+v", state)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	storage := openTestStorage(t)

	at := time.Date(2026, 8, 20, 18, 45, 30, 123456000, time.UTC)
	want := ledger.State{
		LastSyncTime:  at,
		LastSourceURI: "at://did:plc:abc/app.bsky.feed.post/9",
		Synced: []ledger.SyncRecord{
			{SourceURI: "at://did:plc:abc/app.bsky.feed.post/9", DestID: "900", SyncedAt: at},
		},
		Skipped: []ledger.SkipRecord{
			{SourceURI: "at://did:plc:abc/app.bsky.feed.post/8", Reason: ledger.ReasonQuoteOfOther, SkippedAt: at},
		},
	}

	if err := storage.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := storage.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(got.Synced) != 1 || got.Synced[0].DestID != "900" {
		t.Fatalf("synced = %+v", got.Synced)
	}
	if !got.Synced[0].SyncedAt.Equal(at) {
		t.Fatalf("synced_at = %v, want %v", got.Synced[0].SyncedAt, at)
	}
	if len(got.Skipped) != 1 || got.Skipped[0].Reason != ledger.ReasonQuoteOfOther {
		t.Fatalf("skipped = %+v", got.Skipped)
	}
	if !got.LastSyncTime.Equal(at) || got.LastSourceURI != want.LastSourceURI {
		t.Fatalf("metadata = %v, %q", got.LastSyncTime, got.LastSourceURI)
	}
}

func TestSaveReplacesFullState(t *testing.T) {
	storage := openTestStorage(t)
	at := time.Now().UTC()

	first := ledger.State{
		Synced: []ledger.SyncRecord{
			{SourceURI: "at://post/1", DestID: "1", SyncedAt: at},
			{SourceURI: "at://post/2", DestID: "2", SyncedAt: at},
		},
	}
	if err := storage.Save(first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second := ledger.State{
		Synced: []ledger.SyncRecord{
			{SourceURI: "at://post/3", DestID: "3", SyncedAt: at},
		},
	}
	if err := storage.Save(second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := storage.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Synced) != 1 || got.Synced[0].SourceURI != "at://post/3" {
		t.Fatalf("save must overwrite, got %+v", got.Synced)
	}
}

func TestLedgerOverSQLite(t *testing.T) {
	storage := openTestStorage(t)

	l, err := ledger.Open(storage, zerolog.Nop())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	if err := l.MarkSynced("at://post/1", "d1"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := l.MarkSkipped("at://post/2", ledger.ReasonNoSyncTag); err != nil {
		t.Fatalf("mark skipped: %v", err)
	}

	reopened, err := ledger.Open(storage, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	if !reopened.IsSynced("at://post/1") || !reopened.IsSkipped("at://post/2") {
		t.Fatal("records lost across reopen")
	}
	destID, ok := reopened.DestIDFor("at://post/1")
	if !ok || destID != "d1" {
		t.Fatalf("DestIDFor = %q, %v", destID, ok)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for blank path")
	}
}

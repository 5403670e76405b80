// Package ledger tracks which source posts have been synced or skipped,
// keyed by source post URI. The ledger is single-writer: one process
// owns it for the duration of a run, and every mutation rewrites the
// full persisted state through a Storage backend.
package ledger

import (
	"errors"
	"io/fs"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// SkipReason says why a post was deliberately not synced.
type SkipReason string

const (
	ReasonNoSyncTag       SkipReason = "no-sync-tag"
	ReasonReplyNotSelf    SkipReason = "reply-not-self-threaded"
	ReasonRepost          SkipReason = "repost"
	ReasonQuoteOfOther    SkipReason = "quote-of-other"
	ReasonOlderThanWindow SkipReason = "older-than-sync-window"
)

// SyncRecord maps a source post to the destination post it became.
type SyncRecord struct {
	SourceURI string
	DestID    string
	SyncedAt  time.Time
}

// SkipRecord marks a source post as deliberately not synced.
type SkipRecord struct {
	SourceURI string
	Reason    SkipReason
	SkippedAt time.Time
}

// State is the full persisted ledger contents. Backends load and
// overwrite it wholesale; there is no partial write.
type State struct {
	LastSyncTime  time.Time
	LastSourceURI string
	Synced        []SyncRecord
	Skipped       []SkipRecord
}

// Storage persists ledger state. Load returns fs.ErrNotExist (wrapped)
// when no prior state exists; any other error means the stored data is
// unreadable and the ledger recovers to empty.
type Storage interface {
	Load() (State, error)
	Save(State) error
}

// Ledger is the in-memory view of the sync state. A source URI appears
// in at most one of the synced and skipped collections; re-marking
// overwrites, never duplicates.
type Ledger struct {
	storage Storage
	log     zerolog.Logger

	synced   map[string]SyncRecord
	skipped  map[string]SkipRecord
	lastSync time.Time
	lastURI  string
}

// Open loads persisted state, or initializes an empty ledger when no
// state exists or the stored data is corrupt. A fresh ledger is
// persisted immediately so the file exists from the first run.
func Open(storage Storage, log zerolog.Logger) (*Ledger, error) {
	l := &Ledger{
		storage: storage,
		log:     log,
		synced:  make(map[string]SyncRecord),
		skipped: make(map[string]SkipRecord),
	}

	state, err := storage.Load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Msg("no prior ledger state, starting empty")
		} else {
			log.Warn().Err(err).Msg("ledger state unreadable, recovering to empty")
		}
		if err := l.persist(); err != nil {
			l.log.Warn().Err(err).Msg("persist fresh ledger")
		}
		return l, nil
	}

	for _, rec := range state.Synced {
		l.synced[rec.SourceURI] = rec
	}
	for _, rec := range state.Skipped {
		// The invariant holds even against a hand-edited file: a URI in
		// both collections keeps only its synced record.
		if _, ok := l.synced[rec.SourceURI]; ok {
			continue
		}
		l.skipped[rec.SourceURI] = rec
	}
	l.lastSync = state.LastSyncTime
	l.lastURI = state.LastSourceURI

	return l, nil
}

// IsSynced reports whether the source post was already synced.
func (l *Ledger) IsSynced(uri string) bool {
	_, ok := l.synced[uri]
	return ok
}

// IsSkipped reports whether the source post was deliberately skipped.
func (l *Ledger) IsSkipped(uri string) bool {
	_, ok := l.skipped[uri]
	return ok
}

// MarkSynced records a synced post, overwriting any prior synced or
// skipped entry for the same URI, and persists the full state.
func (l *Ledger) MarkSynced(uri, destID string) error {
	delete(l.skipped, uri)
	l.synced[uri] = SyncRecord{SourceURI: uri, DestID: destID, SyncedAt: time.Now().UTC()}
	l.lastURI = uri
	return l.persist()
}

// MarkSkipped records a deliberately skipped post, overwriting any prior
// entry for the same URI, and persists the full state.
func (l *Ledger) MarkSkipped(uri string, reason SkipReason) error {
	delete(l.synced, uri)
	l.skipped[uri] = SkipRecord{SourceURI: uri, Reason: reason, SkippedAt: time.Now().UTC()}
	return l.persist()
}

// DestIDFor returns the destination post id for a synced source URI.
// Used to resolve reply threading.
func (l *Ledger) DestIDFor(uri string) (string, bool) {
	rec, ok := l.synced[uri]
	if !ok {
		return "", false
	}
	return rec.DestID, true
}

// SkipReasonFor returns the recorded reason for a skipped source URI.
func (l *Ledger) SkipReasonFor(uri string) (SkipReason, bool) {
	rec, ok := l.skipped[uri]
	if !ok {
		return "", false
	}
	return rec.Reason, true
}

// LastSyncTime returns the time of the last completed run, if any.
func (l *Ledger) LastSyncTime() (time.Time, bool) {
	if l.lastSync.IsZero() {
		return time.Time{}, false
	}
	return l.lastSync, true
}

// UpdateSyncTime stamps the current time as the last completed run and
// persists the full state.
func (l *Ledger) UpdateSyncTime() error {
	l.lastSync = time.Now().UTC()
	return l.persist()
}

// LastProcessed returns the URI of the most recently synced post.
func (l *Ledger) LastProcessed() string {
	return l.lastURI
}

// SyncedCount returns the number of synced records.
func (l *Ledger) SyncedCount() int {
	return len(l.synced)
}

// SkippedCount returns the number of skip records.
func (l *Ledger) SkippedCount() int {
	return len(l.skipped)
}

// persist rewrites the whole state through the backend. A write failure
// is reported to the caller but leaves the in-memory state authoritative
// for the rest of the run.
func (l *Ledger) persist() error {
	return l.storage.Save(l.snapshot())
}

func (l *Ledger) snapshot() State {
	state := State{
		LastSyncTime:  l.lastSync,
		LastSourceURI: l.lastURI,
		Synced:        make([]SyncRecord, 0, len(l.synced)),
		Skipped:       make([]SkipRecord, 0, len(l.skipped)),
	}
	for _, rec := range l.synced {
		state.Synced = append(state.Synced, rec)
	}
	for _, rec := range l.skipped {
		state.Skipped = append(state.Skipped, rec)
	}
	sort.Slice(state.Synced, func(i, j int) bool {
		return state.Synced[i].SourceURI < state.Synced[j].SourceURI
	})
	sort.Slice(state.Skipped, func(i, j int) bool {
		return state.Skipped[i].SourceURI < state.Skipped[j].SourceURI
	})
	return state
}

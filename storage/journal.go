package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"tokensale/core/events"
	"tokensale/core/types"
)

const (
	journalSeqKey     = "journal/seq"
	journalEntryKey   = "journal/entry/"
	journalActorKey   = "journal/actor/"
	journalActorAttr  = "actor"
	journalSeqPadding = "%020d"
)

// JournalEntry is one persisted audit record. Entries are immutable once
// written; the sequence number gives a total order across all actors.
type JournalEntry struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Timestamp  int64             `json:"timestamp"`
	EventType  string            `json:"eventType"`
	Actor      string            `json:"actor,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Journal persists module events to a key-value store as an append-only audit
// trail, indexed by actor for per-account history queries.
type Journal struct {
	mu    sync.Mutex
	db    Database
	seq   uint64
	nowFn func() int64
}

// NewJournal opens a journal over the given database, resuming the sequence
// counter left by a previous run.
func NewJournal(db Database) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: database is required")
	}
	journal := &Journal{
		db:    db,
		nowFn: func() int64 { return time.Now().Unix() },
	}
	raw, err := db.Get([]byte(journalSeqKey))
	if err == nil {
		seq, parseErr := strconv.ParseUint(string(raw), 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("journal: corrupt sequence counter: %w", parseErr)
		}
		journal.seq = seq
	}
	return journal, nil
}

// SetNowFunc overrides the timestamp source. Primarily intended for tests.
func (j *Journal) SetNowFunc(now func() int64) {
	if j == nil || now == nil {
		return
	}
	j.mu.Lock()
	j.nowFn = now
	j.mu.Unlock()
}

// Append records one event and returns the persisted entry.
func (j *Journal) Append(eventType string, attributes map[string]string) (*JournalEntry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal: not initialised")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &JournalEntry{
		ID:        uuid.NewString(),
		Sequence:  j.seq,
		Timestamp: j.nowFn(),
		EventType: eventType,
	}
	if len(attributes) > 0 {
		entry.Attributes = make(map[string]string, len(attributes))
		for k, v := range attributes {
			entry.Attributes[k] = v
		}
		entry.Actor = attributes[journalActorAttr]
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("journal: encode entry: %w", err)
	}
	entryKey := []byte(journalEntryKey + fmt.Sprintf(journalSeqPadding, entry.Sequence))
	if err := j.db.Put(entryKey, payload); err != nil {
		return nil, fmt.Errorf("journal: write entry: %w", err)
	}
	if entry.Actor != "" {
		indexKey := []byte(journalActorKey + entry.Actor + "/" + fmt.Sprintf(journalSeqPadding, entry.Sequence))
		if err := j.db.Put(indexKey, entryKey); err != nil {
			return nil, fmt.Errorf("journal: write actor index: %w", err)
		}
	}

	j.seq++
	if err := j.db.Put([]byte(journalSeqKey), []byte(strconv.FormatUint(j.seq, 10))); err != nil {
		return nil, fmt.Errorf("journal: persist sequence: %w", err)
	}
	return entry, nil
}

// Entries returns every journal entry in sequence order.
func (j *Journal) Entries() ([]JournalEntry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal: not initialised")
	}
	var out []JournalEntry
	err := j.db.IteratePrefix([]byte(journalEntryKey), func(_, value []byte) error {
		var entry JournalEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			return fmt.Errorf("journal: decode entry: %w", err)
		}
		out = append(out, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EntriesByActor returns the entries attributed to one actor, oldest first.
func (j *Journal) EntriesByActor(actor string) ([]JournalEntry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal: not initialised")
	}
	var out []JournalEntry
	err := j.db.IteratePrefix([]byte(journalActorKey+actor+"/"), func(_, entryKey []byte) error {
		raw, getErr := j.db.Get(entryKey)
		if getErr != nil {
			return fmt.Errorf("journal: dangling actor index %q: %w", entryKey, getErr)
		}
		var entry JournalEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("journal: decode entry: %w", err)
		}
		out = append(out, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Emit implements the module event emitter so a journal can be wired directly
// into an engine. Persistence failures are logged rather than surfaced; the
// audit trail must never veto a completed state transition.
func (j *Journal) Emit(evt events.Event) {
	typed, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	payload := typed.Event()
	if payload == nil {
		return
	}
	if _, err := j.Append(payload.Type, payload.Attributes); err != nil {
		slog.Error("journal append failed", "eventType", payload.Type, "error", err)
	}
}

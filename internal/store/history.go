package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Klingon-tech/klingvault/internal/storage"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/types"
)

// ErrEntryNotFound is returned when a journal lookup has no match.
var ErrEntryNotFound = errors.New("history entry not found")

// Outcome is the recorded result of a broadcast attempt.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSuccess   Outcome = "success"
	OutcomeRejected  Outcome = "rejected"
	OutcomeAmbiguous Outcome = "ambiguous"
)

// Final reports whether the outcome is settled from the wallet's side.
// Ambiguous is not final: the transaction may still confirm.
func (o Outcome) Final() bool {
	return o == OutcomeSuccess || o == OutcomeRejected
}

// HistoryEntry is one broadcast attempt.
type HistoryEntry struct {
	ID          uuid.UUID  `json:"id"`
	Chain       chain.ID   `json:"chain"`
	TxID        string     `json:"txid"`
	Fingerprint types.Hash `json:"fingerprint"`
	Outcome     Outcome    `json:"outcome"`
	Reason      string     `json:"reason,omitempty"`
	From        string     `json:"from,omitempty"`
	To          string     `json:"to,omitempty"`
	Amount      string     `json:"amount,omitempty"`
	Fee         string     `json:"fee,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

var (
	journalPrefix = []byte("journal/")
	entryPrefix   = []byte("e/")
	fpPrefix      = []byte("f/")
)

// History is the append-mostly journal of broadcast attempts for one
// chain. Entries are keyed by time-ordered UUIDs and indexed by the
// fingerprint of the raw transaction.
type History struct {
	chain   chain.ID
	db      storage.DB
	root    *storage.PrefixDB
	entries *storage.PrefixDB
	index   *storage.PrefixDB
	owned   bool
}

// NewHistory wraps an existing database.
func NewHistory(id chain.ID, db storage.DB) *History {
	root := storage.NewPrefixDB(db, journalPrefix)
	return &History{
		chain:   id,
		db:      db,
		root:    root,
		entries: storage.NewPrefixDB(root, entryPrefix),
		index:   storage.NewPrefixDB(root, fpPrefix),
	}
}

// OpenHistory opens the badger journal of a chain under the store.
func (s *Store) OpenHistory(id chain.ID) (*History, error) {
	db, err := storage.NewBadger(filepath.Join(s.ChainDir(id), "history"))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	h := NewHistory(id, db)
	h.owned = true
	return h, nil
}

// Close releases the database if the history opened it.
func (h *History) Close() error {
	if h.owned {
		return h.db.Close()
	}
	return nil
}

// Begin records a pending attempt. It must be called before the
// transaction is handed to the network.
func (h *History) Begin(e HistoryEntry) (*HistoryEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("entry id: %w", err)
	}
	now := time.Now().UTC()
	e.ID = id
	e.Chain = h.chain
	e.Outcome = OutcomePending
	e.CreatedAt = now
	e.UpdatedAt = now

	data, err := json.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	batch := h.root.NewBatch()
	if err := batch.Put(entryKey(id), data); err != nil {
		return nil, err
	}
	if err := batch.Put(fpKey(e.Fingerprint), id[:]); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("journal entry: %w", err)
	}
	return &e, nil
}

// Resolve records the outcome of an attempt.
func (h *History) Resolve(id uuid.UUID, outcome Outcome, txid, reason string) (*HistoryEntry, error) {
	e, err := h.Get(id)
	if err != nil {
		return nil, err
	}
	e.Outcome = outcome
	if txid != "" {
		e.TxID = txid
	}
	e.Reason = reason
	e.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	if err := h.entries.Put(id[:], data); err != nil {
		return nil, fmt.Errorf("journal outcome: %w", err)
	}
	return e, nil
}

// Get returns the entry with the given id.
func (h *History) Get(id uuid.UUID) (*HistoryEntry, error) {
	data, err := h.entries.Get(id[:])
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var e HistoryEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", id, err)
	}
	return &e, nil
}

// ByFingerprint returns the latest attempt for a raw transaction.
func (h *History) ByFingerprint(fp types.Hash) (*HistoryEntry, error) {
	raw, err := h.index.Get(fp[:])
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, fp)
	}
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("fingerprint index: %w", err)
	}
	return h.Get(id)
}

// List returns all entries, oldest first.
func (h *History) List() ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := h.entries.ForEach(nil, func(_, value []byte) error {
		var e HistoryEntry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("decode entry: %w", err)
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func entryKey(id uuid.UUID) []byte {
	return append(append([]byte(nil), entryPrefix...), id[:]...)
}

func fpKey(fp types.Hash) []byte {
	return append(append([]byte(nil), fpPrefix...), fp[:]...)
}

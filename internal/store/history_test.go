package store

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingvault/internal/storage"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/crypto"
)

func TestHistory_BeginResolve(t *testing.T) {
	h := NewHistory(chain.BTC, storage.NewMemory())
	fp := crypto.Fingerprint([]byte("raw tx"))

	e, err := h.Begin(HistoryEntry{Fingerprint: fp, TxID: "abc", To: "bc1q", Amount: "0.001"})
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if e.Outcome != OutcomePending || e.Chain != chain.BTC {
		t.Errorf("entry = %+v", e)
	}

	got, err := h.ByFingerprint(fp)
	if err != nil {
		t.Fatalf("ByFingerprint() error: %v", err)
	}
	if got.ID != e.ID {
		t.Errorf("ByFingerprint() id = %s, want %s", got.ID, e.ID)
	}

	if _, err := h.Resolve(e.ID, OutcomeRejected, "", "bad-txns-inputs-missingorspent"); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	got, _ = h.Get(e.ID)
	if got.Outcome != OutcomeRejected || got.Reason != "bad-txns-inputs-missingorspent" || got.TxID != "abc" {
		t.Errorf("resolved entry = %+v", got)
	}
}

func TestHistory_ListOrdered(t *testing.T) {
	h := NewHistory(chain.ETH, storage.NewMemory())
	for _, raw := range []string{"one", "two", "three"} {
		if _, err := h.Begin(HistoryEntry{Fingerprint: crypto.Fingerprint([]byte(raw)), TxID: raw}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := h.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"one", "two", "three"} {
		if list[i].TxID != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].TxID, want)
		}
	}
}

func TestHistory_Missing(t *testing.T) {
	h := NewHistory(chain.ETH, storage.NewMemory())
	if _, err := h.ByFingerprint(crypto.Fingerprint([]byte("x"))); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("error = %v, want ErrEntryNotFound", err)
	}
}

func TestHistory_Badger(t *testing.T) {
	s, _ := New(t.TempDir())
	h, err := s.OpenHistory(chain.SOL)
	if err != nil {
		t.Fatalf("OpenHistory() error: %v", err)
	}
	fp := crypto.Fingerprint([]byte("sol"))
	e, err := h.Begin(HistoryEntry{Fingerprint: fp})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Resolve(e.ID, OutcomeAmbiguous, "sig", "timeout"); err != nil {
		t.Fatal(err)
	}
	h.Close()

	h, err = s.OpenHistory(chain.SOL)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer h.Close()
	got, err := h.ByFingerprint(fp)
	if err != nil {
		t.Fatalf("ByFingerprint() error: %v", err)
	}
	if got.Outcome != OutcomeAmbiguous || got.TxID != "sig" {
		t.Errorf("entry = %+v", got)
	}
}

// Package broadcast hands signed transactions to a chain network exactly
// once and journals the outcome.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/network"
	"github.com/Klingon-tech/klingvault/internal/store"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// RejectedError carries the network's rejection reason verbatim.
type RejectedError = network.RejectedError

// Broadcast errors.
var (
	ErrRejected         = network.ErrRejected
	ErrAmbiguous        = errors.New("broadcast outcome unknown")
	ErrAlreadySubmitted = errors.New("transaction already submitted")
)

// Details are journaled alongside the attempt.
type Details struct {
	From   string
	To     string
	Amount string
	Fee    string
}

// Broadcaster submits signed transactions for one chain.
type Broadcaster struct {
	net     network.Network
	history *store.History
	timeout time.Duration
}

// New creates a broadcaster. A zero timeout leaves the deadline to ctx.
func New(net network.Network, history *store.History, timeout time.Duration) *Broadcaster {
	return &Broadcaster{net: net, history: history, timeout: timeout}
}

// Broadcast submits signed once and returns the network's transaction id.
//
// The attempt is journaled as pending before the network is contacted. A
// definite refusal returns a *RejectedError; anything else that fails after
// the submit started returns ErrAmbiguous, since the transaction may still
// have been accepted. Raw bytes already journaled as pending, ambiguous or
// success are refused with ErrAlreadySubmitted.
func (b *Broadcaster) Broadcast(ctx context.Context, signed *tx.Signed, d Details) (string, error) {
	if signed == nil || len(signed.Raw) == 0 {
		return "", errors.New("nothing to broadcast")
	}
	fp := signed.Fingerprint()
	logger := klog.WithChain(klog.Broadcast, string(signed.Chain))

	prev, err := b.history.ByFingerprint(fp)
	switch {
	case err == nil && prev.Outcome != store.OutcomeRejected:
		return "", fmt.Errorf("%w: %s is %s (entry %s)", ErrAlreadySubmitted, prev.TxID, prev.Outcome, prev.ID)
	case err != nil && !errors.Is(err, store.ErrEntryNotFound):
		return "", fmt.Errorf("check history: %w", err)
	}

	entry, err := b.history.Begin(store.HistoryEntry{
		TxID:        signed.TxID,
		Fingerprint: fp,
		From:        d.From,
		To:          d.To,
		Amount:      d.Amount,
		Fee:         d.Fee,
	})
	if err != nil {
		return "", fmt.Errorf("journal attempt: %w", err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	txid, subErr := b.net.Submit(ctx, signed.Raw)

	var rejected *RejectedError
	switch {
	case subErr == nil:
		if txid == "" {
			txid = signed.TxID
		} else if signed.TxID != "" && txid != signed.TxID {
			logger.Warn().Str("local", signed.TxID).Str("network", txid).Msg("Network reported a different txid")
		}
		if _, err := b.history.Resolve(entry.ID, store.OutcomeSuccess, txid, ""); err != nil {
			return txid, fmt.Errorf("journal outcome: %w", err)
		}
		logger.Info().Str("txid", txid).Msg("Transaction broadcast")
		return txid, nil

	case errors.As(subErr, &rejected):
		if _, err := b.history.Resolve(entry.ID, store.OutcomeRejected, "", rejected.Reason); err != nil {
			logger.Error().Err(err).Msg("Failed to journal rejection")
		}
		logger.Warn().Str("reason", rejected.Reason).Msg("Transaction rejected")
		return "", fmt.Errorf("broadcast %s: %w", signed.Chain, rejected)

	default:
		if _, err := b.history.Resolve(entry.ID, store.OutcomeAmbiguous, "", subErr.Error()); err != nil {
			logger.Error().Err(err).Msg("Failed to journal ambiguous outcome")
		}
		logger.Warn().Err(subErr).Str("txid", signed.TxID).Msg("Broadcast outcome unknown")
		return "", fmt.Errorf("%w: %w", ErrAmbiguous, subErr)
	}
}

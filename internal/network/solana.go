package network

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	klog "github.com/Klingon-tech/klingvault/internal/log"
)

// DefaultSolanaURL is the public mainnet-beta endpoint.
const DefaultSolanaURL = "https://api.mainnet-beta.solana.com"

// Solana talks to a Solana JSON-RPC node.
type Solana struct {
	client *rpc.Client
	opts   Options
}

// NewSolana creates a client for opts.URL.
func NewSolana(opts Options) *Solana {
	return &Solana{client: rpc.New(opts.URL), opts: opts}
}

// AccountState fetches the balance and a fresh blockhash.
func (s *Solana) AccountState(ctx context.Context, addr string) (*AccountState, error) {
	owner, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}
	state := &AccountState{Address: addr}

	err = retry(ctx, s.opts.Retries, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.opts.timeout())
		defer cancel()

		bal, err := s.client.GetBalance(ctx, owner, rpc.CommitmentFinalized)
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		block, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return fmt.Errorf("get latest blockhash: %w", err)
		}
		state.Balance = new(big.Int).SetUint64(bal.Value)
		state.RecentBlockhash = block.Value.Blockhash.String()
		return nil
	})
	if err != nil {
		return nil, err
	}
	klog.WithChain(klog.Network, "SOL").Debug().Str("address", addr).Str("balance", state.Balance.String()).Msg("account state")
	return state, nil
}

// Submit sends a signed wire transaction with preflight checks.
func (s *Solana) Submit(ctx context.Context, raw []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout())
	defer cancel()

	noRetry := uint(0)
	sig, err := s.client.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
		MaxRetries:          &noRetry,
	})
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			return "", &RejectedError{Reason: rpcErr.Message}
		}
		return "", err
	}
	return sig.String(), nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Klingon-tech/klingvault/internal/derive"
	"github.com/Klingon-tech/klingvault/internal/fee"
	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/network"
	"github.com/Klingon-tech/klingvault/internal/store"
	"github.com/Klingon-tech/klingvault/internal/txbuild"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// ChainBackend is the wallet surface of one chain. Variants exist per
// chain family and are selected from the descriptor.
type ChainBackend interface {
	Descriptor() *chain.Descriptor

	// Create generates or imports key material and persists a new wallet.
	// The caller owns the returned record and must Zero its key.
	Create(ctx context.Context, opts CreateOptions) (*store.Record, error)
	View(ctx context.Context) (*View, error)
	// Receive returns the first count addresses, deriving and caching any
	// that are missing.
	Receive(ctx context.Context, count int) ([]wallet.DerivedAddress, error)
	QuoteFee(ctx context.Context, intent fee.Intent) (*fee.Quote, error)
	// Prepare builds and signs a payment without submitting it, so the
	// caller can show the exact fee before Submit.
	Prepare(ctx context.Context, req SendRequest) (*SendResult, error)
	// Submit broadcasts a prepared payment once.
	Submit(ctx context.Context, res *SendResult) error
	// Send is Prepare followed by Submit, or Prepare alone for a dry run.
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
	History(ctx context.Context) ([]store.HistoryEntry, error)
}

// CreateOptions configures wallet creation.
type CreateOptions struct {
	// Import is a mnemonic, hex key or seed. Empty generates fresh material.
	Import string
}

// View is a read-only summary of a wallet.
type View struct {
	Chain     *chain.Descriptor
	CreatedAt time.Time
	Encrypted bool
	Addresses []wallet.DerivedAddress

	// Balance is nil when it could not be fetched; BalanceErr says why.
	Balance    *Balance
	BalanceErr error
}

// Balance is the on-chain state of the default address.
type Balance struct {
	// Native is in minor units of the fee asset.
	Native *big.Int
	// Token is set on token rails, in token minor units.
	Token *big.Int
	Nonce uint64
	UTXOs int
}

// ErrReceiveOnly is returned by Send on chains without a transaction path.
var ErrReceiveOnly = txbuild.ErrUnsupportedChain

func newBackend(e *Engine, desc *chain.Descriptor) ChainBackend {
	b := &base{e: e, desc: desc}
	switch desc.Family {
	case chain.FamilyUTXO:
		return &utxoBackend{b}
	case chain.FamilyAccount:
		return &accountBackend{b}
	case chain.FamilyEd25519:
		return &ed25519Backend{b}
	default:
		return &privacyBackend{b}
	}
}

// base carries what every family shares: key material, address cache, fee
// quotes and history.
type base struct {
	e    *Engine
	desc *chain.Descriptor
}

func (b *base) Descriptor() *chain.Descriptor {
	return b.desc
}

func (b *base) Create(ctx context.Context, opts CreateOptions) (*store.Record, error) {
	if b.e.store.Exists(b.desc.ID) {
		return nil, fmt.Errorf("create %s: %w", b.desc.ID, store.ErrAlreadyExists)
	}

	var (
		km  *wallet.KeyMaterial
		err error
	)
	if opts.Import != "" {
		km, err = wallet.ImportKeyMaterial(b.desc, opts.Import)
	} else {
		km, err = wallet.GenerateKeyMaterial(b.desc)
	}
	if err != nil {
		return nil, wrapChain(b.desc, "create", err)
	}

	addrs, err := b.deriveRange(km, 0, uint32(b.e.cfg.Wallet.ReceiveCount))
	if len(addrs) == 0 {
		km.Zero()
		return nil, wrapChain(b.desc, "derive", err)
	}
	if addrs[0].Method == derive.MethodEd25519Fallback {
		klog.WithChain(klog.Wallet, string(b.desc.ID)).Warn().
			Str("path", addrs[0].Path).
			Msg("Canonical derivation unavailable; wallet uses the ed25519 fallback path")
	}

	rec, err := b.e.store.Create(b.desc.ID, km, addrs)
	if err != nil {
		km.Zero()
		return nil, err
	}
	km.Address = addrs[0].Address
	return rec, nil
}

// deriveRange derives up to count addresses from start. It stops at the
// first failing index and returns what it has with that error.
func (b *base) deriveRange(km *wallet.KeyMaterial, start, count uint32) ([]wallet.DerivedAddress, error) {
	results, err := derive.Derive(km, b.desc, start, count)
	if err != nil {
		return nil, err
	}
	var out []wallet.DerivedAddress
	for _, r := range results {
		if r.Err != nil {
			return out, r.Err
		}
		out = append(out, *r.Address)
	}
	return out, nil
}

// load reads the wallet and checks that its default address still
// re-derives from the stored secret.
func (b *base) load() (*store.Record, error) {
	rec, err := b.e.store.Load(b.desc.ID)
	if err != nil {
		return nil, err
	}
	if err := derive.Verify(rec.Key, b.desc, rec.Default()); err != nil {
		rec.Key.Zero()
		return nil, b.e.store.Quarantine(b.desc.ID, err)
	}
	return rec, nil
}

func (b *base) view(ctx context.Context, balance func(*network.AccountState) *Balance) (*View, error) {
	rec, err := b.load()
	if err != nil {
		return nil, err
	}
	rec.Key.Zero()

	v := &View{
		Chain:     b.desc,
		CreatedAt: rec.CreatedAt,
		Encrypted: rec.Encrypted,
		Addresses: rec.Addresses,
	}
	if balance == nil {
		v.BalanceErr = network.ErrNoNetwork
		return v, nil
	}

	net, err := b.e.openNet(ctx, b.desc)
	if err != nil {
		v.BalanceErr = err
		return v, nil
	}
	defer closeNetwork(net)

	state, err := net.AccountState(ctx, rec.Default().Address)
	if err != nil {
		v.BalanceErr = err
		return v, nil
	}
	v.Balance = balance(state)
	return v, nil
}

func (b *base) Receive(ctx context.Context, count int) ([]wallet.DerivedAddress, error) {
	if count <= 0 {
		count = b.e.cfg.Wallet.ReceiveCount
	}
	rec, err := b.load()
	if err != nil {
		return nil, err
	}
	defer rec.Key.Zero()

	have := len(rec.Addresses)
	if count > have {
		fresh, derr := b.deriveRange(rec.Key, uint32(have), uint32(count-have))
		if derr != nil && !errors.Is(derr, derive.ErrPathExhausted) {
			klog.WithChain(klog.Wallet, string(b.desc.ID)).Warn().Err(derr).
				Int("derived", len(fresh)).Msg("Address derivation stopped early")
		}
		if err := b.e.store.ExtendAddresses(rec, fresh); err != nil {
			return nil, err
		}
	}
	if count > len(rec.Addresses) {
		count = len(rec.Addresses)
	}
	return rec.Addresses[:count], nil
}

func (b *base) QuoteFee(ctx context.Context, intent fee.Intent) (*fee.Quote, error) {
	return b.e.oracle.Quote(ctx, b.desc, intent)
}

func (b *base) History(ctx context.Context) ([]store.HistoryEntry, error) {
	if !b.e.store.Exists(b.desc.ID) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, b.desc.ID)
	}
	h, err := b.e.store.OpenHistory(b.desc.ID)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.List()
}

// utxoBackend serves BTC-like chains. Balance is the sum of the default
// address's unspent outputs.
type utxoBackend struct{ *base }

func (u *utxoBackend) View(ctx context.Context) (*View, error) {
	return u.view(ctx, func(s *network.AccountState) *Balance {
		return &Balance{Native: s.Balance, UTXOs: len(s.UTXOs)}
	})
}

func (u *utxoBackend) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	return u.send(ctx, req)
}

// accountBackend serves EVM chains, token rails and receive-only account
// chains such as ATOM.
type accountBackend struct{ *base }

func (a *accountBackend) View(ctx context.Context) (*View, error) {
	if !a.desc.CanSend {
		return a.view(ctx, nil)
	}
	return a.view(ctx, func(s *network.AccountState) *Balance {
		return &Balance{Native: s.Balance, Token: s.TokenBalance, Nonce: s.Nonce}
	})
}

func (a *accountBackend) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	return a.send(ctx, req)
}

// ed25519Backend serves SOL and the receive-only ADA.
type ed25519Backend struct{ *base }

func (d *ed25519Backend) View(ctx context.Context) (*View, error) {
	if !d.desc.CanSend {
		return d.view(ctx, nil)
	}
	return d.view(ctx, func(s *network.AccountState) *Balance {
		return &Balance{Native: s.Balance}
	})
}

func (d *ed25519Backend) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	return d.send(ctx, req)
}

// privacyBackend serves XMR: keys and addresses only. Ring signatures and
// view-key scanning are out of reach.
type privacyBackend struct{ *base }

func (p *privacyBackend) View(ctx context.Context) (*View, error) {
	return p.view(ctx, nil)
}

func (p *privacyBackend) Send(context.Context, SendRequest) (*SendResult, error) {
	return nil, fmt.Errorf("%w: %s is receive-only", ErrReceiveOnly, p.desc.ID)
}

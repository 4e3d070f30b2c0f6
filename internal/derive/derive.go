// Package derive turns key material into per-index keys and addresses for
// every supported chain.
//
// Derivation is deterministic: the same key material, chain and index always
// produce the same public key and address. Failures are reported per index so
// a batch never aborts half way.
package derive

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingvault/internal/address"
	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// Derivation errors.
var (
	ErrUnsupportedCoinType = errors.New("unsupported coin type for canonical derivation")
	ErrInvalidSeedLength   = errors.New("invalid seed length")
	ErrPathExhausted       = errors.New("key material yields no further addresses")
	ErrCurveMismatch       = errors.New("key material does not match chain")
	ErrAddressMismatch     = errors.New("re-derived address does not match")
)

// Method tags recorded with each derived address.
const (
	MethodBIP44           = string(chain.SchemeBIP44)
	MethodKeypair         = string(chain.SchemeKeypair)
	MethodSLIP10          = string(chain.SchemeSLIP10)
	MethodMonero          = string(chain.SchemeMonero)
	MethodCosmos          = string(chain.SchemeCosmos)
	MethodCardano         = string(chain.SchemeCIP1852)
	MethodEd25519Fallback = "ed25519_fallback"
)

// Result is the outcome of deriving one index.
type Result struct {
	Index   uint32
	Address *wallet.DerivedAddress
	Err     error
}

// derived is the full output of one derivation, private parts included.
type derived struct {
	private []byte
	public  []byte
	view    []byte
	address string
	path    string
	method  string
}

func (d *derived) zero() {
	wallet.Zero(d.private)
	wallet.Zero(d.view)
}

func (d *derived) toAddress(index uint32) *wallet.DerivedAddress {
	return &wallet.DerivedAddress{
		Index:     index,
		Address:   d.address,
		PublicKey: hex.EncodeToString(d.public),
		Path:      d.path,
		Method:    d.method,
	}
}

// Derive derives count addresses starting at index start. The returned error
// is non-nil only when the key material cannot serve the chain at all; index
// level failures are carried in each Result.
func Derive(km *wallet.KeyMaterial, desc *chain.Descriptor, start, count uint32) ([]Result, error) {
	if err := checkBinding(km, desc); err != nil {
		return nil, err
	}
	logger := klog.WithChain(klog.Derive, string(desc.ID))

	results := make([]Result, 0, count)
	for i := uint32(0); i < count; i++ {
		index := start + i
		if index < start {
			break // wrapped
		}
		var d *derived
		err := km.Use(func(secret []byte) error {
			var derr error
			d, derr = deriveIndex(desc, km.Kind, secret, index)
			return derr
		})
		if err != nil {
			logger.Debug().Uint32("index", index).Err(err).Msg("derivation failed")
			results = append(results, Result{Index: index, Err: err})
			continue
		}
		addr := d.toAddress(index)
		d.zero()
		logger.Debug().Uint32("index", index).Str("method", addr.Method).Msg("derived address")
		results = append(results, Result{Index: index, Address: addr})
	}
	return results, nil
}

// PrivateKey derives the signing key for one index. The caller must Zero it.
func PrivateKey(km *wallet.KeyMaterial, desc *chain.Descriptor, index uint32) (*wallet.DerivedKey, error) {
	if err := checkBinding(km, desc); err != nil {
		return nil, err
	}
	var d *derived
	err := km.Use(func(secret []byte) error {
		var derr error
		d, derr = deriveIndex(desc, km.Kind, secret, index)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return &wallet.DerivedKey{
		Chain:   desc.ID,
		Curve:   desc.Curve,
		Index:   index,
		Private: d.private,
		Public:  d.public,
		Address: d.address,
		ViewKey: d.view,
	}, nil
}

// Verify re-derives addr.Index and checks that the public key and address
// match the cached entry.
func Verify(km *wallet.KeyMaterial, desc *chain.Descriptor, addr wallet.DerivedAddress) error {
	results, err := Derive(km, desc, addr.Index, 1)
	if err != nil {
		return err
	}
	r := results[0]
	if r.Err != nil {
		return r.Err
	}
	if r.Address.Address != addr.Address || r.Address.PublicKey != addr.PublicKey {
		return fmt.Errorf("%w: index %d: have %s, derived %s", ErrAddressMismatch, addr.Index, addr.Address, r.Address.Address)
	}
	if err := address.Validate(desc, r.Address.Address); err != nil {
		return err
	}
	return nil
}

func checkBinding(km *wallet.KeyMaterial, desc *chain.Descriptor) error {
	if km == nil {
		return fmt.Errorf("%w: no key material", ErrCurveMismatch)
	}
	if km.Chain != desc.ID {
		return fmt.Errorf("%w: key material for %s used with %s", ErrCurveMismatch, km.Chain, desc.ID)
	}
	switch km.Kind {
	case wallet.SecretMnemonic:
		if desc.Scheme == chain.SchemeMonero {
			return fmt.Errorf("%w: %s does not derive from a mnemonic", ErrCurveMismatch, desc.ID)
		}
	case wallet.SecretPrivateKey:
		if desc.Curve != chain.Secp256k1 {
			return fmt.Errorf("%w: secp256k1 private key used with %s curve", ErrCurveMismatch, desc.Curve)
		}
	case wallet.SecretSeed:
		if desc.Curve != chain.Ed25519 {
			return fmt.Errorf("%w: ed25519 seed used with %s curve", ErrCurveMismatch, desc.Curve)
		}
	default:
		return fmt.Errorf("%w: unknown secret kind %q", ErrCurveMismatch, km.Kind)
	}
	return nil
}

// deriveIndex dispatches on the chain's canonical scheme and the kind of
// secret held.
func deriveIndex(desc *chain.Descriptor, kind wallet.SecretKind, secret []byte, index uint32) (*derived, error) {
	switch kind {
	case wallet.SecretPrivateKey:
		if index > 0 {
			return nil, fmt.Errorf("%w: a single private key only has index 0", ErrPathExhausted)
		}
		return fromPrivateKey(desc, secret)

	case wallet.SecretSeed:
		if index > 0 {
			return nil, fmt.Errorf("%w: a single seed only has index 0", ErrPathExhausted)
		}
		if desc.Scheme == chain.SchemeMonero {
			return moneroFromSeed(secret)
		}
		return ed25519FromSeed(desc, secret)

	case wallet.SecretMnemonic:
		return fromMnemonic(desc, string(secret), index)
	}
	return nil, fmt.Errorf("%w: unknown secret kind %q", ErrCurveMismatch, kind)
}

func fromMnemonic(desc *chain.Descriptor, mnemonic string, index uint32) (*derived, error) {
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	defer wallet.Zero(seed)

	switch desc.Scheme {
	case chain.SchemeBIP44, chain.SchemeKeypair:
		if desc.Curve == chain.Ed25519 {
			return slip10(desc, seed, index, MethodSLIP10)
		}
		return bip44(desc, seed, index, MethodBIP44)

	case chain.SchemeCosmos, chain.SchemeCIP1852:
		d, err := canonical(desc, seed, index)
		if err == nil {
			return d, nil
		}
		klog.Derive.Debug().Str("chain", string(desc.ID)).Uint32("index", index).Err(err).
			Msg("canonical derivation unavailable, using ed25519 fallback")
		return slip10(desc, seed, index, MethodEd25519Fallback)
	}
	return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedCoinType, desc.Scheme)
}

// canonical runs the chain's preferred scheme for chains that have a
// fallback.
func canonical(desc *chain.Descriptor, seed []byte, index uint32) (*derived, error) {
	if desc.Scheme == chain.SchemeCosmos {
		return bip44(desc, seed, index, MethodCosmos)
	}
	// CIP-1852 Shelley keys need BIP32-Ed25519, which no available library
	// implements.
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCoinType, desc.Scheme)
}

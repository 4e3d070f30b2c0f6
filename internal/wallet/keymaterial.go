package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/crypto"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// ErrInvalidSecret is returned when imported key material cannot be parsed
// for the target chain.
var ErrInvalidSecret = errors.New("invalid secret for chain")

// SecretKind tags the representation of a wallet secret.
type SecretKind string

const (
	SecretMnemonic   SecretKind = "mnemonic"
	SecretPrivateKey SecretKind = "private_key"
	SecretSeed       SecretKind = "seed"
)

// SeedBytesSize is the length of a raw ed25519 or Monero seed.
const SeedBytesSize = 32

// KeyMaterial is the root secret of one wallet. The secret never leaves the
// struct except through Use, and Zero wipes it.
type KeyMaterial struct {
	Chain     chain.ID
	Kind      SecretKind
	PublicKey []byte
	Address   string

	secret []byte
}

// NewKeyMaterial copies secret into a new KeyMaterial.
func NewKeyMaterial(id chain.ID, kind SecretKind, secret []byte) *KeyMaterial {
	s := make([]byte, len(secret))
	copy(s, secret)
	return &KeyMaterial{Chain: id, Kind: kind, secret: s}
}

// Use calls fn with the secret. fn must not retain the slice.
func (k *KeyMaterial) Use(fn func(secret []byte) error) error {
	if len(k.secret) == 0 {
		return fmt.Errorf("key material for %s has been wiped", k.Chain)
	}
	return fn(k.secret)
}

// Zero wipes the secret.
func (k *KeyMaterial) Zero() {
	Zero(k.secret)
	k.secret = nil
}

// GenerateKeyMaterial creates fresh key material of the kind the chain's
// derivation scheme expects.
func GenerateKeyMaterial(desc *chain.Descriptor) (*KeyMaterial, error) {
	switch desc.Scheme {
	case chain.SchemeBIP44, chain.SchemeCosmos, chain.SchemeCIP1852:
		mnemonic, err := GenerateMnemonic()
		if err != nil {
			return nil, err
		}
		return NewKeyMaterial(desc.ID, SecretMnemonic, []byte(mnemonic)), nil

	case chain.SchemeKeypair:
		if desc.Curve == chain.Secp256k1 {
			key, err := crypto.GenerateKey()
			if err != nil {
				return nil, err
			}
			defer key.Zero()
			raw := key.Serialize()
			defer Zero(raw)
			return NewKeyMaterial(desc.ID, SecretPrivateKey, raw), nil
		}
		return randomSeed(desc.ID)

	case chain.SchemeMonero:
		return randomSeed(desc.ID)

	default:
		return nil, fmt.Errorf("no key generator for scheme %q", desc.Scheme)
	}
}

func randomSeed(id chain.ID) (*KeyMaterial, error) {
	seed := make([]byte, SeedBytesSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	defer Zero(seed)
	return NewKeyMaterial(id, SecretSeed, seed), nil
}

// ImportKeyMaterial parses user-supplied key material for desc. Accepted
// forms: a BIP-39 mnemonic (any chain except XMR), a 32-byte hex key or
// seed, a WIF key on UTXO chains and a base58 keypair on SOL.
func ImportKeyMaterial(desc *chain.Descriptor, input string) (*KeyMaterial, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidSecret)
	}

	if len(strings.Fields(input)) > 1 {
		if desc.Scheme == chain.SchemeMonero {
			return nil, fmt.Errorf("%w: %s imports a hex seed, not a word list", ErrInvalidSecret, desc.ID)
		}
		mnemonic := NormalizeMnemonic(input)
		if !ValidateMnemonic(mnemonic) {
			return nil, fmt.Errorf("%w: mnemonic checksum or word list mismatch", ErrInvalidSecret)
		}
		return NewKeyMaterial(desc.ID, SecretMnemonic, []byte(mnemonic)), nil
	}

	if desc.Scheme == chain.SchemeCosmos || desc.Scheme == chain.SchemeCIP1852 {
		return nil, fmt.Errorf("%w: %s wallets import from a mnemonic", ErrInvalidSecret, desc.ID)
	}

	if raw, err := hex.DecodeString(strings.TrimPrefix(input, "0x")); err == nil && len(raw) == 32 {
		defer Zero(raw)
		if desc.Curve == chain.Secp256k1 {
			if _, err := crypto.PrivateKeyFromBytes(raw); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
			}
			return NewKeyMaterial(desc.ID, SecretPrivateKey, raw), nil
		}
		return NewKeyMaterial(desc.ID, SecretSeed, raw), nil
	}

	switch {
	case desc.Family == chain.FamilyUTXO:
		wif, err := btcutil.DecodeWIF(input)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
		}
		if !wif.CompressPubKey {
			return nil, fmt.Errorf("%w: uncompressed WIF keys are not supported", ErrInvalidSecret)
		}
		raw := wif.PrivKey.Serialize()
		defer Zero(raw)
		return NewKeyMaterial(desc.ID, SecretPrivateKey, raw), nil

	case desc.ID == chain.SOL:
		raw := base58.Decode(input)
		defer Zero(raw)
		if len(raw) != 64 {
			return nil, fmt.Errorf("%w: solana keypair must be 64 bytes", ErrInvalidSecret)
		}
		return NewKeyMaterial(desc.ID, SecretSeed, raw[:32]), nil
	}

	return nil, fmt.Errorf("%w: unrecognised format", ErrInvalidSecret)
}

// DerivedAddress is one entry of a wallet's address cache.
type DerivedAddress struct {
	Index     uint32 `json:"index"`
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
	Path      string `json:"path,omitempty"`
	Method    string `json:"method"`
}

// DerivedKey is the signing key for one derived address.
type DerivedKey struct {
	Chain   chain.ID
	Curve   chain.Curve
	Index   uint32
	Private []byte // secp256k1 scalar or ed25519 seed
	Public  []byte
	Address string

	// ViewKey is set for Monero keys only.
	ViewKey []byte
}

// Zero wipes the private parts of the key.
func (k *DerivedKey) Zero() {
	Zero(k.Private)
	Zero(k.ViewKey)
}

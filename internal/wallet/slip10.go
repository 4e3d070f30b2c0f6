package wallet

import (
	"errors"
	"fmt"

	slip10 "github.com/anyproto/go-slip10"
)

// ErrNonHardened is returned when an ed25519 path contains a
// non-hardened component. SLIP-10 ed25519 only defines hardened children.
var ErrNonHardened = errors.New("ed25519 derivation requires hardened indices")

// Ed25519Key is a SLIP-10 ed25519 extended private key.
type Ed25519Key struct {
	node slip10.Node
}

// NewEd25519MasterKey creates the SLIP-10 master key for a 16..64 byte seed.
func NewEd25519MasterKey(seed []byte) (*Ed25519Key, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, fmt.Errorf("seed must be 16..64 bytes, got %d", len(seed))
	}
	node, err := slip10.NewMasterNode(seed)
	if err != nil {
		return nil, fmt.Errorf("ed25519 master key: %w", err)
	}
	return &Ed25519Key{node: node}, nil
}

// DeriveChild derives the hardened child at index (which must already
// include HardenedOffset).
func (k *Ed25519Key) DeriveChild(index uint32) (*Ed25519Key, error) {
	if index < HardenedOffset {
		return nil, fmt.Errorf("%w: index %d", ErrNonHardened, index)
	}
	child, err := k.node.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index-HardenedOffset, err)
	}
	return &Ed25519Key{node: child}, nil
}

// DerivePath derives along indices. Intermediate keys are wiped.
func (k *Ed25519Key) DerivePath(indices ...uint32) (*Ed25519Key, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if current != k {
			current.Zero()
		}
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// Seed returns a copy of the 32-byte ed25519 private seed.
func (k *Ed25519Key) Seed() []byte {
	return append([]byte(nil), k.node.RawSeed()...)
}

// PublicKey returns the 32-byte ed25519 public key.
func (k *Ed25519Key) PublicKey() []byte {
	pub, priv := k.node.Keypair()
	Zero(priv)
	return append([]byte(nil), pub...)
}

// Zero wipes the private key. The node's chain code is not exported by
// slip10 and is dropped with the key.
func (k *Ed25519Key) Zero() {
	Zero(k.node.RawSeed())
}

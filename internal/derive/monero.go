package derive

import (
	"fmt"

	"filippo.io/edwards25519"

	"github.com/Klingon-tech/klingvault/internal/address"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/crypto"
)

// scReduce32 reduces a 32-byte little-endian value modulo the ed25519 group
// order.
func scReduce32(b []byte) (*edwards25519.Scalar, error) {
	var wide [64]byte
	copy(wide[:], b)
	defer wallet.Zero(wide[:])
	return edwards25519.NewScalar().SetUniformBytes(wide[:])
}

// moneroFromSeed derives the spend and view keys from a 32-byte seed:
// spend = sc_reduce32(seed), view = sc_reduce32(keccak256(spend)).
func moneroFromSeed(seed []byte) (*derived, error) {
	if len(seed) != 32 {
		return nil, fmt.Errorf("%w: monero seed must be 32 bytes, got %d", ErrInvalidSeedLength, len(seed))
	}
	spend, err := scReduce32(seed)
	if err != nil {
		return nil, err
	}
	spendBytes := spend.Bytes()
	viewHash := crypto.Keccak256(spendBytes)
	view, err := scReduce32(viewHash[:])
	wallet.Zero(viewHash[:])
	if err != nil {
		wallet.Zero(spendBytes)
		return nil, err
	}

	spendPub := new(edwards25519.Point).ScalarBaseMult(spend).Bytes()
	viewPub := new(edwards25519.Point).ScalarBaseMult(view).Bytes()
	addr, err := address.MoneroAddress(spendPub, viewPub)
	if err != nil {
		wallet.Zero(spendBytes)
		return nil, err
	}

	public := make([]byte, 0, 64)
	public = append(public, spendPub...)
	public = append(public, viewPub...)
	return &derived{
		private: spendBytes,
		view:    view.Bytes(),
		public:  public,
		address: addr,
		method:  MethodMonero,
	}, nil
}

package derive

import (
	"crypto/ed25519"
	"fmt"

	"github.com/Klingon-tech/klingvault/internal/address"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/crypto"
)

// bip44 derives m/44'/coin'/0'/0/index on secp256k1.
func bip44(desc *chain.Descriptor, seed []byte, index uint32, method string) (*derived, error) {
	if index >= wallet.HardenedOffset {
		return nil, fmt.Errorf("%w: index %d out of range", ErrPathExhausted, index)
	}
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeedLength, err)
	}
	defer master.Zero()

	path := wallet.BIP44Path(desc.CoinType, 0, wallet.ChangeExternal, index)
	key, err := master.DerivePath(path...)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	priv := append([]byte(nil), key.PrivateKeyBytes()...)
	pub := key.PublicKeyBytes()
	addr, err := address.FromPublicKey(desc, pub)
	if err != nil {
		wallet.Zero(priv)
		return nil, err
	}
	return &derived{
		private: priv,
		public:  pub,
		address: addr,
		path:    wallet.FormatPath(path),
		method:  method,
	}, nil
}

// slip10 derives the chain's hardened ed25519 path template at index.
func slip10(desc *chain.Descriptor, seed []byte, index uint32, method string) (*derived, error) {
	if desc.Ed25519Path == "" {
		return nil, fmt.Errorf("%w: %s has no ed25519 path", ErrUnsupportedCoinType, desc.ID)
	}
	if index >= wallet.HardenedOffset {
		return nil, fmt.Errorf("%w: index %d out of range", ErrPathExhausted, index)
	}
	pathStr := fmt.Sprintf(desc.Ed25519Path, index)
	path, err := wallet.ParsePath(pathStr)
	if err != nil {
		return nil, err
	}

	master, err := wallet.NewEd25519MasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeedLength, err)
	}
	defer master.Zero()
	key, err := master.DerivePath(path...)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	priv := key.Seed()
	pub := key.PublicKey()
	addr, err := address.FromPublicKey(desc, pub)
	if err != nil {
		wallet.Zero(priv)
		return nil, err
	}
	return &derived{
		private: priv,
		public:  pub,
		address: addr,
		path:    pathStr,
		method:  method,
	}, nil
}

// fromPrivateKey treats a raw secp256k1 key as the single account.
func fromPrivateKey(desc *chain.Descriptor, secret []byte) (*derived, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes, got %d", ErrInvalidSeedLength, len(secret))
	}
	key, err := crypto.PrivateKeyFromBytes(secret)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	pub := key.PublicKey()
	addr, err := address.FromPublicKey(desc, pub)
	if err != nil {
		return nil, err
	}
	return &derived{
		private: key.Serialize(),
		public:  pub,
		address: addr,
		method:  MethodKeypair,
	}, nil
}

// ed25519FromSeed treats a 32-byte seed as the single ed25519 keypair.
func ed25519FromSeed(desc *chain.Descriptor, seed []byte) (*derived, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes, got %d", ErrInvalidSeedLength, ed25519.SeedSize, len(seed))
	}
	full := ed25519.NewKeyFromSeed(seed)
	defer wallet.Zero(full)
	pub := append([]byte(nil), full[32:]...)

	addr, err := address.FromPublicKey(desc, pub)
	if err != nil {
		return nil, err
	}
	return &derived{
		private: append([]byte(nil), seed...),
		public:  pub,
		address: addr,
		method:  MethodKeypair,
	}, nil
}

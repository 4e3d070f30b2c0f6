package derive

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingvault/internal/address"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/crypto"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func mnemonicKM(id chain.ID) *wallet.KeyMaterial {
	return wallet.NewKeyMaterial(id, wallet.SecretMnemonic, []byte(testMnemonic))
}

func deriveOK(t *testing.T, km *wallet.KeyMaterial, desc *chain.Descriptor, start, count uint32) []*wallet.DerivedAddress {
	t.Helper()
	results, err := Derive(km, desc, start, count)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if len(results) != int(count) {
		t.Fatalf("Derive() returned %d results, want %d", len(results), count)
	}
	out := make([]*wallet.DerivedAddress, len(results))
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("index %d: %v", r.Index, r.Err)
		}
		out[i] = r.Address
	}
	return out
}

func TestDerive_BitcoinVector(t *testing.T) {
	addrs := deriveOK(t, mnemonicKM(chain.BTC), chain.MustLookup(chain.BTC), 0, 1)
	a := addrs[0]
	if a.Address != "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA" {
		t.Errorf("address = %s", a.Address)
	}
	if a.Path != "m/44'/0'/0'/0/0" {
		t.Errorf("path = %s", a.Path)
	}
	if a.Method != MethodBIP44 {
		t.Errorf("method = %s", a.Method)
	}
	if len(a.PublicKey) != 66 {
		t.Errorf("public key hex length = %d, want 66", len(a.PublicKey))
	}
}

func TestDerive_EthereumMnemonicVector(t *testing.T) {
	addrs := deriveOK(t, mnemonicKM(chain.ETH), chain.MustLookup(chain.ETH), 0, 1)
	if addrs[0].Address != "0x9858EfFD232B4033E47d90003D41EC34EcaEda94" {
		t.Errorf("address = %s", addrs[0].Address)
	}
	if addrs[0].Path != "m/44'/60'/0'/0/0" {
		t.Errorf("path = %s", addrs[0].Path)
	}
}

func TestDerive_ReDeriveSameAddresses(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	first := deriveOK(t, mnemonicKM(chain.BTC), desc, 0, 3)
	second := deriveOK(t, mnemonicKM(chain.BTC), desc, 0, 3)
	for i := range first {
		if *first[i] != *second[i] {
			t.Errorf("index %d: %+v != %+v", i, first[i], second[i])
		}
	}
	if first[0].Address == first[1].Address || first[1].Address == first[2].Address {
		t.Error("consecutive indices produced the same address")
	}
}

func TestDerive_AllChainsRoundTrip(t *testing.T) {
	for _, desc := range chain.All() {
		t.Run(string(desc.ID), func(t *testing.T) {
			km, err := wallet.GenerateKeyMaterial(desc)
			if err != nil {
				t.Fatalf("GenerateKeyMaterial() error: %v", err)
			}
			defer km.Zero()

			first := deriveOK(t, km, desc, 0, 1)[0]
			again := deriveOK(t, km, desc, 0, 1)[0]
			if *first != *again {
				t.Fatalf("derivation not deterministic: %+v vs %+v", first, again)
			}
			if err := address.Validate(desc, first.Address); err != nil {
				t.Fatalf("derived address fails validation: %v", err)
			}
			if err := Verify(km, desc, *first); err != nil {
				t.Fatalf("Verify() error: %v", err)
			}
		})
	}
}

func TestDerive_PrivateKeyAccountHasOneIndex(t *testing.T) {
	desc := chain.MustLookup(chain.ETH)
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	km := wallet.NewKeyMaterial(chain.ETH, wallet.SecretPrivateKey, key.Serialize())

	results, err := Derive(km, desc, 0, 3)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("index 0: %v", results[0].Err)
	}
	if results[0].Address.Method != MethodKeypair || results[0].Address.Path != "" {
		t.Errorf("index 0 = %+v", results[0].Address)
	}
	for _, r := range results[1:] {
		if !errors.Is(r.Err, ErrPathExhausted) {
			t.Errorf("index %d: err = %v, want ErrPathExhausted", r.Index, r.Err)
		}
		if r.Address != nil {
			t.Errorf("index %d: unexpected address", r.Index)
		}
	}
}

func TestDerive_SolanaSeedAndMnemonic(t *testing.T) {
	desc := chain.MustLookup(chain.SOL)
	seed := bytes.Repeat([]byte{9}, 32)
	km := wallet.NewKeyMaterial(chain.SOL, wallet.SecretSeed, seed)
	a := deriveOK(t, km, desc, 0, 1)[0]
	want := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if a.PublicKey != hex.EncodeToString(want) {
		t.Errorf("public key = %s", a.PublicKey)
	}

	m := deriveOK(t, mnemonicKM(chain.SOL), desc, 0, 2)
	if m[0].Path != "m/44'/501'/0'/0'" || m[1].Path != "m/44'/501'/1'/0'" {
		t.Errorf("paths = %s, %s", m[0].Path, m[1].Path)
	}
	if m[0].Method != MethodSLIP10 {
		t.Errorf("method = %s", m[0].Method)
	}
}

func TestDerive_CardanoFallback(t *testing.T) {
	a := deriveOK(t, mnemonicKM(chain.ADA), chain.MustLookup(chain.ADA), 0, 1)[0]
	if a.Method != MethodEd25519Fallback {
		t.Errorf("method = %s, want %s", a.Method, MethodEd25519Fallback)
	}
	if a.Path != "m/1852'/1815'/0'/0'/0'" {
		t.Errorf("path = %s", a.Path)
	}
	if !strings.HasPrefix(a.Address, "addr1") {
		t.Errorf("address = %s", a.Address)
	}
}

func TestDerive_CosmosCanonical(t *testing.T) {
	a := deriveOK(t, mnemonicKM(chain.ATOM), chain.MustLookup(chain.ATOM), 0, 1)[0]
	if a.Method != MethodCosmos {
		t.Errorf("method = %s, want %s", a.Method, MethodCosmos)
	}
	if a.Path != "m/44'/118'/0'/0/0" {
		t.Errorf("path = %s", a.Path)
	}
	if !strings.HasPrefix(a.Address, "cosmos1") {
		t.Errorf("address = %s", a.Address)
	}
}

func TestDerive_Monero(t *testing.T) {
	desc := chain.MustLookup(chain.XMR)
	km := wallet.NewKeyMaterial(chain.XMR, wallet.SecretSeed, bytes.Repeat([]byte{0x42}, 32))
	a := deriveOK(t, km, desc, 0, 1)[0]
	if len(a.Address) != 95 || a.Address[0] != '4' {
		t.Errorf("address = %s", a.Address)
	}
	if len(a.PublicKey) != 128 {
		t.Errorf("public key hex length = %d, want 128", len(a.PublicKey))
	}

	key, err := PrivateKey(km, desc, 0)
	if err != nil {
		t.Fatalf("PrivateKey() error: %v", err)
	}
	defer key.Zero()
	if len(key.Private) != 32 || len(key.ViewKey) != 32 {
		t.Errorf("spend %d bytes, view %d bytes", len(key.Private), len(key.ViewKey))
	}
	if bytes.Equal(key.Private, key.ViewKey) {
		t.Error("spend and view keys are equal")
	}
}

func TestDerive_CurveMismatch(t *testing.T) {
	_, err := Derive(mnemonicKM(chain.BTC), chain.MustLookup(chain.ETH), 0, 1)
	if !errors.Is(err, ErrCurveMismatch) {
		t.Errorf("chain mismatch: err = %v", err)
	}

	km := wallet.NewKeyMaterial(chain.SOL, wallet.SecretPrivateKey, bytes.Repeat([]byte{1}, 32))
	if _, err := Derive(km, chain.MustLookup(chain.SOL), 0, 1); !errors.Is(err, ErrCurveMismatch) {
		t.Errorf("curve mismatch: err = %v", err)
	}

	xmr := wallet.NewKeyMaterial(chain.XMR, wallet.SecretMnemonic, []byte(testMnemonic))
	if _, err := Derive(xmr, chain.MustLookup(chain.XMR), 0, 1); !errors.Is(err, ErrCurveMismatch) {
		t.Errorf("monero mnemonic: err = %v", err)
	}
}

func TestDerive_InvalidSeedLength(t *testing.T) {
	km := wallet.NewKeyMaterial(chain.SOL, wallet.SecretSeed, make([]byte, 16))
	results, err := Derive(km, chain.MustLookup(chain.SOL), 0, 1)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if !errors.Is(results[0].Err, ErrInvalidSeedLength) {
		t.Errorf("err = %v, want ErrInvalidSeedLength", results[0].Err)
	}
}

func TestPrivateKey_MatchesPublicKey(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	km := mnemonicKM(chain.BTC)
	addrs := deriveOK(t, km, desc, 0, 2)

	for _, a := range addrs {
		key, err := PrivateKey(km, desc, a.Index)
		if err != nil {
			t.Fatalf("PrivateKey(%d) error: %v", a.Index, err)
		}
		signer, err := crypto.PrivateKeyFromBytes(key.Private)
		if err != nil {
			t.Fatal(err)
		}
		if hex.EncodeToString(signer.PublicKey()) != a.PublicKey {
			t.Errorf("index %d: private key does not match public key", a.Index)
		}
		if key.Address != a.Address {
			t.Errorf("index %d: key address %s, want %s", a.Index, key.Address, a.Address)
		}
		key.Zero()
	}
}

func TestVerify_Mismatch(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	km := mnemonicKM(chain.BTC)
	a := deriveOK(t, km, desc, 0, 1)[0]
	tampered := *a
	tampered.Address = "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
	if err := Verify(km, desc, tampered); !errors.Is(err, ErrAddressMismatch) {
		t.Errorf("Verify() = %v, want ErrAddressMismatch", err)
	}
}

func TestDerive_WipedKeyMaterial(t *testing.T) {
	km := mnemonicKM(chain.BTC)
	km.Zero()
	results, err := Derive(km, chain.MustLookup(chain.BTC), 0, 1)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if results[0].Err == nil {
		t.Error("expected error deriving from wiped key material")
	}
}

package address

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/crypto"
)

// Compressed public key of private key 1.
const generatorPub = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	return b
}

func TestUTXOAddress_Bitcoin(t *testing.T) {
	addr, err := UTXOAddress(chain.BTC, mustHex(t, generatorPub))
	if err != nil {
		t.Fatalf("UTXOAddress: %v", err)
	}
	if addr != "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH" {
		t.Errorf("address = %s", addr)
	}
}

func TestUTXOAddress_Prefixes(t *testing.T) {
	pub := mustHex(t, generatorPub)
	tests := []struct {
		id     chain.ID
		prefix string
	}{
		{chain.LTC, "L"},
		{chain.DOGE, "D"},
		{chain.DASH, "X"},
		{chain.ZEC, "t1"},
		{chain.BCH, "bitcoincash:q"},
	}
	for _, tt := range tests {
		addr, err := UTXOAddress(tt.id, pub)
		if err != nil {
			t.Fatalf("%s: %v", tt.id, err)
		}
		if !strings.HasPrefix(addr, tt.prefix) {
			t.Errorf("%s address %s, want prefix %q", tt.id, addr, tt.prefix)
		}
		if err := Validate(chain.MustLookup(tt.id), addr); err != nil {
			t.Errorf("%s: own address rejected: %v", tt.id, err)
		}
	}
}

func TestPayToAddrScript_P2PKH(t *testing.T) {
	pub := mustHex(t, generatorPub)
	pkh := crypto.Hash160(pub)
	for _, id := range []chain.ID{chain.BTC, chain.LTC, chain.DOGE, chain.DASH, chain.ZEC, chain.BCH} {
		addr, err := UTXOAddress(id, pub)
		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		script, err := PayToAddrScript(id, addr)
		if err != nil {
			t.Fatalf("%s: PayToAddrScript: %v", id, err)
		}
		// OP_DUP OP_HASH160 <20> pkh OP_EQUALVERIFY OP_CHECKSIG
		if len(script) != 25 || script[0] != 0x76 || script[1] != 0xa9 || script[24] != 0xac {
			t.Fatalf("%s: unexpected script %x", id, script)
		}
		if !bytes.Equal(script[3:23], pkh) {
			t.Errorf("%s: script hash %x, want %x", id, script[3:23], pkh)
		}
	}
}

func TestUTXOAddress_BadKey(t *testing.T) {
	if _, err := UTXOAddress(chain.BTC, make([]byte, 32)); err == nil {
		t.Error("expected error for 32-byte key")
	}
}

func TestValidate_CrossChainRejected(t *testing.T) {
	btc := "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
	for _, id := range []chain.ID{chain.DOGE, chain.DASH, chain.ZEC, chain.LTC} {
		err := Validate(chain.MustLookup(id), btc)
		if !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("%s accepted a bitcoin address: %v", id, err)
		}
	}
}

func TestEVMAddress(t *testing.T) {
	addr, err := EVMAddress(mustHex(t, generatorPub))
	if err != nil {
		t.Fatalf("EVMAddress: %v", err)
	}
	if addr != "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf" {
		t.Errorf("address = %s", addr)
	}
}

func TestValidate_EVM(t *testing.T) {
	eth := chain.MustLookup(chain.ETH)
	good := []string{
		"0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf",
		"0x7e5f4552091a69125d5dfcb7b8c2659029395bdf",
		chain.USDTERC20Contract,
	}
	for _, a := range good {
		if err := Validate(eth, a); err != nil {
			t.Errorf("Validate(%s): %v", a, err)
		}
	}
	bad := []string{
		"",
		"0x7e5F4552091A69125d5DfCb7b8C2659029395Bdf", // checksum broken
		"7E5F4552091A69125d5DfCb7b8C2659029395Bdf",
		"0x7E5F4552091A69125d5DfCb7b8C2659029395B",
		"1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH",
	}
	for _, a := range bad {
		if err := Validate(eth, a); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidAddress", a, err)
		}
	}
}

func TestTronAddress(t *testing.T) {
	pub := mustHex(t, generatorPub)
	addr, err := TronAddress(pub)
	if err != nil {
		t.Fatalf("TronAddress: %v", err)
	}
	if !strings.HasPrefix(addr, "T") || len(addr) != 34 {
		t.Fatalf("address = %s", addr)
	}
	raw, err := DecodeTron(addr)
	if err != nil {
		t.Fatalf("DecodeTron: %v", err)
	}
	evm, _ := ParseEVM("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
	if !bytes.Equal(raw[1:], evm.Bytes()) {
		t.Errorf("tron body %x, want %x", raw[1:], evm.Bytes())
	}
}

func TestValidate_Tron(t *testing.T) {
	trc := chain.MustLookup(chain.USDTTRC20)
	if err := Validate(trc, chain.USDTTRC20Contract); err != nil {
		t.Errorf("contract address rejected: %v", err)
	}
	for _, a := range []string{"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6u", "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", "T"} {
		if err := Validate(trc, a); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Validate(%q) = %v", a, err)
		}
	}
}

func TestSolanaAddress(t *testing.T) {
	addr, err := SolanaAddress(make([]byte, 32))
	if err != nil {
		t.Fatalf("SolanaAddress: %v", err)
	}
	if addr != "11111111111111111111111111111111" {
		t.Errorf("address = %s", addr)
	}
	sol := chain.MustLookup(chain.SOL)
	if err := Validate(sol, addr); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := Validate(sol, "0OIl"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("bad base58 accepted: %v", err)
	}
	if _, err := SolanaAddress(make([]byte, 31)); err == nil {
		t.Error("expected error for short key")
	}
}

func TestCardanoEnterpriseAddress(t *testing.T) {
	pub := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{7}, 32)).Public().(ed25519.PublicKey)
	addr, err := CardanoEnterpriseAddress(pub)
	if err != nil {
		t.Fatalf("CardanoEnterpriseAddress: %v", err)
	}
	if !strings.HasPrefix(addr, "addr1v") || len(addr) != 58 {
		t.Errorf("address = %s (len %d)", addr, len(addr))
	}
	ada := chain.MustLookup(chain.ADA)
	if err := Validate(ada, addr); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := Validate(ada, strings.Replace(addr, "addr1", "stake1", 1)); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("wrong hrp accepted: %v", err)
	}
}

func TestCosmosAddress(t *testing.T) {
	atom := chain.MustLookup(chain.ATOM)

	secp, err := CosmosAddress(mustHex(t, generatorPub))
	if err != nil {
		t.Fatalf("CosmosAddress(secp): %v", err)
	}
	if !strings.HasPrefix(secp, "cosmos1") || len(secp) != 45 {
		t.Errorf("address = %s", secp)
	}
	if err := Validate(atom, secp); err != nil {
		t.Errorf("Validate: %v", err)
	}

	ed, err := CosmosAddress(make([]byte, 32))
	if err != nil {
		t.Fatalf("CosmosAddress(ed25519): %v", err)
	}
	if ed == secp || len(ed) != 45 {
		t.Errorf("ed25519 address = %s", ed)
	}

	// Flip the final checksum character.
	last := secp[len(secp)-1]
	repl := byte('q')
	if last == 'q' {
		repl = 'p'
	}
	broken := secp[:len(secp)-1] + string(repl)
	if err := Validate(atom, broken); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("bad checksum accepted: %v", err)
	}
}

func TestMoneroEncode_Roundtrip(t *testing.T) {
	for n := 0; n <= 20; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*37 + n)
		}
		enc := MoneroEncode(data)
		dec, err := MoneroDecode(enc)
		if err != nil {
			t.Fatalf("len %d: decode: %v", n, err)
		}
		if !bytes.Equal(dec, data) {
			t.Errorf("len %d: roundtrip %x, want %x", n, dec, data)
		}
	}
}

func TestMoneroEncode_BlockSizes(t *testing.T) {
	if got := MoneroEncode(make([]byte, 8)); got != "11111111111" {
		t.Errorf("zero block = %q", got)
	}
	if got := MoneroEncode(bytes.Repeat([]byte{0xff}, 8)); len(got) != 11 {
		t.Errorf("max block = %q", got)
	}
	if _, err := MoneroDecode("zzzzzzzzzzz"); err == nil {
		t.Error("expected overflow for zzzzzzzzzzz")
	}
}

func TestMoneroAddress(t *testing.T) {
	spend := bytes.Repeat([]byte{0x11}, 32)
	view := bytes.Repeat([]byte{0x22}, 32)
	addr, err := MoneroAddress(spend, view)
	if err != nil {
		t.Fatalf("MoneroAddress: %v", err)
	}
	if len(addr) != 95 || addr[0] != '4' {
		t.Fatalf("address = %s (len %d)", addr, len(addr))
	}
	xmr := chain.MustLookup(chain.XMR)
	if err := Validate(xmr, addr); err != nil {
		t.Errorf("Validate: %v", err)
	}

	raw, _ := MoneroDecode(addr)
	raw[10] ^= 1
	if err := Validate(xmr, MoneroEncode(raw)); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("corrupted address accepted: %v", err)
	}
}

func TestMoneroAddress_ZeroLeadingBlocks(t *testing.T) {
	// Zero bytes at the start of an 8-byte block must survive decoding.
	spend := bytes.Repeat([]byte{0x11}, 32)
	view := bytes.Repeat([]byte{0x22}, 32)
	spend[7], spend[15] = 0, 0
	view[0], view[1] = 0, 0
	addr, err := MoneroAddress(spend, view)
	if err != nil {
		t.Fatalf("MoneroAddress: %v", err)
	}
	raw, err := MoneroDecode(addr)
	if err != nil {
		t.Fatalf("MoneroDecode: %v", err)
	}
	if len(raw) != 69 || !bytes.Equal(raw[1:33], spend) || !bytes.Equal(raw[33:65], view) {
		t.Errorf("decoded %x", raw)
	}
	if MoneroEncode(raw) != addr {
		t.Error("MoneroEncode disagrees with MoneroAddress")
	}
	if err := Validate(chain.MustLookup(chain.XMR), addr); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestFromPublicKey(t *testing.T) {
	pub := mustHex(t, generatorPub)
	addr, err := FromPublicKey(chain.MustLookup(chain.BNB), pub)
	if err != nil {
		t.Fatalf("FromPublicKey: %v", err)
	}
	if addr != "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf" {
		t.Errorf("BNB address = %s", addr)
	}
	if _, err := FromPublicKey(chain.MustLookup(chain.XMR), pub); err == nil {
		t.Error("expected error for monero single-key address")
	}
}

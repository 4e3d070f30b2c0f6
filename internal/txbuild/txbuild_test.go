package txbuild

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/klingvault/internal/address"
	"github.com/Klingon-tech/klingvault/internal/fee"
	"github.com/Klingon-tech/klingvault/internal/network"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/types"
)

const (
	btcFrom = "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
	btcTo   = "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA"
	ethFrom = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	ethTo   = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	solFrom = "So11111111111111111111111111111111111111112"
	solTo   = "11111111111111111111111111111111"
)

func nativeQuote(id chain.ID, total, opPrice int64) *fee.Quote {
	return &fee.Quote{
		Chain:          id,
		Intent:         fee.Native(decimal.NewFromInt(1)),
		TotalMinor:     big.NewInt(total),
		OperationPrice: big.NewInt(opPrice),
	}
}

func utxoFixture(t *testing.T, values ...uint64) []wallet.UTXO {
	t.Helper()
	script, err := address.PayToAddrScript(chain.BTC, btcFrom)
	if err != nil {
		t.Fatalf("PayToAddrScript() error: %v", err)
	}
	out := make([]wallet.UTXO, len(values))
	for i, v := range values {
		var txid types.Hash
		txid[0] = byte(i + 1)
		out[i] = wallet.UTXO{
			Outpoint: types.Outpoint{TxID: txid, Index: uint32(i)},
			Value:    v,
			Script:   script,
			Address:  btcFrom,
		}
	}
	return out
}

func btcRequest(t *testing.T, amount int64, feeTotal int64, values ...uint64) Request {
	return Request{
		From:   wallet.DerivedAddress{Index: 0, Address: btcFrom},
		To:     btcTo,
		Amount: big.NewInt(amount),
		Quote:  nativeQuote(chain.BTC, feeTotal, feeTotal),
		State:  &network.AccountState{Address: btcFrom, UTXOs: utxoFixture(t, values...)},
	}
}

func TestParseAmount(t *testing.T) {
	btc := chain.MustLookup(chain.BTC)
	got, err := ParseAmount(btc, "0.001")
	if err != nil {
		t.Fatalf("ParseAmount() error: %v", err)
	}
	if got.Int64() != 100000 {
		t.Errorf("0.001 BTC = %s sat, want 100000", got)
	}

	usdt := chain.MustLookup(chain.USDTERC20)
	got, err = ParseAmount(usdt, "12.5")
	if err != nil || got.Int64() != 12_500_000 {
		t.Errorf("12.5 USDT = %v (%v), want 12500000", got, err)
	}

	for _, s := range []string{"0", "-1", "abc", "0.000000001", ""} {
		if _, err := ParseAmount(btc, s); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", s, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(chain.MustLookup(chain.BTC), big.NewInt(150000)); got != "0.0015" {
		t.Errorf("FormatAmount = %q, want 0.0015", got)
	}
	if got := FormatAmount(chain.MustLookup(chain.ETH), nil); got != "0" {
		t.Errorf("FormatAmount(nil) = %q", got)
	}
}

func TestBuildUTXO_ExactFunds(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	req := btcRequest(t, 100000, 1000, 101000)

	u, err := Build(desc, req)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(u.Inputs) != 1 || len(u.Outputs) != 1 {
		t.Fatalf("shape = %d in / %d out, want 1/1", len(u.Inputs), len(u.Outputs))
	}
	if u.Fee.Int64() != 1000 {
		t.Errorf("fee = %s, want 1000", u.Fee)
	}
	if u.Outputs[0].Address != btcTo || u.Outputs[0].Amount.Int64() != 100000 {
		t.Errorf("payment = %+v", u.Outputs[0])
	}
}

func TestBuildUTXO_InsufficientFundsBoundary(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	req := btcRequest(t, 100000, 1000, 100999)
	if _, err := Build(desc, req); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Build() error = %v, want ErrInsufficientFunds", err)
	}

	empty := btcRequest(t, 100000, 1000)
	if _, err := Build(desc, empty); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Build() with no UTXOs error = %v, want ErrInsufficientFunds", err)
	}
}

func TestBuildUTXO_Change(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	req := btcRequest(t, 100000, 1000, 200000)

	u, err := Build(desc, req)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(u.Outputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(u.Outputs))
	}
	change := u.Outputs[1]
	if !change.Change || change.Address != btcFrom || change.Amount.Int64() != 99000 {
		t.Errorf("change = %+v, want 99000 to origin", change)
	}
	if u.Fee.Int64() != 1000 {
		t.Errorf("fee = %s, want 1000", u.Fee)
	}
}

func TestBuildUTXO_DustChangeAbsorbed(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	// 546 sat of change is not above the dust threshold.
	req := btcRequest(t, 100000, 1000, 101546)

	u, err := Build(desc, req)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(u.Outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(u.Outputs))
	}
	if u.Fee.Int64() != 1546 {
		t.Errorf("fee = %s, want 1546", u.Fee)
	}
}

func TestBuildUTXO_DustPayment(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	req := btcRequest(t, 545, 1000, 100000)
	if _, err := Build(desc, req); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("Build() error = %v, want ErrInvalidAmount", err)
	}
}

func TestBuildUTXO_PerByteRate(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	req := btcRequest(t, 100000, 0, 60000, 60000)
	req.Quote = &fee.Quote{
		Chain:          chain.BTC,
		Intent:         fee.Units(decimal.NewFromInt(10), chain.UnitSat),
		TotalMinor:     big.NewInt(10),
		OperationPrice: big.NewInt(10),
	}

	u, err := Build(desc, req)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(u.Inputs) != 2 {
		t.Fatalf("inputs = %d, want 2", len(u.Inputs))
	}
	// 10 + 2*148 + 2*34 = 374 bytes at 10 sat/byte.
	if u.Fee.Int64() != 3740 {
		t.Errorf("fee = %s, want 3740", u.Fee)
	}
}

func TestBuildUTXO_IgnoresForeignUTXOs(t *testing.T) {
	desc := chain.MustLookup(chain.BTC)
	req := btcRequest(t, 100000, 1000, 500000)
	req.State.UTXOs[0].Address = btcTo
	if _, err := Build(desc, req); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Build() error = %v, want ErrInsufficientFunds", err)
	}
}

func TestBuild_Rejections(t *testing.T) {
	btc := chain.MustLookup(chain.BTC)

	req := btcRequest(t, 100000, 1000, 200000)
	req.To = ethTo
	if _, err := Build(btc, req); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("foreign recipient: %v, want ErrInvalidAddress", err)
	}

	req = btcRequest(t, 0, 1000, 200000)
	if _, err := Build(btc, req); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: %v, want ErrInvalidAmount", err)
	}

	req = btcRequest(t, 100000, 1000, 200000)
	req.Quote.Chain = chain.LTC
	if _, err := Build(btc, req); !errors.Is(err, ErrQuoteMismatch) {
		t.Errorf("foreign quote: %v, want ErrQuoteMismatch", err)
	}

	req = btcRequest(t, 100000, 1000, 200000)
	req.State = nil
	if _, err := Build(btc, req); !errors.Is(err, ErrMissingState) {
		t.Errorf("nil state: %v, want ErrMissingState", err)
	}

	for _, id := range []chain.ID{chain.XMR, chain.ADA, chain.ATOM} {
		desc := chain.MustLookup(id)
		r := Request{Quote: nativeQuote(id, 1, 1)}
		if _, err := Build(desc, r); !errors.Is(err, ErrUnsupportedChain) {
			t.Errorf("Build(%s) error = %v, want ErrUnsupportedChain", id, err)
		}
	}
}

func TestBuildEVM_Native(t *testing.T) {
	desc := chain.MustLookup(chain.ETH)
	// $2 at 2000 USDT/ETH over 21000 gas.
	q := nativeQuote(chain.ETH, 1_000_000_000_000_000, 47_619_047_619)
	req := Request{
		From:   wallet.DerivedAddress{Address: ethFrom},
		To:     ethTo,
		Amount: big.NewInt(1e17),
		Quote:  q,
		State:  &network.AccountState{Address: ethFrom, Balance: big.NewInt(2e17), Nonce: 9},
	}

	u, err := Build(desc, req)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if u.Nonce != 9 {
		t.Errorf("nonce = %d, want 9", u.Nonce)
	}
	if u.EVM.GasLimit != 21000 || u.EVM.GasPrice.Int64() != 47_619_047_619 {
		t.Errorf("gas = %d @ %s", u.EVM.GasLimit, u.EVM.GasPrice)
	}
	if u.EVM.To != ethTo || u.EVM.Value.Int64() != 1e17 || u.EVM.ChainID != 1 {
		t.Errorf("evm params = %+v", u.EVM)
	}
	want := new(big.Int).Mul(big.NewInt(47_619_047_619), big.NewInt(21000))
	if u.Fee.Cmp(want) != 0 {
		t.Errorf("fee = %s, want %s", u.Fee, want)
	}
	if diff := new(big.Int).Sub(q.TotalMinor, u.Fee); diff.Sign() < 0 || diff.Int64() >= 21000 {
		t.Errorf("fee %s drifts from quote %s", u.Fee, q.TotalMinor)
	}

	req.State.Balance = big.NewInt(1e17)
	if _, err := Build(desc, req); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Build() error = %v, want ErrInsufficientFunds", err)
	}
}

func TestBuildEVM_Token(t *testing.T) {
	desc := chain.MustLookup(chain.USDTERC20)
	req := Request{
		From:   wallet.DerivedAddress{Address: ethFrom},
		To:     ethTo,
		Amount: big.NewInt(5_000_000),
		Quote:  nativeQuote(chain.USDTERC20, 1e15, 1e10),
		State: &network.AccountState{
			Address:      ethFrom,
			Balance:      big.NewInt(1e16),
			TokenBalance: big.NewInt(5_000_000),
		},
	}

	u, err := Build(desc, req)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if u.EVM.To != chain.USDTERC20Contract {
		t.Errorf("to = %s, want contract", u.EVM.To)
	}
	if u.EVM.Value.Sign() != 0 {
		t.Errorf("value = %s, want 0", u.EVM.Value)
	}
	if u.EVM.GasLimit != chain.TokenTransferGas {
		t.Errorf("gas limit = %d", u.EVM.GasLimit)
	}
	if len(u.EVM.Data) != 68 || hex.EncodeToString(u.EVM.Data[:4]) != "a9059cbb" {
		t.Errorf("data = %x", u.EVM.Data)
	}

	req.State.TokenBalance = big.NewInt(4_999_999)
	if _, err := Build(desc, req); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("short token balance: %v", err)
	}
	req.State.TokenBalance = big.NewInt(5_000_000)
	req.State.Balance = big.NewInt(1)
	if _, err := Build(desc, req); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("short gas balance: %v", err)
	}
}

func TestBuildTron_Token(t *testing.T) {
	desc := chain.MustLookup(chain.USDTTRC20)
	from, err := address.TronAddress(mustHex(t, "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"))
	if err != nil {
		t.Fatal(err)
	}
	blockID := mustHex(t, "0000000000001234"+"1122334455667788"+"0000000000000000"+"0000000000000000")
	req := Request{
		From:   wallet.DerivedAddress{Address: from},
		To:     chain.USDTTRC20Contract,
		Amount: big.NewInt(1_000_000),
		Quote:  nativeQuote(chain.USDTTRC20, 15_000_000, 15_000_000),
		State: &network.AccountState{
			Address:      from,
			Balance:      big.NewInt(20_000_000),
			TokenBalance: big.NewInt(1_000_000),
			TronBlock:    &network.TronBlock{Number: 0x1234, ID: blockID, Timestamp: 1_700_000_000_000},
		},
	}

	u, err := Build(desc, req)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	p := u.Tron
	if hex.EncodeToString(p.RefBlockBytes) != "1234" {
		t.Errorf("ref block bytes = %x", p.RefBlockBytes)
	}
	if hex.EncodeToString(p.RefBlockHash) != "1122334455667788" {
		t.Errorf("ref block hash = %x", p.RefBlockHash)
	}
	if p.FeeLimit != 15_000_000 || p.Expiration != p.Timestamp+60_000 {
		t.Errorf("params = %+v", p)
	}
	if hex.EncodeToString(p.Data[:4]) != "a9059cbb" {
		t.Errorf("data = %x", p.Data)
	}

	req.State.Balance = big.NewInt(14_999_999)
	if _, err := Build(desc, req); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("short TRX for fee limit: %v", err)
	}
}

func TestBuildSolana(t *testing.T) {
	desc := chain.MustLookup(chain.SOL)
	req := Request{
		From:   wallet.DerivedAddress{Address: solFrom},
		To:     solTo,
		Amount: big.NewInt(1_000_000),
		Quote:  nativeQuote(chain.SOL, 5000, 5000),
		State: &network.AccountState{
			Address:         solFrom,
			Balance:         big.NewInt(1_005_000),
			RecentBlockhash: "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
		},
	}

	u, err := Build(desc, req)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if u.Fee.Int64() != SolanaSignatureFee {
		t.Errorf("fee = %s", u.Fee)
	}
	if u.Solana.RecentBlockhash != req.State.RecentBlockhash {
		t.Errorf("blockhash = %q", u.Solana.RecentBlockhash)
	}

	req.Quote = nativeQuote(chain.SOL, 4999, 4999)
	if _, err := Build(desc, req); !errors.Is(err, ErrFeeTooLow) {
		t.Errorf("low quote: %v, want ErrFeeTooLow", err)
	}

	req.Quote = nativeQuote(chain.SOL, 5000, 5000)
	req.State.Balance = big.NewInt(1_004_999)
	if _, err := Build(desc, req); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("short balance: %v", err)
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

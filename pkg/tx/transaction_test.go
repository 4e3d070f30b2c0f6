package tx

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/types"
)

func TestInput_JSONHexScript(t *testing.T) {
	in := Input{
		PrevOut: types.Outpoint{TxID: types.Hash{0x01}, Index: 2},
		Value:   5000,
		Script:  []byte{0x76, 0xa9, 0x14},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Contains(data, []byte(`"script":"76a914"`)) {
		t.Errorf("script not hex-encoded: %s", data)
	}

	var got Input
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.PrevOut != in.PrevOut || got.Value != in.Value || !bytes.Equal(got.Script, in.Script) {
		t.Errorf("roundtrip = %+v, want %+v", got, in)
	}
}

func TestInput_UnmarshalBadHex(t *testing.T) {
	var in Input
	if err := json.Unmarshal([]byte(`{"script":"zz"}`), &in); err == nil {
		t.Error("expected error for non-hex script")
	}
}

func TestUnsigned_TotalInput(t *testing.T) {
	u := &Unsigned{Inputs: []Input{{Value: 1000}, {Value: 2000}, {Value: 3000}}}
	got, err := u.TotalInput()
	if err != nil {
		t.Fatalf("TotalInput() error: %v", err)
	}
	if got != 6000 {
		t.Errorf("TotalInput() = %d, want 6000", got)
	}
}

func TestUnsigned_TotalInput_Overflow(t *testing.T) {
	u := &Unsigned{Inputs: []Input{{Value: math.MaxUint64}, {Value: 1}}}
	if _, err := u.TotalInput(); err != ErrInputOverflow {
		t.Errorf("TotalInput() error = %v, want ErrInputOverflow", err)
	}
}

func TestUnsigned_TotalOutputAndPayment(t *testing.T) {
	u := NewBuilder(chain.BTC).
		AddOutput("dest", big.NewInt(700)).
		AddChange("origin", big.NewInt(200)).
		Build()
	if got := u.TotalOutput(); got.Int64() != 900 {
		t.Errorf("TotalOutput() = %s, want 900", got)
	}
	pay, ok := u.Payment()
	if !ok || pay.Address != "dest" || pay.Change {
		t.Errorf("Payment() = %+v, %v", pay, ok)
	}
}

func TestBuilder_CopiesAmounts(t *testing.T) {
	amount := big.NewInt(100)
	fee := big.NewInt(10)
	u := NewBuilder(chain.ETH).AddOutput("a", amount).SetFee(fee).Build()
	amount.SetInt64(1)
	fee.SetInt64(1)
	if u.Outputs[0].Amount.Int64() != 100 || u.Fee.Int64() != 10 {
		t.Error("builder kept references to caller's big.Ints")
	}
}

func TestSigned_FingerprintAndHex(t *testing.T) {
	a := &Signed{Chain: chain.BTC, Raw: []byte{0x01, 0x02}}
	b := &Signed{Chain: chain.BTC, Raw: []byte{0x01, 0x03}}
	if a.RawHex() != "0102" {
		t.Errorf("RawHex() = %s", a.RawHex())
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("different raw bytes share a fingerprint")
	}
	if a.Fingerprint() != (&Signed{Raw: []byte{0x01, 0x02}}).Fingerprint() {
		t.Error("Fingerprint() depends on more than raw bytes")
	}
}

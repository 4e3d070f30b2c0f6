package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/crypto"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	bchchaincfg "github.com/gcash/bchd/chaincfg"
	bchtxscript "github.com/gcash/bchd/txscript"
	"github.com/gcash/bchutil"
	ltcchaincfg "github.com/ltcsuite/ltcd/chaincfg"
	"github.com/ltcsuite/ltcd/ltcutil"
	ltctxscript "github.com/ltcsuite/ltcd/txscript"
)

// DogeMainNetParams defines Dogecoin mainnet address parameters.
var DogeMainNetParams = chaincfg.Params{
	Name:             "doge-mainnet",
	Net:              0xc0c0c0c0,
	PubKeyHashAddrID: 0x1E, // D prefix
	ScriptHashAddrID: 0x16, // 9 or A prefix
	PrivateKeyID:     0x9E,
	HDCoinType:       3,
}

// DashMainNetParams defines Dash mainnet address parameters.
var DashMainNetParams = chaincfg.Params{
	Name:             "dash-mainnet",
	Net:              0xbf0c6bbd,
	PubKeyHashAddrID: 0x4C, // X prefix
	ScriptHashAddrID: 0x10, // 7 prefix
	PrivateKeyID:     0xCC,
	HDCoinType:       5,
}

// Zcash transparent address prefixes.
var (
	ZcashP2PKH = []byte{0x1C, 0xB8} // t1
	ZcashP2SH  = []byte{0x1C, 0xBD} // t3
)

// btcdParams returns the btcd params for chains that share btcd's address
// types.
func btcdParams(id chain.ID) (*chaincfg.Params, bool) {
	switch id {
	case chain.BTC:
		return &chaincfg.MainNetParams, true
	case chain.DOGE:
		return &DogeMainNetParams, true
	case chain.DASH:
		return &DashMainNetParams, true
	}
	return nil, false
}

// UTXOAddress returns the P2PKH (CashAddr for BCH) address of a compressed
// secp256k1 public key.
func UTXOAddress(id chain.ID, compressedPub []byte) (string, error) {
	if len(compressedPub) != 33 {
		return "", fmt.Errorf("compressed public key must be 33 bytes, got %d", len(compressedPub))
	}
	pkh := crypto.Hash160(compressedPub)

	if params, ok := btcdParams(id); ok {
		addr, err := btcutil.NewAddressPubKeyHash(pkh, params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	}

	switch id {
	case chain.LTC:
		addr, err := ltcutil.NewAddressPubKeyHash(pkh, &ltcchaincfg.MainNetParams)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	case chain.BCH:
		addr, err := bchutil.NewAddressPubKeyHash(pkh, &bchchaincfg.MainNetParams)
		if err != nil {
			return "", err
		}
		return bchchaincfg.MainNetParams.CashAddressPrefix + ":" + addr.EncodeAddress(), nil
	case chain.ZEC:
		return zcashEncode(ZcashP2PKH, pkh), nil
	}
	return "", fmt.Errorf("%s is not a UTXO chain", id)
}

// PayToAddrScript validates addr for the chain and returns its locking script.
func PayToAddrScript(id chain.ID, addr string) ([]byte, error) {
	if params, ok := btcdParams(id); ok {
		decoded, err := btcutil.DecodeAddress(addr, params)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if !decoded.IsForNet(params) {
			return nil, fmt.Errorf("%w: %q belongs to another network", ErrInvalidAddress, addr)
		}
		return txscript.PayToAddrScript(decoded)
	}

	switch id {
	case chain.LTC:
		decoded, err := ltcutil.DecodeAddress(addr, &ltcchaincfg.MainNetParams)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if !decoded.IsForNet(&ltcchaincfg.MainNetParams) {
			return nil, fmt.Errorf("%w: %q belongs to another network", ErrInvalidAddress, addr)
		}
		return ltctxscript.PayToAddrScript(decoded)
	case chain.BCH:
		decoded, err := bchutil.DecodeAddress(addr, &bchchaincfg.MainNetParams)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if !decoded.IsForNet(&bchchaincfg.MainNetParams) {
			return nil, fmt.Errorf("%w: %q belongs to another network", ErrInvalidAddress, addr)
		}
		return bchtxscript.PayToAddrScript(decoded)
	case chain.ZEC:
		return zcashScript(addr)
	}
	return nil, fmt.Errorf("%s is not a UTXO chain", id)
}

func zcashEncode(prefix, hash []byte) string {
	payload := make([]byte, 0, len(prefix)+len(hash)+4)
	payload = append(payload, prefix...)
	payload = append(payload, hash...)
	sum := crypto.DoubleSHA256(payload)
	payload = append(payload, sum[:4]...)
	return base58.Encode(payload)
}

func zcashDecode(addr string) (prefix, hash []byte, err error) {
	raw := base58.Decode(addr)
	if len(raw) != 2+20+4 {
		return nil, nil, errors.New("wrong length")
	}
	body, check := raw[:22], raw[22:]
	sum := crypto.DoubleSHA256(body)
	if !bytes.Equal(sum[:4], check) {
		return nil, nil, errors.New("checksum mismatch")
	}
	return body[:2], body[2:], nil
}

func zcashScript(addr string) ([]byte, error) {
	prefix, hash, err := zcashDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	switch {
	case bytes.Equal(prefix, ZcashP2PKH):
		return txscript.NewScriptBuilder().
			AddOp(txscript.OP_DUP).
			AddOp(txscript.OP_HASH160).
			AddData(hash).
			AddOp(txscript.OP_EQUALVERIFY).
			AddOp(txscript.OP_CHECKSIG).
			Script()
	case bytes.Equal(prefix, ZcashP2SH):
		return txscript.NewScriptBuilder().
			AddOp(txscript.OP_HASH160).
			AddData(hash).
			AddOp(txscript.OP_EQUAL).
			Script()
	}
	return nil, fmt.Errorf("%w: unknown zcash prefix %x", ErrInvalidAddress, prefix)
}

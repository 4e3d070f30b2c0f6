package address

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/paxosglobal/moneroutil"
)

// Monero mainnet network bytes.
const (
	MoneroStandard   = 0x12
	MoneroIntegrated = 0x13
	MoneroSubaddress = 0x2A
)

const moneroAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Encoded length of a block of n bytes, n = 0..8.
var moneroBlockSizes = [9]int{0, 2, 3, 5, 6, 7, 9, 10, 11}

// MoneroAddress returns the 95-character standard address for a public
// spend key and public view key.
func MoneroAddress(spendPub, viewPub []byte) (string, error) {
	if len(spendPub) != 32 || len(viewPub) != 32 {
		return "", errors.New("monero public keys must be 32 bytes")
	}
	prefix := []byte{MoneroStandard}
	sum := moneroutil.GetChecksum(prefix, spendPub, viewPub)
	return moneroutil.EncodeMoneroBase58(prefix, spendPub, viewPub, sum[:]), nil
}

// MoneroEncode encodes data with Monero's block base58: 8-byte blocks map to
// 11 characters and the tail block uses moneroBlockSizes. moneroutil pads
// every tail to 7 characters, which only holds for 5-byte tails.
func MoneroEncode(data []byte) string {
	var sb strings.Builder
	for len(data) > 0 {
		n := min(8, len(data))
		var num uint64
		for _, b := range data[:n] {
			num = num<<8 | uint64(b)
		}
		size := moneroBlockSizes[n]
		block := make([]byte, size)
		for i := size - 1; i >= 0; i-- {
			block[i] = moneroAlphabet[num%58]
			num /= 58
		}
		sb.Write(block)
		data = data[n:]
	}
	return sb.String()
}

// MoneroDecode reverses MoneroEncode. It keeps leading zero bytes in a
// block and rejects characters outside the alphabet, which
// moneroutil.DecodeMoneroBase58 does not.
func MoneroDecode(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*8/11+8)
	for len(s) > 0 {
		size := min(11, len(s))
		n := -1
		for i, sz := range moneroBlockSizes {
			if sz == size {
				n = i
				break
			}
		}
		if n <= 0 {
			return nil, fmt.Errorf("invalid block length %d", size)
		}
		var num uint64
		for _, c := range []byte(s[:size]) {
			idx := strings.IndexByte(moneroAlphabet, c)
			if idx < 0 {
				return nil, fmt.Errorf("invalid character %q", c)
			}
			hi, lo := bits.Mul64(num, 58)
			sum, carry := bits.Add64(lo, uint64(idx), 0)
			if hi != 0 || carry != 0 {
				return nil, errors.New("block overflow")
			}
			num = sum
		}
		if n < 8 && num>>(8*uint(n)) != 0 {
			return nil, errors.New("block overflow")
		}
		block := make([]byte, n)
		for i := n - 1; i >= 0; i-- {
			block[i] = byte(num)
			num >>= 8
		}
		out = append(out, block...)
		s = s[size:]
	}
	return out, nil
}

func validateMonero(addr string) error {
	raw, err := MoneroDecode(addr)
	if err != nil {
		return err
	}
	switch {
	case len(raw) == 69 && (raw[0] == MoneroStandard || raw[0] == MoneroSubaddress):
	case len(raw) == 77 && raw[0] == MoneroIntegrated:
	default:
		return fmt.Errorf("unexpected network byte or length (%d bytes)", len(raw))
	}
	body, check := raw[:len(raw)-4], raw[len(raw)-4:]
	sum := moneroutil.GetChecksum(body)
	if !bytes.Equal(sum[:], check) {
		return errors.New("checksum mismatch")
	}
	return nil
}

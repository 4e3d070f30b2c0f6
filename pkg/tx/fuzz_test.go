package tx

import (
	"encoding/json"
	"testing"
)

// FuzzUnsignedUnmarshal tests that arbitrary JSON input does not panic
// when unmarshaled into an Unsigned transaction.
func FuzzUnsignedUnmarshal(f *testing.F) {
	f.Add([]byte(`{"chain":"BTC","from":"1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH","inputs":[{"prevout":{"txid":"0000000000000000000000000000000000000000000000000000000000000001","index":0},"value":1000,"script":"76a914"}],"outputs":[{"address":"x","amount":900}],"fee":100}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"chain":"ETH","from":"a","outputs":[{"address":"b","amount":1}],"fee":1,"evm":{}}`))
	f.Add([]byte(`{"chain":"USDT-TRC20","outputs":[{"amount":-1}],"tron":{"ref_block_bytes":""}}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var u Unsigned
		if err := json.Unmarshal(data, &u); err != nil {
			return
		}
		// If unmarshal succeeded, these must not panic.
		u.Validate()
		u.TotalOutput()
		u.TotalInput()
		u.Payment()
	})
}

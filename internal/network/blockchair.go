package network

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"

	"github.com/Klingon-tech/klingvault/internal/address"
	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/rpcclient"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/types"
)

// DefaultBlockchairURL is the public Blockchair API.
const DefaultBlockchairURL = "https://api.blockchair.com"

// utxoPageLimit bounds the UTXOs fetched per address.
const utxoPageLimit = 100

var blockchairSlugs = map[chain.ID]string{
	chain.BTC:  "bitcoin",
	chain.LTC:  "litecoin",
	chain.DOGE: "dogecoin",
	chain.BCH:  "bitcoin-cash",
	chain.DASH: "dash",
	chain.ZEC:  "zcash",
}

// Blockchair reads UTXO chains through the Blockchair dashboards API.
type Blockchair struct {
	desc   *chain.Descriptor
	slug   string
	key    string
	client *rpcclient.Client
}

type blockchairUTXO struct {
	BlockID         int64  `json:"block_id"`
	TransactionHash string `json:"transaction_hash"`
	Index           uint32 `json:"index"`
	Value           uint64 `json:"value"`
}

type blockchairDashboard struct {
	Address struct {
		Balance json.Number `json:"balance"`
	} `json:"address"`
	UTXO []blockchairUTXO `json:"utxo"`
}

type blockchairDashboardResponse struct {
	Data map[string]blockchairDashboard `json:"data"`
}

type blockchairPushResponse struct {
	Data struct {
		TransactionHash string `json:"transaction_hash"`
	} `json:"data"`
}

type blockchairErrorResponse struct {
	Context struct {
		Error string `json:"error"`
	} `json:"context"`
}

// NewBlockchair creates a client for a UTXO chain.
func NewBlockchair(desc *chain.Descriptor, opts Options) (*Blockchair, error) {
	slug, ok := blockchairSlugs[desc.ID]
	if !ok {
		return nil, fmt.Errorf("blockchair: unsupported chain %s", desc.ID)
	}
	base := opts.URL
	if base == "" {
		base = DefaultBlockchairURL
	}
	var rpcOpts []rpcclient.Option
	if opts.Retries > 0 {
		rpcOpts = append(rpcOpts, rpcclient.WithRetries(opts.Retries))
	}
	return &Blockchair{
		desc:   desc,
		slug:   slug,
		key:    opts.APIKey,
		client: rpcclient.NewWithTimeout(base, opts.timeout(), rpcOpts...),
	}, nil
}

func (b *Blockchair) query() url.Values {
	q := url.Values{}
	if b.key != "" {
		q.Set("key", b.key)
	}
	return q
}

// AccountState fetches the confirmed balance and spendable UTXOs of addr.
func (b *Blockchair) AccountState(ctx context.Context, addr string) (*AccountState, error) {
	script, err := address.PayToAddrScript(b.desc.ID, addr)
	if err != nil {
		return nil, err
	}

	q := b.query()
	q.Set("limit", fmt.Sprintf("%d,0", utxoPageLimit))
	var resp blockchairDashboardResponse
	path := fmt.Sprintf("/%s/dashboards/address/%s", b.slug, url.PathEscape(addr))
	if err := b.client.GetJSON(ctx, path, q, &resp); err != nil {
		return nil, fmt.Errorf("address dashboard: %w", err)
	}

	dash, ok := resp.Data[addr]
	if !ok {
		// Blockchair keys BCH dashboards without the cashaddr prefix.
		for _, d := range resp.Data {
			dash = d
			ok = true
			break
		}
	}
	state := &AccountState{Address: addr, Balance: new(big.Int)}
	if !ok {
		return state, nil
	}
	if dash.Address.Balance != "" {
		if _, ok := state.Balance.SetString(dash.Address.Balance.String(), 10); !ok {
			return nil, fmt.Errorf("address dashboard: malformed balance %q", dash.Address.Balance)
		}
	}

	for _, u := range dash.UTXO {
		txid, err := types.TxIDToHash(u.TransactionHash)
		if err != nil {
			return nil, fmt.Errorf("address dashboard: utxo %s: %w", u.TransactionHash, err)
		}
		state.UTXOs = append(state.UTXOs, wallet.UTXO{
			Outpoint: types.Outpoint{TxID: txid, Index: u.Index},
			Value:    u.Value,
			Script:   script,
			Address:  addr,
		})
	}
	klog.WithChain(klog.Network, string(b.desc.ID)).Debug().
		Str("address", addr).Int("utxos", len(state.UTXOs)).Str("balance", state.Balance.String()).
		Msg("account state")
	return state, nil
}

// Submit pushes a raw transaction. A 400 response is the node's rejection.
func (b *Blockchair) Submit(ctx context.Context, raw []byte) (string, error) {
	path := fmt.Sprintf("/%s/push/transaction", b.slug)
	if q := b.query(); len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp blockchairPushResponse
	err := b.client.PostJSON(ctx, path, map[string]string{"data": hex.EncodeToString(raw)}, &resp)
	if err != nil {
		var he *rpcclient.HTTPError
		if errors.As(err, &he) && he.Status == http.StatusBadRequest {
			reason := he.Body
			var body blockchairErrorResponse
			if json.Unmarshal([]byte(he.Body), &body) == nil && body.Context.Error != "" {
				reason = body.Context.Error
			}
			return "", &RejectedError{Reason: reason}
		}
		return "", err
	}
	if resp.Data.TransactionHash == "" {
		return "", fmt.Errorf("push: response carried no transaction hash")
	}
	return resp.Data.TransactionHash, nil
}

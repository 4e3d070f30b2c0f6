package network

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Klingon-tech/klingvault/internal/address"
	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/rpcclient"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// DefaultTronURL is the public TronGrid endpoint.
const DefaultTronURL = "https://api.trongrid.io"

// Tron talks to a TronGrid-compatible HTTP API.
type Tron struct {
	desc   *chain.Descriptor
	client *rpcclient.Client
}

type tronBlockResponse struct {
	BlockID     string `json:"blockID"`
	BlockHeader struct {
		RawData struct {
			Number    int64 `json:"number"`
			Timestamp int64 `json:"timestamp"`
		} `json:"raw_data"`
	} `json:"block_header"`
}

type tronAccountResponse struct {
	Balance int64 `json:"balance"`
}

type tronConstantResponse struct {
	ConstantResult []string `json:"constant_result"`
	Result         struct {
		Result  bool   `json:"result"`
		Message string `json:"message"`
	} `json:"result"`
}

type tronBroadcastResponse struct {
	Result  bool   `json:"result"`
	TxID    string `json:"txid"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewTron creates a TronGrid client. APIKey is sent as TRON-PRO-API-KEY.
func NewTron(desc *chain.Descriptor, opts Options) *Tron {
	base := opts.URL
	if base == "" {
		base = DefaultTronURL
	}
	var rpcOpts []rpcclient.Option
	if opts.Retries > 0 {
		rpcOpts = append(rpcOpts, rpcclient.WithRetries(opts.Retries))
	}
	if opts.APIKey != "" {
		rpcOpts = append(rpcOpts, rpcclient.WithHeader("TRON-PRO-API-KEY", opts.APIKey))
	}
	return &Tron{desc: desc, client: rpcclient.NewWithTimeout(base, opts.timeout(), rpcOpts...)}
}

// AccountState fetches the TRX balance, the token balance and the current
// block used as the transaction reference.
func (t *Tron) AccountState(ctx context.Context, addr string) (*AccountState, error) {
	if _, err := address.DecodeTron(addr); err != nil {
		return nil, err
	}

	var block tronBlockResponse
	if err := t.client.QueryJSON(ctx, "/wallet/getnowblock", map[string]any{}, &block); err != nil {
		return nil, fmt.Errorf("get now block: %w", err)
	}
	blockID, err := hex.DecodeString(block.BlockID)
	if err != nil || len(blockID) != 32 {
		return nil, fmt.Errorf("get now block: malformed block id %q", block.BlockID)
	}

	var acct tronAccountResponse
	if err := t.client.QueryJSON(ctx, "/wallet/getaccount", map[string]any{"address": addr, "visible": true}, &acct); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	state := &AccountState{
		Address: addr,
		Balance: big.NewInt(acct.Balance),
		TronBlock: &TronBlock{
			Number:    block.BlockHeader.RawData.Number,
			ID:        blockID,
			Timestamp: block.BlockHeader.RawData.Timestamp,
		},
	}
	if t.desc.IsToken() {
		bal, err := t.tokenBalance(ctx, addr)
		if err != nil {
			return nil, err
		}
		state.TokenBalance = bal
	}
	klog.WithChain(klog.Network, string(t.desc.ID)).Debug().
		Str("address", addr).Int64("block", state.TronBlock.Number).Msg("account state")
	return state, nil
}

func (t *Tron) tokenBalance(ctx context.Context, owner string) (*big.Int, error) {
	decoded, err := address.DecodeTron(owner)
	if err != nil {
		return nil, err
	}
	param, err := ParsedERC20.Methods["balanceOf"].Inputs.Pack(common.BytesToAddress(decoded[1:]))
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	req := map[string]any{
		"owner_address":     owner,
		"contract_address":  t.desc.Token.Contract,
		"function_selector": "balanceOf(address)",
		"parameter":         hex.EncodeToString(param),
		"visible":           true,
	}
	var resp tronConstantResponse
	if err := t.client.QueryJSON(ctx, "/wallet/triggerconstantcontract", req, &resp); err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	if len(resp.ConstantResult) == 0 {
		return new(big.Int), nil
	}
	raw, err := hex.DecodeString(resp.ConstantResult[0])
	if err != nil {
		return nil, fmt.Errorf("balanceOf: malformed result: %w", err)
	}
	return new(big.Int).SetBytes(raw), nil
}

// Submit posts a signed protobuf transaction to /wallet/broadcasthex.
func (t *Tron) Submit(ctx context.Context, raw []byte) (string, error) {
	var resp tronBroadcastResponse
	err := t.client.PostJSON(ctx, "/wallet/broadcasthex", map[string]string{
		"transaction": hex.EncodeToString(raw),
	}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Result {
		return "", &RejectedError{Reason: tronReason(resp)}
	}
	return resp.TxID, nil
}

// tronReason decodes the hex-encoded message TronGrid returns on failure.
func tronReason(resp tronBroadcastResponse) string {
	msg := resp.Message
	if b, err := hex.DecodeString(msg); err == nil && len(b) > 0 {
		msg = string(b)
	}
	return strings.TrimSpace(strings.Join([]string{resp.Code, msg}, " "))
}

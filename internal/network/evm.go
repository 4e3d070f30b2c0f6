package network

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// ERC20ABI covers the two calls the wallet makes.
const ERC20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "_to", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	}
]`

// ParsedERC20 is ERC20ABI parsed once.
var ParsedERC20 = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// EVM talks to an Ethereum-compatible JSON-RPC node.
type EVM struct {
	desc   *chain.Descriptor
	client *ethclient.Client
	opts   Options
}

// NewEVM dials the node at opts.URL.
func NewEVM(ctx context.Context, desc *chain.Descriptor, opts Options) (*EVM, error) {
	client, err := ethclient.DialContext(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	return &EVM{desc: desc, client: client, opts: opts}, nil
}

// Close releases the RPC connection.
func (e *EVM) Close() {
	e.client.Close()
}

// AccountState fetches the pending nonce and native balance, plus the token
// balance for token rails. The nonce is always read from the node.
func (e *EVM) AccountState(ctx context.Context, addr string) (*AccountState, error) {
	owner := common.HexToAddress(addr)
	state := &AccountState{Address: addr}

	err := retry(ctx, e.opts.Retries, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.opts.timeout())
		defer cancel()

		nonce, err := e.client.PendingNonceAt(ctx, owner)
		if err != nil {
			return fmt.Errorf("pending nonce: %w", err)
		}
		balance, err := e.client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		state.Nonce = nonce
		state.Balance = balance

		if e.desc.IsToken() {
			tokenBal, err := e.tokenBalance(ctx, owner)
			if err != nil {
				return err
			}
			state.TokenBalance = tokenBal
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	klog.WithChain(klog.Network, string(e.desc.ID)).Debug().
		Str("address", addr).Uint64("nonce", state.Nonce).Str("balance", state.Balance.String()).
		Msg("account state")
	return state, nil
}

func (e *EVM) tokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := ParsedERC20.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	contract := common.HexToAddress(e.desc.Token.Contract)
	out, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	// An empty result means the address holds no contract code.
	if len(out) == 0 {
		return nil, fmt.Errorf("balanceOf: empty result from %s", contract.Hex())
	}
	var balance *big.Int
	if err := ParsedERC20.UnpackIntoInterface(&balance, "balanceOf", out); err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if balance == nil {
		return nil, fmt.Errorf("unpack balanceOf: no value from %s", contract.Hex())
	}
	return balance, nil
}

// Submit sends a signed RLP transaction with eth_sendRawTransaction.
func (e *EVM) Submit(ctx context.Context, raw []byte) (string, error) {
	var signed types.Transaction
	if err := signed.UnmarshalBinary(raw); err != nil {
		return "", &RejectedError{Reason: "malformed transaction: " + err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.timeout())
	defer cancel()
	if err := e.client.SendTransaction(ctx, &signed); err != nil {
		// A JSON-RPC error object is the node's verdict; anything else
		// leaves the outcome unknown.
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return "", &RejectedError{Reason: rpcErr.Error()}
		}
		return "", err
	}
	return signed.Hash().Hex(), nil
}

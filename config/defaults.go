package config

import (
	"time"

	"github.com/Klingon-tech/klingvault/internal/fee"
	"github.com/Klingon-tech/klingvault/internal/network"
	"github.com/Klingon-tech/klingvault/internal/signer"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// Default EVM endpoints. Public RPCs are rate limited; point rpc.* at your
// own provider for regular use.
const (
	DefaultEthereumRPC = "https://ethereum-rpc.publicnode.com"
	DefaultBSCRPC      = "https://bsc-dataseed.bnbchain.org"
	DefaultPolygonRPC  = "https://polygon-rpc.com"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		PriceFeed: PriceFeedConfig{
			URL:     fee.DefaultFeedURL,
			Timeout: 10 * time.Second,
		},
		Network: NetworkConfig{
			Timeout:       15 * time.Second,
			Retries:       0,
			BlockchairURL: network.DefaultBlockchairURL,
			RPC: map[chain.ID]string{
				chain.ETH:       DefaultEthereumRPC,
				chain.USDTERC20: DefaultEthereumRPC,
				chain.BNB:       DefaultBSCRPC,
				chain.POL:       DefaultPolygonRPC,
				chain.SOL:       network.DefaultSolanaURL,
				chain.USDTTRC20: network.DefaultTronURL,
			},
		},
		Zcash: ZcashConfig{
			BranchID: signer.ZcashNU61BranchID,
		},
		Wallet: WalletConfig{
			Encrypt:      false,
			ReceiveCount: 3,
		},
		Log: LogConfig{
			Level: "warn",
			JSON:  false,
		},
	}
}

// Package config handles klingvault-cli configuration.
//
// Values are layered, lowest precedence first: compiled defaults, the
// klingvault.conf file, a .env file, KLINGVAULT_* environment variables and
// finally command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// Config holds runtime configuration.
type Config struct {
	DataDir string `conf:"datadir"`

	PriceFeed PriceFeedConfig
	Network   NetworkConfig
	Zcash     ZcashConfig
	Wallet    WalletConfig
	Log       LogConfig
}

// PriceFeedConfig holds the fee oracle's price source.
type PriceFeedConfig struct {
	URL     string        `conf:"pricefeed.url"`
	Timeout time.Duration `conf:"pricefeed.timeout"`
}

// NetworkConfig holds chain endpoint settings.
type NetworkConfig struct {
	Timeout time.Duration `conf:"network.timeout"`
	// Retries bounds read retries. Broadcasts are never retried.
	Retries int `conf:"network.retries"`

	BlockchairURL string `conf:"blockchair.url"`
	BlockchairKey string `conf:"blockchair.key"`
	TronGridKey   string `conf:"trongrid.key"`

	// RPC maps a chain to its endpoint (rpc.eth, rpc.usdt_trc20, ...).
	RPC map[chain.ID]string
}

// ZcashConfig holds the consensus branch used for ZIP-243 signatures.
type ZcashConfig struct {
	BranchID uint32 `conf:"zcash.branch_id"`
}

// WalletConfig holds wallet settings.
type WalletConfig struct {
	// Encrypt wallet secrets at rest with a password.
	Encrypt bool `conf:"wallet.encrypt"`
	// ReceiveCount is how many addresses receive shows by default.
	ReceiveCount int `conf:"wallet.receive_count"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingvault
//	macOS:   ~/Library/Application Support/Klingvault
//	Windows: %APPDATA%\Klingvault
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingvault"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Klingvault")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Klingvault")
		}
		return filepath.Join(home, "AppData", "Roaming", "Klingvault")
	default:
		return filepath.Join(home, ".klingvault")
	}
}

func homeJoin(rest string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return rest
	}
	return filepath.Join(home, rest)
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingvault.conf")
}

// EnvFile returns the .env overlay path.
func (c *Config) EnvFile() string {
	return filepath.Join(c.DataDir, ".env")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// RPCURL returns the configured endpoint for id, or "".
func (c *Config) RPCURL(id chain.ID) string {
	return c.Network.RPC[id]
}

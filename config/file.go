package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Klingon-tech/klingvault/internal/fee"
	"github.com/Klingon-tech/klingvault/internal/network"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// LoadFile loads configuration values from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies key/value configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "datadir":
		cfg.DataDir = value

	// Price feed
	case "pricefeed.url":
		cfg.PriceFeed.URL = value
	case "pricefeed.timeout":
		d, err := parseDuration(value)
		if err != nil {
			return err
		}
		cfg.PriceFeed.Timeout = d

	// Networks
	case "network.timeout":
		d, err := parseDuration(value)
		if err != nil {
			return err
		}
		cfg.Network.Timeout = d
	case "network.retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Network.Retries = n
	case "blockchair.url":
		cfg.Network.BlockchairURL = value
	case "blockchair.key":
		cfg.Network.BlockchairKey = value
	case "trongrid.key":
		cfg.Network.TronGridKey = value

	// Zcash
	case "zcash.branch_id":
		n, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return err
		}
		cfg.Zcash.BranchID = uint32(n)

	// Wallet
	case "wallet.encrypt":
		cfg.Wallet.Encrypt = parseBool(value)
	case "wallet.receive_count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Wallet.ReceiveCount = n

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		if rest, ok := strings.CutPrefix(key, "rpc."); ok {
			desc, err := chain.Lookup(rest)
			if err != nil {
				return err
			}
			if cfg.Network.RPC == nil {
				cfg.Network.RPC = make(map[chain.ID]string)
			}
			cfg.Network.RPC[desc.ID] = value
		}
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseDuration accepts Go durations ("15s") or plain seconds ("15").
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string) error {
	content := `# klingvault configuration
#
# Precedence: this file < .env in the data dir < KLINGVAULT_* environment
# variables < command-line flags. Environment keys are the upper-case form
# with the first dot as underscore, e.g. KLINGVAULT_RPC_ETH, KLINGVAULT_LOG_LEVEL.

# Data directory (default: ~/.klingvault)
# datadir = ~/.klingvault

# ============================================================================
# Fee oracle
# ============================================================================

pricefeed.url = ` + fee.DefaultFeedURL + `
pricefeed.timeout = 10s

# ============================================================================
# Networks
# ============================================================================

network.timeout = 15s
# Read retries; broadcasts never retry.
network.retries = 0

# UTXO chains (BTC, LTC, DOGE, BCH, DASH, ZEC)
blockchair.url = ` + network.DefaultBlockchairURL + `
# blockchair.key =

rpc.eth = ` + DefaultEthereumRPC + `
rpc.usdt_erc20 = ` + DefaultEthereumRPC + `
rpc.bnb = ` + DefaultBSCRPC + `
rpc.pol = ` + DefaultPolygonRPC + `
rpc.sol = ` + network.DefaultSolanaURL + `
rpc.usdt_trc20 = ` + network.DefaultTronURL + `
# trongrid.key =

# ============================================================================
# Signing
# ============================================================================

# Zcash consensus branch id (NU6.1)
# zcash.branch_id = 0x4DEC4DF0

# ============================================================================
# Wallet
# ============================================================================

# Encrypt secrets at rest (prompts for a password)
wallet.encrypt = false
wallet.receive_count = 3

# ============================================================================
# Logging
# ============================================================================

log.level = warn
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0600)
}

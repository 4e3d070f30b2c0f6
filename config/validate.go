package config

import (
	"fmt"
	"net/url"

	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// MaxRetries caps network.retries.
const MaxRetries = 10

// Validate checks configuration for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must be set")
	}
	if !klog.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not a valid level", cfg.Log.Level)
	}
	if cfg.PriceFeed.Timeout <= 0 {
		return fmt.Errorf("pricefeed.timeout must be positive")
	}
	if cfg.Network.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be positive")
	}
	if cfg.Network.Retries < 0 || cfg.Network.Retries > MaxRetries {
		return fmt.Errorf("network.retries must be in range [0, %d]", MaxRetries)
	}
	if cfg.Wallet.ReceiveCount < 1 || cfg.Wallet.ReceiveCount > 1000 {
		return fmt.Errorf("wallet.receive_count must be in range [1, 1000]")
	}
	if cfg.Zcash.BranchID == 0 {
		return fmt.Errorf("zcash.branch_id must be set")
	}

	if err := validateURL("pricefeed.url", cfg.PriceFeed.URL); err != nil {
		return err
	}
	if err := validateURL("blockchair.url", cfg.Network.BlockchairURL); err != nil {
		return err
	}
	for id, u := range cfg.Network.RPC {
		if _, err := chain.Lookup(string(id)); err != nil {
			return fmt.Errorf("rpc: %w", err)
		}
		if err := validateURL("rpc."+id.Slug(), u); err != nil {
			return err
		}
	}
	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", field)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix marks environment variables that carry configuration.
const EnvPrefix = "KLINGVAULT_"

// LoadEnv returns configuration values from the .env file at path overlaid
// with KLINGVAULT_* process environment variables. A missing file is not an
// error; an empty path reads the process environment only.
func LoadEnv(path string) (map[string]string, error) {
	values := make(map[string]string)

	if path != "" {
		fileEnv, err := godotenv.Read(path)
		switch {
		case err == nil:
			mergeEnv(values, fileEnv)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	procEnv := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			procEnv[k] = v
		}
	}
	mergeEnv(values, procEnv)
	return values, nil
}

func mergeEnv(dst, env map[string]string) {
	for k, v := range env {
		if key, ok := EnvKey(k); ok {
			dst[key] = v
		}
	}
}

// EnvKey maps an environment variable name to its config key:
// KLINGVAULT_RPC_USDT_ERC20 becomes rpc.usdt_erc20. The first underscore
// after the prefix separates the section.
func EnvKey(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, EnvPrefix)
	if !ok || rest == "" {
		return "", false
	}
	rest = strings.ToLower(rest)
	if section, field, found := strings.Cut(rest, "_"); found {
		return section + "." + field, true
	}
	return rest, true
}

package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Flags holds the global command-line flags that precede the command.
type Flags struct {
	Help    bool
	Version bool

	DataDir string
	Config  string

	LogLevel string
	LogFile  string
	LogJSON  bool

	// Args holds the command and its arguments.
	Args []string

	SetLogJSON bool
}

// ParseFlags parses global flags from args. Parsing stops at the first
// non-flag argument, which is the command.
func ParseFlags(args []string, output io.Writer) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("klingvault-cli", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Load resolves configuration with the following precedence:
// 1. Default values
// 2. Config file (<datadir>/klingvault.conf or --config)
// 3. .env in the data directory
// 4. KLINGVAULT_* environment variables
// 5. Command-line flags
//
// The data directory itself may come from a flag or the environment; it is
// resolved first so the file layers can be located.
func Load(f *Flags) (*Config, error) {
	cfg := Default()

	if dir, ok := lookupEnvDataDir(); ok {
		cfg.DataDir = dir
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	cfg.DataDir = expandHome(cfg.DataDir)

	configPath := f.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	envValues, err := LoadEnv(cfg.EnvFile())
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	if err := ApplyFileConfig(cfg, envValues); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	ApplyFlags(cfg, f)
	cfg.DataDir = expandHome(cfg.DataDir)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func lookupEnvDataDir() (string, bool) {
	values, err := LoadEnv("")
	if err != nil {
		return "", false
	}
	dir, ok := values["datadir"]
	return dir, ok && dir != ""
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return homeJoin(rest)
	}
	return path
}

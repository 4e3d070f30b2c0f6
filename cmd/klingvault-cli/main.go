// klingvault-cli manages per-chain wallets: create, view, receive, send.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/klingvault/config"
	"github.com/Klingon-tech/klingvault/internal/engine"
	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/store"
)

const version = "0.1.0"

// app carries the resolved configuration and the engine across a command.
type app struct {
	cfg      *config.Config
	password []byte
	eng      *engine.Engine
}

func main() {
	flags, err := config.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(1)
	}
	if flags.Help {
		usage()
		return
	}
	if flags.Version {
		fmt.Printf("klingvault-cli version %s\n", version)
		return
	}
	if len(flags.Args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fatal("%v", err)
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg}
	defer a.close()

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]

	switch cmd {
	case "create":
		err = cmdCreate(ctx, a, cmdArgs)
	case "view":
		err = cmdView(ctx, a, cmdArgs)
	case "receive":
		err = cmdReceive(ctx, a, cmdArgs)
	case "send":
		err = cmdSend(ctx, a, cmdArgs)
	case "quote":
		err = cmdQuote(ctx, a, cmdArgs)
	case "history":
		err = cmdHistory(ctx, a, cmdArgs)
	case "chains":
		cmdChains()
	case "init-config":
		err = cmdInitConfig(a, cmdArgs)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		a.close()
		fatal("%v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: klingvault-cli [global flags] <command> [flags]

Global flags:
  --datadir <path>    Data directory (default: ~/.klingvault)
  --config, -c <path> Config file (default: <datadir>/klingvault.conf)
  --log-level <lvl>   debug, info, warn (default), error, off
  --log-file <path>   Also write JSON logs to a file
  --log-json          Log JSON to stderr

Commands:
  create <CHAIN> [--import]            Create a wallet (--import prompts for a mnemonic or key)
  view <CHAIN>                         Show addresses and balance
  receive <CHAIN> [--count N]          Show receive addresses, deriving new ones as needed
  send <CHAIN> [--to A] [--amount X] [--fee F] [--from-index I] [--dry-run] [--yes]
                                       Build, sign and broadcast a payment
  quote <CHAIN> --fee F                Convert a fee intent into chain fee parameters
  history <CHAIN>                      List broadcast attempts
  chains                               List supported chains
  init-config [--force]                Write a default klingvault.conf

Fee intents:
  $2 or 2usdt     Fiat amount converted at the spot price
  0.0001          Total fee in the fee asset
  20gwei, 5sat    Price per operation (gas price, sat/byte)

Chains:
  BTC ETH BNB POL LTC DOGE BCH DASH ZEC ADA ATOM SOL XMR USDT-ERC20 USDT-TRC20

Configuration precedence: klingvault.conf < <datadir>/.env < KLINGVAULT_* env < flags.
`)
}

// engine returns the engine, creating it on first use.
func (a *app) engine() (*engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	eng, err := engine.New(a.cfg, engine.Deps{Password: a.password})
	if err != nil {
		return nil, err
	}
	a.eng = eng
	return eng, nil
}

func (a *app) close() {
	if a.eng != nil {
		a.eng.Close()
		a.eng = nil
	}
	for i := range a.password {
		a.password[i] = 0
	}
}

// withBackend runs fn against the chain's backend. If the wallet turns out
// to be encrypted, the password is prompted once and fn runs again; wallets
// are loaded before any network call, so nothing is repeated on the wire.
func (a *app) withBackend(chainID string, fn func(engine.ChainBackend) error) error {
	for attempt := 0; ; attempt++ {
		eng, err := a.engine()
		if err != nil {
			return err
		}
		b, err := eng.Backend(chainID)
		if err != nil {
			return err
		}
		err = fn(b)
		if !errors.Is(err, store.ErrPasswordRequired) || attempt > 0 {
			return err
		}
		pw, perr := readPassword("Wallet password: ")
		if perr != nil {
			return fmt.Errorf("read password: %w", perr)
		}
		a.eng.Close()
		a.eng = nil
		a.password = pw
	}
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

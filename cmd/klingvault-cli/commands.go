package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingvault/config"
	"github.com/Klingon-tech/klingvault/internal/broadcast"
	"github.com/Klingon-tech/klingvault/internal/engine"
	"github.com/Klingon-tech/klingvault/internal/fee"
	"github.com/Klingon-tech/klingvault/internal/txbuild"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// chainArg splits "<CHAIN> [flags]" and parses the flags.
func chainArg(fs *flag.FlagSet, args []string, usageLine string) (string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", fmt.Errorf("usage: klingvault-cli %s", usageLine)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return "", err
	}
	return args[0], nil
}

// ── create ──────────────────────────────────────────────────────────────

func cmdCreate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	doImport := fs.Bool("import", false, "Import an existing mnemonic, key or seed (prompted)")
	id, err := chainArg(fs, args, "create <CHAIN> [--import]")
	if err != nil {
		return err
	}

	var opts engine.CreateOptions
	if *doImport {
		secret, err := readPassword("Mnemonic, private key or seed: ")
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
		opts.Import = string(secret)
		wallet.Zero(secret)
	}

	if a.cfg.Wallet.Encrypt {
		password, err := readPassword("New wallet password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if string(password) != string(confirm) {
			return errors.New("passwords do not match")
		}
		if len(password) == 0 {
			return errors.New("wallet.encrypt is on; empty password refused")
		}
		wallet.Zero(confirm)
		a.password = password
	}

	eng, err := a.engine()
	if err != nil {
		return err
	}
	b, err := eng.Backend(id)
	if err != nil {
		return err
	}
	rec, err := b.Create(ctx, opts)
	if err != nil {
		return err
	}
	defer rec.Key.Zero()

	desc := b.Descriptor()
	fmt.Printf("Wallet created: %s (%s)\n", desc.ID, desc.Name)
	fmt.Printf("Data:     %s\n", eng.Store().ChainDir(desc.ID))
	fmt.Printf("Secret:   %s", rec.Key.Kind)
	if rec.Encrypted {
		fmt.Print(" (encrypted)")
	}
	fmt.Println()

	if !*doImport {
		fmt.Println("\nBackup (write this down, it is shown once):")
		err := rec.Key.Use(func(secret []byte) error {
			if rec.Key.Kind == wallet.SecretMnemonic {
				fmt.Printf("  %s\n\n", secret)
			} else {
				fmt.Printf("  %x\n\n", secret)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	printAddresses(rec.Addresses)
	return nil
}

// ── view ────────────────────────────────────────────────────────────────

func cmdView(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	id, err := chainArg(fs, args, "view <CHAIN>")
	if err != nil {
		return err
	}
	return a.withBackend(id, func(b engine.ChainBackend) error {
		v, err := b.View(ctx)
		if err != nil {
			return err
		}
		desc := v.Chain
		fmt.Printf("Chain:    %s (%s, %s)\n", desc.ID, desc.Name, desc.Family)
		fmt.Printf("Created:  %s\n", v.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("Encrypted: %v\n", v.Encrypted)
		fmt.Printf("Address:  %s\n", v.Addresses[0].Address)
		if v.Balance == nil {
			fmt.Printf("Balance:  unavailable (%v)\n", v.BalanceErr)
		} else {
			printBalance(desc, v.Balance)
		}
		fmt.Println()
		printAddresses(v.Addresses)
		return nil
	})
}

func printBalance(desc *chain.Descriptor, bal *engine.Balance) {
	if desc.IsToken() {
		if bal.Token != nil {
			fmt.Printf("Balance:  %s %s\n", txbuild.FormatAmount(desc, bal.Token), desc.ID)
		}
		fmt.Printf("Fee asset: %s %s\n", engine.FormatNative(desc, bal.Native), desc.FeeAsset)
	} else {
		fmt.Printf("Balance:  %s %s\n", engine.FormatNative(desc, bal.Native), desc.FeeAsset)
	}
	switch desc.Family {
	case chain.FamilyUTXO:
		fmt.Printf("UTXOs:    %d\n", bal.UTXOs)
	case chain.FamilyAccount:
		fmt.Printf("Nonce:    %d\n", bal.Nonce)
	}
}

func printAddresses(addrs []wallet.DerivedAddress) {
	fmt.Printf("  %-5s  %-44s  %s\n", "INDEX", "ADDRESS", "PATH")
	for _, a := range addrs {
		path := a.Path
		if path == "" {
			path = a.Method
		} else if a.Method == "ed25519_fallback" {
			path += " (fallback)"
		}
		fmt.Printf("  %-5d  %-44s  %s\n", a.Index, a.Address, path)
	}
}

// ── receive ─────────────────────────────────────────────────────────────

func cmdReceive(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("receive", flag.ExitOnError)
	count := fs.Int("count", a.cfg.Wallet.ReceiveCount, "Number of addresses to show")
	id, err := chainArg(fs, args, "receive <CHAIN> [--count N]")
	if err != nil {
		return err
	}
	return a.withBackend(id, func(b engine.ChainBackend) error {
		addrs, err := b.Receive(ctx, *count)
		if err != nil {
			return err
		}
		if len(addrs) < *count {
			fmt.Printf("This wallet yields %d address(es).\n", len(addrs))
		}
		printAddresses(addrs)
		return nil
	})
}

// ── quote ───────────────────────────────────────────────────────────────

func cmdQuote(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	feeStr := fs.String("fee", "", "Fee intent ($2, 0.0001, 20gwei)")
	id, err := chainArg(fs, args, "quote <CHAIN> --fee <intent>")
	if err != nil {
		return err
	}
	if *feeStr == "" {
		return errors.New("usage: klingvault-cli quote <CHAIN> --fee <intent>")
	}
	intent, err := fee.ParseIntent(*feeStr)
	if err != nil {
		return err
	}
	eng, err := a.engine()
	if err != nil {
		return err
	}
	b, err := eng.Backend(id)
	if err != nil {
		return err
	}
	q, err := b.QuoteFee(ctx, intent)
	if err != nil {
		return err
	}
	printQuote(b.Descriptor(), q)
	return nil
}

func printQuote(desc *chain.Descriptor, q *fee.Quote) {
	fmt.Printf("Intent:   %s\n", q.Intent)
	if !q.SourcePrice.IsZero() {
		fmt.Printf("Price:    %s USDT/%s\n", q.SourcePrice, q.FeeAsset)
	}
	if q.Intent.Kind == fee.IntentUnits && desc.Family == chain.FamilyUTXO {
		// A UTXO rate is per byte; the total follows the inputs selected.
		fmt.Printf("Rate:     %s %s/byte (total depends on inputs)\n", q.UnitAmount, q.FeeUnit)
		fmt.Printf("Quoted:   %s\n", q.QuotedAt.Format("15:04:05"))
		return
	}
	fmt.Printf("Fee:      %s %s\n", q.NativeFee, q.FeeAsset)
	if desc.BaseOperationCost > 1 {
		fmt.Printf("Gas:      %d @ %s %s\n", desc.BaseOperationCost, q.UnitAmount, q.FeeUnit)
	} else {
		fmt.Printf("Units:    %s %s\n", q.UnitAmount, q.FeeUnit)
	}
	fmt.Printf("Quoted:   %s\n", q.QuotedAt.Format("15:04:05"))
}

// ── send ────────────────────────────────────────────────────────────────

func cmdSend(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "Recipient address")
	amount := fs.String("amount", "", "Amount to send (e.g. 0.001)")
	feeStr := fs.String("fee", "", "Fee intent ($2, 0.0001, 20gwei)")
	fromIndex := fs.Uint("from-index", 0, "Paying address index")
	dryRun := fs.Bool("dry-run", false, "Sign but do not broadcast; print the raw transaction")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	id, err := chainArg(fs, args, "send <CHAIN> [--to A] [--amount X] [--fee F]")
	if err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	if *to == "" {
		if *to, err = prompt(in, "Recipient address: "); err != nil {
			return err
		}
	}
	if *amount == "" {
		if *amount, err = prompt(in, "Amount: "); err != nil {
			return err
		}
	}
	if *feeStr == "" {
		if *feeStr, err = prompt(in, "Fee ($2, 0.0001, 20gwei): "); err != nil {
			return err
		}
	}
	intent, err := fee.ParseIntent(*feeStr)
	if err != nil {
		return err
	}

	return a.withBackend(id, func(b engine.ChainBackend) error {
		desc := b.Descriptor()
		res, err := b.Prepare(ctx, engine.SendRequest{
			To:        *to,
			Amount:    *amount,
			Fee:       intent,
			FromIndex: uint32(*fromIndex),
		})
		if err != nil {
			return err
		}

		if *dryRun {
			fmt.Printf("TxID: %s\n", res.TxID)
			fmt.Printf("Fee:  %s\n", res.Fee)
			fmt.Printf("Raw:  %s\n", res.Signed.RawHex())
			return nil
		}

		if !*yes {
			fmt.Printf("Send %s %s to %s\n", res.Amount, desc.ID, res.To)
			fmt.Printf("From: %s\n", res.From)
			fmt.Printf("Fee:  %s\n", res.Fee)
			if !res.Quote.SourcePrice.IsZero() {
				fmt.Printf("Price: %s USDT/%s\n", res.Quote.SourcePrice, res.Quote.FeeAsset)
			}
			ok, err := confirm(in, "Broadcast? [y/N]: ")
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("aborted")
			}
		}

		// The transaction confirmed above is the one submitted; nothing is
		// re-quoted or re-signed.
		err = b.Submit(ctx, res)
		switch {
		case err == nil:
		case errors.Is(err, broadcast.ErrAmbiguous):
			fmt.Fprintf(os.Stderr, "Warning: the network did not answer. The transaction may still confirm.\n")
			fmt.Fprintf(os.Stderr, "Do not resend; check txid %s on an explorer.\n", res.TxID)
			return err
		default:
			return err
		}
		fmt.Printf("Submitted: %s\n", res.TxID)
		return nil
	})
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", fmt.Errorf("%s is required", strings.TrimSuffix(strings.TrimSpace(label), ":"))
	}
	return line, nil
}

func confirm(in *bufio.Reader, label string) (bool, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// ── history ─────────────────────────────────────────────────────────────

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	id, err := chainArg(fs, args, "history <CHAIN>")
	if err != nil {
		return err
	}
	eng, err := a.engine()
	if err != nil {
		return err
	}
	b, err := eng.Backend(id)
	if err != nil {
		return err
	}
	entries, err := b.History(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No transactions.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-9s  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Outcome, e.TxID)
		fmt.Printf("    to %s  amount %s  fee %s\n", e.To, e.Amount, e.Fee)
		if e.Reason != "" {
			fmt.Printf("    reason: %s\n", e.Reason)
		}
	}
	return nil
}

// ── chains ──────────────────────────────────────────────────────────────

func cmdChains() {
	fmt.Printf("%-11s  %-20s  %-15s  %-8s  %-4s  %s\n", "CHAIN", "NAME", "FAMILY", "FEE UNIT", "DEC", "SEND")
	for _, d := range chain.All() {
		send := "yes"
		if !d.CanSend {
			send = "receive-only"
		}
		fmt.Printf("%-11s  %-20s  %-15s  %-8s  %-4d  %s\n", d.ID, d.Name, d.Family, d.FeeUnit, d.Decimals, send)
	}
}

// ── init-config ─────────────────────────────────────────────────────────

func cmdInitConfig(a *app, args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := a.cfg.ConfigFile()
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(a.cfg.DataDir, 0700); err != nil {
		return err
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// derive_address.go prints the addresses derived from a secret file.
// Usage: go run scripts/derive_address.go <CHAIN> <secretfile> [count]
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Klingon-tech/klingvault/internal/derive"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: derive_address <CHAIN> <secretfile> [count]")
		os.Exit(1)
	}
	desc, err := chain.Lookup(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	count := 1
	if len(os.Args) > 3 {
		count, err = strconv.Atoi(os.Args[3])
		if err != nil || count < 1 {
			fmt.Fprintln(os.Stderr, "count must be a positive integer")
			os.Exit(1)
		}
	}
	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	km, err := wallet.ImportKeyMaterial(desc, strings.TrimSpace(string(data)))
	wallet.Zero(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer km.Zero()

	results, err := derive.Derive(km, desc, 0, uint32(count))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("index=%d error=%v\n", r.Index, r.Err)
			continue
		}
		fmt.Printf("index=%d address=%s pubkey=%s method=%s path=%s\n",
			r.Index, r.Address.Address, r.Address.PublicKey, r.Address.Method, r.Address.Path)
	}
}

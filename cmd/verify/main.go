// Command verify recovers the signer of a signed voucher and optionally
// checks it against the expected authority.
//
// Usage examples:
//
//	go run ./cmd/issue/ --type item --contract 0x... --in v.json > signed.json
//	go run ./cmd/verify/ --type item --contract 0x... --in signed.json --expect 0x...
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

func recoverAs[P voucher.Payload](d voucher.Domain, raw []byte) (common.Address, string, error) {
	var s voucher.Signed[P]
	if err := json.Unmarshal(raw, &s); err != nil {
		return common.Address{}, "", fmt.Errorf("decode signed %T: %w", s.Data, err)
	}
	signer, err := voucher.Recover(d, s.Data, s.Signature)
	return signer, s.Data.NonceValue(), err
}

// recoverSigner returns the signer and nonce of a signed voucher of kind.
func recoverSigner(kind string, d voucher.Domain, raw []byte) (common.Address, string, error) {
	switch kind {
	case "item":
		return recoverAs[voucher.ItemVoucher](d, raw)
	case "starter-box":
		return recoverAs[voucher.StarterBox](d, raw)
	case "withdraw-token":
		return recoverAs[voucher.WithdrawToken](d, raw)
	case "deposit-item":
		return recoverAs[voucher.DepositItem](d, raw)
	case "withdraw-item":
		return recoverAs[voucher.WithdrawItem](d, raw)
	case "order":
		return recoverAs[voucher.OrderItem](d, raw)
	default:
		return common.Address{}, "", fmt.Errorf("unknown voucher type %q", kind)
	}
}

// domainName picks the domain a voucher type is signed under.
func domainName(kind string) string {
	if kind == "order" {
		return voucher.MarketDomainName
	}
	return voucher.ItemDomainName
}

func main() {
	kind := flag.String("type", "", "voucher type: item, starter-box, withdraw-token, deposit-item, withdraw-item, order (required)")
	contract := flag.String("contract", "", "verifying contract address (required)")
	chainID := flag.Int64("chain-id", 31337, "chain ID")
	in := flag.String("in", "-", "signed voucher JSON file, - for stdin")
	expect := flag.String("expect", "", "expected signer address; exit 2 on mismatch")
	flag.Parse()

	if *kind == "" || !common.IsHexAddress(*contract) {
		fmt.Fprintln(os.Stderr, "error: --type and --contract are required")
		os.Exit(1)
	}

	var (
		raw []byte
		err error
	)
	if *in == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*in)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: read voucher: %v\n", err)
		os.Exit(1)
	}

	d := voucher.Domain{
		Name:              domainName(*kind),
		Version:           voucher.DomainVersion,
		ChainID:           big.NewInt(*chainID),
		VerifyingContract: common.HexToAddress(*contract),
	}
	signer, nonce, err := recoverSigner(*kind, d, raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("signer: %s\n", signer.Hex())
	fmt.Printf("nonce:  %s\n", nonce)

	if *expect != "" {
		if !common.IsHexAddress(*expect) || common.HexToAddress(*expect) != signer {
			fmt.Println("✗ signer does not match")
			os.Exit(2)
		}
		fmt.Println("✓ signer matches")
	}
}

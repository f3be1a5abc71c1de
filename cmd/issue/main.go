// Command issue signs an authority voucher and prints it as JSON.
//
// Usage examples:
//
//	# Item voucher for the registry, payload from a file
//	go run ./cmd/issue/ --type item --contract 0x... --in voucher.json
//
//	# Withdrawal voucher straight onto the relayer queue
//	echo '{"walletAddress":"0x...","isNativeToken":true,"amount":300}' | \
//	  go run ./cmd/issue/ --type withdraw-token --contract 0x... --enqueue
//
// The key comes from --key, then AUTHORITY_SIGNING_KEY, then MOCK_AUTHORITY_KEY.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/0gfoundation/0g-game-economy/internal/authority"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

// voucherTypes lists accepted --type values and the domain name each signs under.
var voucherTypes = map[string]string{
	"item":           voucher.ItemDomainName,
	"starter-box":    voucher.ItemDomainName,
	"withdraw-token": voucher.ItemDomainName,
	"deposit-item":   voucher.ItemDomainName,
	"withdraw-item":  voucher.ItemDomainName,
	"order":          voucher.MarketDomainName,
}

func decode[P voucher.Payload](raw []byte) (P, error) {
	var p P
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode %T: %w", p, err)
	}
	return p, nil
}

// issue signs raw as a voucher of kind for d and returns the signed JSON.
func issue(iss *authority.Issuer, kind string, d voucher.Domain, raw []byte) (any, error) {
	switch kind {
	case "item":
		p, err := decode[voucher.ItemVoucher](raw)
		if err != nil {
			return nil, err
		}
		return iss.ItemVoucher(d, p)
	case "starter-box":
		p, err := decode[voucher.StarterBox](raw)
		if err != nil {
			return nil, err
		}
		return iss.StarterBox(d, p)
	case "withdraw-token":
		p, err := decode[voucher.WithdrawToken](raw)
		if err != nil {
			return nil, err
		}
		return iss.WithdrawToken(d, p)
	case "deposit-item":
		p, err := decode[voucher.DepositItem](raw)
		if err != nil {
			return nil, err
		}
		return iss.DepositItem(d, p)
	case "withdraw-item":
		p, err := decode[voucher.WithdrawItem](raw)
		if err != nil {
			return nil, err
		}
		return iss.WithdrawItem(d, p)
	case "order":
		p, err := decode[voucher.OrderItem](raw)
		if err != nil {
			return nil, err
		}
		return iss.OrderItem(d, p)
	default:
		return nil, fmt.Errorf("unknown voucher type %q", kind)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	kind := flag.String("type", "", "voucher type: item, starter-box, withdraw-token, deposit-item, withdraw-item, order (required)")
	contract := flag.String("contract", "", "verifying contract address (required)")
	chainID := flag.Int64("chain-id", 31337, "chain ID")
	in := flag.String("in", "-", "payload JSON file, - for stdin")
	keyHex := flag.String("key", os.Getenv("AUTHORITY_SIGNING_KEY"), "authority signing key (hex)")
	enqueue := flag.Bool("enqueue", false, "push a withdraw-token voucher onto the relayer queue instead of printing")
	redisAddr := flag.String("redis", "localhost:6379", "Redis address for --enqueue")
	flag.Parse()

	name, ok := voucherTypes[*kind]
	if !ok {
		fail("--type must be one of item, starter-box, withdraw-token, deposit-item, withdraw-item, order")
	}
	if !common.IsHexAddress(*contract) {
		fail("--contract must be a hex address")
	}
	if *enqueue && *kind != "withdraw-token" {
		fail("--enqueue only applies to withdraw-token")
	}

	key, err := authority.LoadKey(*keyHex)
	if err != nil {
		fail("%v", err)
	}

	var raw []byte
	if *in == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*in)
	}
	if err != nil {
		fail("read payload: %v", err)
	}

	d := voucher.Domain{
		Name:              name,
		Version:           voucher.DomainVersion,
		ChainID:           big.NewInt(*chainID),
		VerifyingContract: common.HexToAddress(*contract),
	}

	var out any
	if *enqueue {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer rdb.Close()
		p, err := decode[voucher.WithdrawToken](raw)
		if err != nil {
			fail("%v", err)
		}
		out, err = authority.NewIssuer(key, rdb).EnqueueWithdrawal(context.Background(), d, p)
		if err != nil {
			fail("enqueue: %v", err)
		}
		fmt.Fprintf(os.Stderr, "queued on %s\n", voucher.WithdrawQueueKey(d.VerifyingContract))
	} else {
		out, err = issue(authority.NewIssuer(key, nil), *kind, d, raw)
		if err != nil {
			fail("%v", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fail("encode: %v", err)
	}
}

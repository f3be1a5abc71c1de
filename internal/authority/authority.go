// Package authority is the off-chain voucher issuer. It holds the trusted
// signing key, stamps every voucher with a fresh uuid nonce and hands
// withdrawal vouchers to the relayer through Redis.
package authority

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

// MockKeyEnv is read when no key is configured (development / CI).
const MockKeyEnv = "MOCK_AUTHORITY_KEY"

// LoadKey parses the configured hex key, falling back to MOCK_AUTHORITY_KEY.
func LoadKey(configured string) (*ecdsa.PrivateKey, error) {
	raw := configured
	if raw == "" {
		raw = os.Getenv(MockKeyEnv)
	}
	if raw == "" {
		return nil, fmt.Errorf("authority: no signing key configured and %s is empty", MockKeyEnv)
	}
	keyHex := strings.TrimPrefix(raw, "0x")
	if len(keyHex) != 64 {
		return nil, fmt.Errorf("authority: signing key must be a 32-byte hex string (got %d chars)", len(keyHex))
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("authority: parse signing key: %w", err)
	}
	return key, nil
}

// Issuer signs vouchers with the authority key. rdb may be nil when the
// issuer never enqueues.
type Issuer struct {
	key *ecdsa.PrivateKey
	rdb *redis.Client
}

func NewIssuer(key *ecdsa.PrivateKey, rdb *redis.Client) *Issuer {
	return &Issuer{key: key, rdb: rdb}
}

// Address is the signer address ledgers must trust.
func (i *Issuer) Address() common.Address { return crypto.PubkeyToAddress(i.key.PublicKey) }

// NewNonce returns a fresh uuid-v4 nonce.
func NewNonce() string { return uuid.NewString() }

func nonce(n string) string {
	if n == "" {
		return NewNonce()
	}
	return n
}

// Each issue method fills an empty nonce and signs for d.

func (i *Issuer) ItemVoucher(d voucher.Domain, v voucher.ItemVoucher) (voucher.Signed[voucher.ItemVoucher], error) {
	v.Nonce = nonce(v.Nonce)
	return voucher.New(d, v, i.key)
}

func (i *Issuer) StarterBox(d voucher.Domain, v voucher.StarterBox) (voucher.Signed[voucher.StarterBox], error) {
	v.Nonce = nonce(v.Nonce)
	return voucher.New(d, v, i.key)
}

func (i *Issuer) WithdrawToken(d voucher.Domain, v voucher.WithdrawToken) (voucher.Signed[voucher.WithdrawToken], error) {
	v.Nonce = nonce(v.Nonce)
	return voucher.New(d, v, i.key)
}

func (i *Issuer) DepositItem(d voucher.Domain, v voucher.DepositItem) (voucher.Signed[voucher.DepositItem], error) {
	v.Nonce = nonce(v.Nonce)
	return voucher.New(d, v, i.key)
}

func (i *Issuer) WithdrawItem(d voucher.Domain, v voucher.WithdrawItem) (voucher.Signed[voucher.WithdrawItem], error) {
	v.Nonce = nonce(v.Nonce)
	return voucher.New(d, v, i.key)
}

func (i *Issuer) OrderItem(d voucher.Domain, v voucher.OrderItem) (voucher.Signed[voucher.OrderItem], error) {
	v.Nonce = nonce(v.Nonce)
	return voucher.New(d, v, i.key)
}

// EnqueueWithdrawal signs a withdrawal for the vault described by d and pushes
// it onto that vault's relay queue.
func (i *Issuer) EnqueueWithdrawal(ctx context.Context, d voucher.Domain, v voucher.WithdrawToken) (voucher.Signed[voucher.WithdrawToken], error) {
	if i.rdb == nil {
		return voucher.Signed[voucher.WithdrawToken]{}, fmt.Errorf("authority: no redis client for enqueue")
	}
	signed, err := i.WithdrawToken(d, v)
	if err != nil {
		return signed, fmt.Errorf("sign voucher: %w", err)
	}
	raw, err := json.Marshal(signed)
	if err != nil {
		return signed, fmt.Errorf("marshal voucher: %w", err)
	}
	if err := i.rdb.RPush(ctx, voucher.WithdrawQueueKey(d.VerifyingContract), string(raw)).Err(); err != nil {
		return signed, fmt.Errorf("enqueue voucher: %w", err)
	}
	return signed, nil
}

package market

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/item"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

// ── helpers ───────────────────────────────────────────────────────────────────

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000E1")
	seller    = common.HexToAddress("0x00000000000000000000000000000000000000E2")
	buyer     = common.HexToAddress("0x00000000000000000000000000000000000000E3")
	collector = common.HexToAddress("0x00000000000000000000000000000000000000E4")
)

type fixture struct {
	t   *testing.T
	ctx context.Context
	h   *chain.Host
	key *ecdsa.PrivateKey
	m   *Market
	reg *item.Registry
}

func newFixture(t *testing.T, cut uint64) *fixture {
	t.Helper()
	ctx := context.Background()
	key, _ := crypto.GenerateKey()
	signer := crypto.PubkeyToAddress(key.PublicKey)

	h := chain.NewHost(big.NewInt(31337), zap.NewNop())
	h.Fund(buyer, big.NewInt(10_000))

	reg, err := item.Deploy(ctx, h, owner, item.Config{Signer: signer})
	if err != nil {
		t.Fatal(err)
	}
	m, err := Deploy(ctx, h, owner, Config{Signer: signer, FeesCollector: collector, CutPerMillion: cut})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{t: t, ctx: ctx, h: h, key: key, m: m, reg: reg}
}

func (f *fixture) on(contract, from common.Address, value int64, fn func(tx *chain.Tx) error) error {
	return f.h.Execute(f.ctx, chain.Msg{From: from, To: contract, Value: big.NewInt(value)}, fn)
}

// mintApproved redeems an item for seller and approves the marketplace on it.
func (f *fixture) mintApproved() uint64 {
	f.t.Helper()
	iv := voucher.ItemVoucher{ID: "123", ItemType: item.TypeBox, Price: big.NewInt(0), Nonce: uuid.NewString()}
	sig, _ := voucher.Sign(f.reg.Domain(), iv, f.key)
	var id uint64
	err := f.on(f.reg.Address(), seller, 0, func(tx *chain.Tx) error {
		var err error
		if id, err = f.reg.Redeem(tx, iv, sig); err != nil {
			return err
		}
		return f.reg.Approve(tx, f.m.Address(), id)
	})
	if err != nil {
		f.t.Fatal(err)
	}
	return id
}

func (f *fixture) order(listingID string, tokenID uint64, price int64) voucher.OrderItem {
	return voucher.OrderItem{
		WalletAddress: seller,
		ID:            listingID,
		ItemType:      item.TypeBox,
		TokenID:       new(big.Int).SetUint64(tokenID),
		ItemAddress:   f.reg.Address(),
		Price:         big.NewInt(price),
		Nonce:         uuid.NewString(),
	}
}

func (f *fixture) offer(from common.Address, o voucher.OrderItem) error {
	sig, err := voucher.Sign(f.m.Domain(), o, f.key)
	if err != nil {
		f.t.Fatal(err)
	}
	return f.on(f.m.Address(), from, 0, func(tx *chain.Tx) error { _, err := f.m.Offer(tx, o, sig); return err })
}

func (f *fixture) buy(from common.Address, id string, value int64) (Sale, error) {
	var sale Sale
	err := f.on(f.m.Address(), from, value, func(tx *chain.Tx) error {
		var err error
		sale, err = f.m.Buy(tx, id)
		return err
	})
	return sale, err
}

// ── Scenario ──────────────────────────────────────────────────────────────────

// TestBuy_FeeSplit: price 100 at 50,000 ppm pays 5 to the collector and 95 to
// the seller; a second buy fails ListingInactive.
func TestBuy_FeeSplit(t *testing.T) {
	f := newFixture(t, 50_000)
	tokenID := f.mintApproved()

	if err := f.offer(seller, f.order("123", tokenID, 100)); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	sale, err := f.buy(buyer, "123", 100)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if sale.Fee.Cmp(big.NewInt(5)) != 0 || sale.Proceeds.Cmp(big.NewInt(95)) != 0 {
		t.Fatalf("fee %s proceeds %s", sale.Fee, sale.Proceeds)
	}
	if f.h.NativeBalance(collector).Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("collector = %s", f.h.NativeBalance(collector))
	}
	if f.h.NativeBalance(seller).Cmp(big.NewInt(95)) != 0 {
		t.Fatalf("seller = %s", f.h.NativeBalance(seller))
	}
	if f.h.NativeBalance(buyer).Cmp(big.NewInt(9_900)) != 0 {
		t.Fatalf("buyer = %s", f.h.NativeBalance(buyer))
	}
	if got, _ := f.reg.OwnerOf(tokenID); got != buyer {
		t.Fatalf("item owner = %s", got.Hex())
	}
	if f.h.NativeBalance(f.m.Address()).Sign() != 0 {
		t.Fatal("marketplace must not retain value")
	}

	if _, err := f.buy(buyer, "123", 100); !errors.Is(err, chain.ErrListingInactive) {
		t.Fatalf("second buy: expected ListingInactive, got %v", err)
	}
	if f.h.NativeBalance(buyer).Cmp(big.NewInt(9_900)) != 0 {
		t.Fatal("failed buy must refund")
	}
}

func TestFee_SplitIsExact(t *testing.T) {
	cuts := []uint64{0, 1, 333, 50_000, 123_457, 999_999, 1_000_000}
	prices := []int64{1, 3, 7, 99, 100, 101, 1_000_003, 1 << 40}
	for _, cut := range cuts {
		for _, p := range prices {
			price := big.NewInt(p)
			fee := Fee(price, cut)
			// fee == ceil(price*cut/1e6)
			scaled := new(big.Int).Mul(fee, big.NewInt(PerMillion))
			exact := new(big.Int).Mul(price, new(big.Int).SetUint64(cut))
			if scaled.Cmp(exact) < 0 {
				t.Fatalf("cut %d price %d: fee %s rounds down", cut, p, fee)
			}
			if new(big.Int).Sub(scaled, exact).Cmp(big.NewInt(PerMillion)) >= 0 {
				t.Fatalf("cut %d price %d: fee %s is more than one unit over", cut, p, fee)
			}
			if proceeds := new(big.Int).Sub(price, fee); proceeds.Sign() < 0 {
				t.Fatalf("cut %d price %d: negative proceeds", cut, p)
			}
		}
	}
}

// ── Offer ─────────────────────────────────────────────────────────────────────

func TestOffer_Validation(t *testing.T) {
	f := newFixture(t, 0)
	tokenID := f.mintApproved()

	if err := f.offer(buyer, f.order("a", tokenID, 100)); !errors.Is(err, chain.ErrUnauthorized) {
		t.Fatalf("caller != wallet: expected Unauthorized, got %v", err)
	}
	if err := f.offer(seller, f.order("a", tokenID, 0)); !errors.Is(err, chain.ErrZeroAmount) {
		t.Fatalf("zero price: expected ZeroAmount, got %v", err)
	}
	if err := f.offer(seller, f.order("a", 99, 100)); !errors.Is(err, chain.ErrTokenNotFound) {
		t.Fatalf("missing token: expected TokenNotFound, got %v", err)
	}

	// Revoke approval.
	if err := f.on(f.reg.Address(), seller, 0, func(tx *chain.Tx) error { return f.reg.Approve(tx, common.Address{}, tokenID) }); err != nil {
		t.Fatal(err)
	}
	if err := f.offer(seller, f.order("a", tokenID, 100)); !errors.Is(err, chain.ErrUnauthorized) {
		t.Fatalf("unapproved: expected Unauthorized, got %v", err)
	}
	if err := f.on(f.reg.Address(), seller, 0, func(tx *chain.Tx) error { return f.reg.SetApprovalForAll(tx, f.m.Address(), true) }); err != nil {
		t.Fatal(err)
	}
	if err := f.offer(seller, f.order("a", tokenID, 100)); err != nil {
		t.Fatalf("operator-approved offer: %v", err)
	}
	if err := f.offer(seller, f.order("a", tokenID, 120)); !errors.Is(err, chain.ErrDuplicateListing) {
		t.Fatalf("expected DuplicateListing, got %v", err)
	}
}

func TestOffer_Replay(t *testing.T) {
	f := newFixture(t, 0)
	tokenID := f.mintApproved()
	o := f.order("r", tokenID, 10)
	sig, _ := voucher.Sign(f.m.Domain(), o, f.key)

	offer := func() error {
		return f.on(f.m.Address(), seller, 0, func(tx *chain.Tx) error { _, err := f.m.Offer(tx, o, sig); return err })
	}
	if err := offer(); err != nil {
		t.Fatal(err)
	}
	if err := f.on(f.m.Address(), seller, 0, func(tx *chain.Tx) error { return f.m.Withdraw(tx, "r") }); err != nil {
		t.Fatal(err)
	}
	if err := offer(); !errors.Is(err, chain.ErrNonceReused) {
		t.Fatalf("expected NonceReused, got %v", err)
	}
}

// ── Buy / Withdraw ────────────────────────────────────────────────────────────

func TestBuy_Failures(t *testing.T) {
	f := newFixture(t, 0)
	tokenID := f.mintApproved()

	if _, err := f.buy(buyer, "nope", 1); !errors.Is(err, chain.ErrListingNotFound) {
		t.Fatalf("expected ListingNotFound, got %v", err)
	}
	if err := f.offer(seller, f.order("x", tokenID, 100)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.buy(buyer, "x", 99); !errors.Is(err, chain.ErrWrongPayment) {
		t.Fatalf("underpay: expected WrongPayment, got %v", err)
	}
	if _, err := f.buy(buyer, "x", 101); !errors.Is(err, chain.ErrWrongPayment) {
		t.Fatalf("overpay: expected WrongPayment, got %v", err)
	}

	// The seller moves the item away: the buy reverts and the listing stays active.
	if err := f.on(f.reg.Address(), seller, 0, func(tx *chain.Tx) error {
		return f.reg.TransferFrom(tx, seller, collector, tokenID)
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.buy(buyer, "x", 100); !errors.Is(err, chain.ErrUnauthorized) {
		t.Fatalf("stale listing: expected Unauthorized, got %v", err)
	}
	l, _ := f.m.Listing("x")
	if !l.Active {
		t.Fatal("reverted buy must leave the listing active")
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t, 0)
	tokenID := f.mintApproved()

	withdraw := func(from common.Address, id string) error {
		return f.on(f.m.Address(), from, 0, func(tx *chain.Tx) error { return f.m.Withdraw(tx, id) })
	}
	if err := withdraw(seller, "w"); !errors.Is(err, chain.ErrListingNotFound) {
		t.Fatalf("expected ListingNotFound, got %v", err)
	}
	if err := f.offer(seller, f.order("w", tokenID, 10)); err != nil {
		t.Fatal(err)
	}
	if err := withdraw(buyer, "w"); !errors.Is(err, chain.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if err := withdraw(seller, "w"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if err := withdraw(seller, "w"); !errors.Is(err, chain.ErrListingInactive) {
		t.Fatalf("expected ListingInactive, got %v", err)
	}
	if _, err := f.buy(buyer, "w", 10); !errors.Is(err, chain.ErrListingInactive) {
		t.Fatalf("buy after withdraw: expected ListingInactive, got %v", err)
	}
	// A withdrawn id may be listed again.
	if err := f.offer(seller, f.order("w", tokenID, 12)); err != nil {
		t.Fatalf("relist: %v", err)
	}
}

func TestSetters(t *testing.T) {
	f := newFixture(t, 0)

	if err := f.on(f.m.Address(), seller, 0, func(tx *chain.Tx) error { return f.m.SetFeesCollectorCutPerMillion(tx, 10) }); !errors.Is(err, chain.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if err := f.on(f.m.Address(), owner, 0, func(tx *chain.Tx) error { return f.m.SetFeesCollectorCutPerMillion(tx, PerMillion+1) }); !errors.Is(err, chain.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if err := f.on(f.m.Address(), owner, 0, func(tx *chain.Tx) error {
		if err := f.m.SetFeesCollectorCutPerMillion(tx, 25_000); err != nil {
			return err
		}
		return f.m.SetFeesCollectorAddress(tx, seller)
	}); err != nil {
		t.Fatal(err)
	}
	if f.m.CutPerMillion() != 25_000 || f.m.FeesCollector() != seller {
		t.Fatalf("cut %d collector %s", f.m.CutPerMillion(), f.m.FeesCollector().Hex())
	}
	if got := f.m.Fee(big.NewInt(100)); got.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("ceil(2.5) = %s", got)
	}
}

package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-game-economy/internal/auth"
	"github.com/0gfoundation/0g-game-economy/internal/authority"
	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/config"
	"github.com/0gfoundation/0g-game-economy/internal/economy"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

func init() { gin.SetMode(gin.TestMode) }

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	t      *testing.T
	eco    *economy.Economy
	iss    *authority.Issuer
	r      *gin.Engine
	owner  *ecdsa.PrivateKey
	player *ecdsa.PrivateKey
	buyer  *ecdsa.PrivateKey
}

func addr(k *ecdsa.PrivateKey) common.Address { return crypto.PubkeyToAddress(k.PublicKey) }

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, owner: newKey(t), player: newKey(t), buyer: newKey(t)}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f.iss = authority.NewIssuer(newKey(t), rdb)

	cfg := &config.Config{
		Chain: config.ChainConfig{ChainID: 31337},
		Tokens: []config.TokenConfig{
			{Name: "Run Now", Symbol: "RUNNOW", Cap: "1000000"},
			{Name: "Run Gem", Symbol: "RUNGEM", Cap: "1000000", Premint: "1000"},
		},
		Items:  config.ItemsConfig{Price: "0", Logic: 2},
		Market: config.MarketConfig{CutPerMillion: 50000},
	}
	h := chain.NewHost(big.NewInt(31337), zap.NewNop())
	eco, err := economy.Deploy(context.Background(), h, addr(f.owner), f.iss.Address(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	f.eco = eco
	h.Fund(addr(f.player), big.NewInt(1000))
	h.Fund(addr(f.buyer), big.NewInt(1000))

	f.r = gin.New()
	NewHandler(eco, zap.NewNop()).Register(f.r.Group("/api", auth.Middleware(rdb)), f.r.Group("/view"))
	return f
}

// post signs a request for contract/action with key and sends it to path.
func (f *fixture) post(key *ecdsa.PrivateKey, path, contract, action string, payload any) *httptest.ResponseRecorder {
	f.t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		f.t.Fatal(err)
	}
	msg, _ := json.Marshal(auth.SignedRequest{
		Action:    action,
		Contract:  contract,
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
		Nonce:     uuid.NewString(),
		Payload:   raw,
	})
	sig, err := auth.SignMessage(msg, key)
	if err != nil {
		f.t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(nil))
	req.Header.Set("X-Wallet-Address", addr(key).Hex())
	req.Header.Set("X-Signed-Message", base64.StdEncoding.EncodeToString(msg))
	req.Header.Set("X-Wallet-Signature", "0x"+hex.EncodeToString(sig))
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func (f *fixture) get(path string, out any) int {
	f.t.Helper()
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			f.t.Fatalf("GET %s: decode %q: %v", path, w.Body.String(), err)
		}
	}
	return w.Code
}

func expect(t *testing.T, w *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d: %s", w.Code, status, w.Body.String())
	}
	if kind == "" {
		return
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != kind {
		t.Fatalf("error = %v, want %s (reason %v)", resp["error"], kind, resp["reason"])
	}
	if resp["reason"] == "" {
		t.Error("reason should be set")
	}
}

func (f *fixture) redeem(key *ecdsa.PrivateKey, price int64) uint64 {
	f.t.Helper()
	v, err := f.iss.ItemVoucher(f.eco.Items.Domain(), voucher.ItemVoucher{
		ID: "sword-1", ItemType: "sword", ExtraType: "iron", Price: big.NewInt(price),
	})
	if err != nil {
		f.t.Fatal(err)
	}
	w := f.post(key, "/api/items/redeem", ContractItems, "redeem", map[string]any{"voucher": v, "value": big.NewInt(price).String()})
	expect(f.t, w, http.StatusOK, "")
	var resp struct {
		Result uint64 `json:"result"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Result
}

// ── Currencies ────────────────────────────────────────────────────────────────

func TestTokenTransfer(t *testing.T) {
	f := newFixture(t)
	player := addr(f.player).Hex()

	w := f.post(f.owner, "/api/tokens/RUNGEM/transfer", "RUNGEM", "transfer", map[string]string{"to": player, "amount": "100"})
	expect(t, w, http.StatusOK, "")

	var bal map[string]string
	if code := f.get("/view/tokens/RUNGEM/balances/"+player, &bal); code != http.StatusOK {
		t.Fatalf("balance view status %d", code)
	}
	if bal["balance"] != "100" {
		t.Fatalf("player balance = %s, want 100", bal["balance"])
	}

	// Hex amounts decode too.
	w = f.post(f.owner, "/api/tokens/RUNGEM/transfer", "RUNGEM", "transfer", map[string]string{"to": player, "amount": "0x0a"})
	expect(t, w, http.StatusOK, "")
	f.get("/view/tokens/RUNGEM/balances/"+player, &bal)
	if bal["balance"] != "110" {
		t.Fatalf("player balance = %s, want 110", bal["balance"])
	}
}

func TestTokenErrors(t *testing.T) {
	f := newFixture(t)
	player := addr(f.player).Hex()

	t.Run("not owner", func(t *testing.T) {
		w := f.post(f.player, "/api/tokens/RUNGEM/mint", "RUNGEM", "mint", map[string]string{"to": player, "amount": "1"})
		expect(t, w, http.StatusForbidden, "UNAUTHORIZED")
	})
	t.Run("insufficient balance", func(t *testing.T) {
		w := f.post(f.player, "/api/tokens/RUNGEM/transfer", "RUNGEM", "transfer", map[string]string{"to": player, "amount": "1"})
		expect(t, w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE")
	})
	t.Run("exceeds cap", func(t *testing.T) {
		w := f.post(f.owner, "/api/tokens/RUNGEM/mint", "RUNGEM", "mint", map[string]string{"to": player, "amount": "999001"})
		expect(t, w, http.StatusUnprocessableEntity, "EXCEEDS_CAP")
	})
	t.Run("missing amount", func(t *testing.T) {
		w := f.post(f.owner, "/api/tokens/RUNGEM/transfer", "RUNGEM", "transfer", map[string]string{"to": player})
		expect(t, w, http.StatusBadRequest, "ZERO_AMOUNT")
	})
	t.Run("unknown token", func(t *testing.T) {
		w := f.post(f.owner, "/api/tokens/GOLD/transfer", "GOLD", "transfer", map[string]string{"to": player, "amount": "1"})
		expect(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
	})
	t.Run("signed for another action", func(t *testing.T) {
		w := f.post(f.owner, "/api/tokens/RUNGEM/transfer", "RUNGEM", "burn", map[string]string{"amount": "1"})
		expect(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
	})
	t.Run("signed for another contract", func(t *testing.T) {
		w := f.post(f.owner, "/api/tokens/RUNGEM/transfer", "RUNNOW", "transfer", map[string]string{"to": player, "amount": "1"})
		expect(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
	})
	t.Run("unsigned", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tokens/RUNGEM/transfer", nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}

// ── Items and market ─────────────────────────────────────────────────────────

func TestRedeemAndReplay(t *testing.T) {
	f := newFixture(t)

	v, _ := f.iss.ItemVoucher(f.eco.Items.Domain(), voucher.ItemVoucher{ID: "box-1", ItemType: "box", Price: big.NewInt(25)})
	w := f.post(f.player, "/api/items/redeem", ContractItems, "redeem", map[string]any{"voucher": v, "value": "24"})
	expect(t, w, http.StatusPaymentRequired, "INSUFFICIENT_PAYMENT")

	id := f.redeem(f.player, 25)
	if id != 1 {
		t.Fatalf("token id = %d, want 1", id)
	}

	var item struct {
		Item struct {
			Owner common.Address `json:"owner"`
		} `json:"item"`
	}
	if code := f.get("/view/items/1", &item); code != http.StatusOK {
		t.Fatalf("item view status %d", code)
	}
	if item.Item.Owner != addr(f.player) {
		t.Fatalf("owner = %s", item.Item.Owner.Hex())
	}
	if code := f.get("/view/items/99", nil); code != http.StatusNotFound {
		t.Fatalf("missing item status = %d, want 404", code)
	}

	var wallet walletView
	f.get("/view/wallets/"+addr(f.player).Hex(), &wallet)
	if wallet.Native != "975" || len(wallet.Items) != 1 {
		t.Fatalf("wallet = %+v", wallet)
	}
}

func TestRedeem_ReplayConflict(t *testing.T) {
	f := newFixture(t)
	v, _ := f.iss.ItemVoucher(f.eco.Items.Domain(), voucher.ItemVoucher{ID: "box-1", ItemType: "box", Price: big.NewInt(1)})
	body := map[string]any{"voucher": v, "value": "1"}

	expect(t, f.post(f.player, "/api/items/redeem", ContractItems, "redeem", body), http.StatusOK, "")
	expect(t, f.post(f.player, "/api/items/redeem", ContractItems, "redeem", body), http.StatusConflict, "NONCE_REUSED")

	var used map[string]any
	f.get("/view/nonces/items/"+v.Data.Nonce, &used)
	if used["used"] != true {
		t.Fatalf("nonce view = %v", used)
	}
}

func TestMarketFlow(t *testing.T) {
	f := newFixture(t)
	id := f.redeem(f.player, 0)
	items := f.eco.Items.Address().Hex()

	w := f.post(f.player, "/api/items/approval-for-all", ContractItems, "set_approval_for_all",
		map[string]any{"operator": f.eco.Market.Address().Hex(), "approved": true})
	expect(t, w, http.StatusOK, "")

	o, err := f.iss.OrderItem(f.eco.Market.Domain(), voucher.OrderItem{
		WalletAddress: addr(f.player),
		ID:            "L1",
		ItemType:      "sword",
		ExtraType:     "iron",
		TokenID:       new(big.Int).SetUint64(id),
		ItemAddress:   common.HexToAddress(items),
		Price:         big.NewInt(100),
	})
	if err != nil {
		t.Fatal(err)
	}
	expect(t, f.post(f.player, "/api/market/offer", ContractMarket, "offer", map[string]any{"voucher": o}), http.StatusOK, "")

	expect(t, f.post(f.buyer, "/api/market/buy", ContractMarket, "buy", map[string]any{"listing_id": "L1", "value": "99"}),
		http.StatusPaymentRequired, "WRONG_PAYMENT")
	expect(t, f.post(f.buyer, "/api/market/buy", ContractMarket, "buy", map[string]any{"listing_id": "L1", "value": "100"}),
		http.StatusOK, "")
	expect(t, f.post(f.buyer, "/api/market/buy", ContractMarket, "buy", map[string]any{"listing_id": "L1", "value": "100"}),
		http.StatusConflict, "LISTING_INACTIVE")
	expect(t, f.post(f.buyer, "/api/market/buy", ContractMarket, "buy", map[string]any{"listing_id": "nope", "value": "1"}),
		http.StatusNotFound, "LISTING_NOT_FOUND")

	var listing map[string]any
	f.get("/view/market/listings/L1", &listing)
	if listing["active"] != false {
		t.Fatalf("listing = %v", listing)
	}

	var seller, owner walletView
	f.get("/view/wallets/"+addr(f.player).Hex(), &seller)
	f.get("/view/wallets/"+addr(f.owner).Hex(), &owner)
	if seller.Native != "1095" {
		t.Errorf("seller native = %s, want 1095", seller.Native)
	}
	if owner.Native != "5" {
		t.Errorf("fees collector native = %s, want 5", owner.Native)
	}
}

// ── Vault ────────────────────────────────────────────────────────────────────

func TestVaultNativeRoundTrip(t *testing.T) {
	f := newFixture(t)
	player := addr(f.player)

	w := f.post(f.player, "/api/vault/deposit-native", ContractVault, "deposit_native_token", map[string]string{"amount": "300", "value": "299"})
	expect(t, w, http.StatusPaymentRequired, "WRONG_PAYMENT")
	w = f.post(f.player, "/api/vault/deposit-native", ContractVault, "deposit_native_token", map[string]string{"amount": "300", "value": "300"})
	expect(t, w, http.StatusOK, "")

	var pos map[string]string
	f.get("/view/vault/deposits/"+player.Hex()+"/"+common.Address{}.Hex(), &pos)
	if pos["amount"] != "300" {
		t.Fatalf("position = %v", pos)
	}

	wv, _ := f.iss.WithdrawToken(f.eco.Vault.Domain(), voucher.WithdrawToken{WalletAddress: player, IsNativeToken: true, Amount: big.NewInt(200)})
	// Any caller may relay the voucher; the payout goes to the wallet in it.
	expect(t, f.post(f.buyer, "/api/vault/withdraw-token", ContractVault, "withdraw_token", map[string]any{"voucher": wv}), http.StatusOK, "")

	var wallet walletView
	f.get("/view/wallets/"+player.Hex(), &wallet)
	if wallet.Native != "900" {
		t.Fatalf("player native = %s, want 900", wallet.Native)
	}
}

// ── Upgrade and views ────────────────────────────────────────────────────────

func TestUpgrade(t *testing.T) {
	f := newFixture(t)

	w := f.post(f.player, "/api/upgrade", ContractMarket, "upgrade", map[string]any{"version": 1})
	expect(t, w, http.StatusForbidden, "UNAUTHORIZED")
	w = f.post(f.owner, "/api/upgrade", ContractMarket, "upgrade", map[string]any{"version": 9})
	expect(t, w, http.StatusNotImplemented, "UNSUPPORTED")
	w = f.post(f.owner, "/api/upgrade", "bank", "upgrade", map[string]any{"version": 1})
	expect(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	to := map[string]any{"new_owner": addr(f.player).Hex()}

	w := f.post(f.player, "/api/ownership", ContractMarket, "transfer_ownership", to)
	expect(t, w, http.StatusForbidden, "UNAUTHORIZED")

	w = f.post(f.owner, "/api/ownership", ContractMarket, "transfer_ownership", to)
	expect(t, w, http.StatusOK, "")
	f.eco.Host.View(func() {
		if f.eco.Market.Owner() != addr(f.player) {
			t.Fatalf("market owner = %s", f.eco.Market.Owner().Hex())
		}
	})

	// The previous owner has lost control; the new one can hand it back.
	w = f.post(f.owner, "/api/ownership", ContractMarket, "transfer_ownership", map[string]any{"new_owner": addr(f.owner).Hex()})
	expect(t, w, http.StatusForbidden, "UNAUTHORIZED")
	w = f.post(f.player, "/api/ownership", ContractMarket, "transfer_ownership", map[string]any{"new_owner": addr(f.owner).Hex()})
	expect(t, w, http.StatusOK, "")

	w = f.post(f.owner, "/api/ownership", ContractMarket, "transfer_ownership", map[string]any{"new_owner": common.Address{}.Hex()})
	expect(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
	w = f.post(f.owner, "/api/ownership", ContractMarket, "upgrade", to)
	expect(t, w, http.StatusBadRequest, "")
}

func TestViews(t *testing.T) {
	f := newFixture(t)

	var contracts map[string]string
	f.get("/view/contracts", &contracts)
	if len(contracts) != 5 || contracts["market"] != f.eco.Market.Address().Hex() {
		t.Fatalf("contracts = %v", contracts)
	}

	var info map[string]any
	f.get("/view/tokens/RUNGEM", &info)
	if info["cap"] != "1000000" || info["total_supply"] != "1000" {
		t.Fatalf("token info = %v", info)
	}

	var events []map[string]any
	f.get("/view/events?from=0&limit=2", &events)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if code := f.get("/view/events?limit=x", nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", code)
	}
	if code := f.get("/view/wallets/nope", nil); code != http.StatusBadRequest {
		t.Fatalf("bad address status = %d", code)
	}
}

func TestStatusOf(t *testing.T) {
	tests := map[chain.Kind]int{
		chain.KindInvalidSignature:    http.StatusForbidden,
		chain.KindNonceReused:         http.StatusConflict,
		chain.KindTokenNotFound:       http.StatusNotFound,
		chain.KindInsufficientPayment: http.StatusPaymentRequired,
		chain.KindExceedsCap:          http.StatusUnprocessableEntity,
		chain.KindZeroAmount:          http.StatusBadRequest,
		chain.KindUnsupported:         http.StatusNotImplemented,
		chain.KindUnknown:             http.StatusInternalServerError,
	}
	for k, want := range tests {
		if got := statusOf(k); got != want {
			t.Errorf("statusOf(%s) = %d, want %d", k, got, want)
		}
	}
}

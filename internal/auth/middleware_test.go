package auth

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSetup creates a miniredis instance, a Redis client, and a Gin engine
// with the auth middleware wired up.
func testSetup(t *testing.T) (*miniredis.Miniredis, *redis.Client, *gin.Engine) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := gin.New()
	r.POST("/test", Middleware(rdb), func(c *gin.Context) {
		req := Request(c)
		c.JSON(http.StatusOK, gin.H{"wallet": Caller(c).Hex(), "action": req.Action, "contract": req.Contract})
	})
	return mr, rdb, r
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return k
}

// buildRequest creates a signed HTTP request for testing.
// expiresOffset is relative to now (e.g. +2*time.Minute for valid, -1 for expired).
func buildRequest(t *testing.T, key *ecdsa.PrivateKey, expiresOffset time.Duration, nonce string) *http.Request {
	t.Helper()
	sr := SignedRequest{
		Action:    "transfer",
		Contract:  "RUNGEM",
		ExpiresAt: time.Now().Add(expiresOffset).Unix(),
		Nonce:     nonce,
		Payload:   json.RawMessage(`{}`),
	}
	msgBytes, _ := json.Marshal(sr)
	sig, err := SignMessage(msgBytes, key)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("X-Wallet-Address", crypto.PubkeyToAddress(key.PublicKey).Hex())
	req.Header.Set("X-Signed-Message", base64.StdEncoding.EncodeToString(msgBytes))
	req.Header.Set("X-Wallet-Signature", "0x"+hex.EncodeToString(sig))
	return req
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return resp["error"]
}

func TestMiddleware_ValidRequest(t *testing.T) {
	_, _, r := testSetup(t)
	key := newKey(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, buildRequest(t, key, 2*time.Minute, "nonce-valid-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["wallet"] != crypto.PubkeyToAddress(key.PublicKey).Hex() {
		t.Errorf("caller = %s", resp["wallet"])
	}
	if resp["action"] != "transfer" || resp["contract"] != "RUNGEM" {
		t.Errorf("signed request not stored: %v", resp)
	}
}

func TestMiddleware_MissingHeaders(t *testing.T) {
	_, _, r := testSetup(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_Expiry(t *testing.T) {
	_, _, r := testSetup(t)
	key := newKey(t)

	tests := []struct {
		name   string
		offset time.Duration
		want   string
	}{
		{"expired", -1 * time.Second, "request expired"},
		{"too far in future", 10 * time.Minute, "expires_at too far in future"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, buildRequest(t, key, tt.offset, "nonce-expiry-"+string(rune('a'+i))))
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
			}
			if got := errorOf(t, w); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware_InvalidSignature(t *testing.T) {
	_, _, r := testSetup(t)

	// Valid request, then swap in a different wallet address.
	req := buildRequest(t, newKey(t), 2*time.Minute, "nonce-badsig-1")
	req.Header.Set("X-Wallet-Address", "0x000000000000000000000000000000000000dEaD")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	if got := errorOf(t, w); got != "invalid signature" {
		t.Errorf("unexpected error: %s", got)
	}
}

func TestMiddleware_InvalidWalletHeader(t *testing.T) {
	_, _, r := testSetup(t)

	req := buildRequest(t, newKey(t), 2*time.Minute, "nonce-badwallet-1")
	req.Header.Set("X-Wallet-Address", "not-an-address")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := errorOf(t, w); got != "invalid wallet address" {
		t.Errorf("unexpected error: %s", got)
	}
}

func TestMiddleware_NonceReplay(t *testing.T) {
	_, _, r := testSetup(t)
	key := newKey(t)

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, buildRequest(t, key, 2*time.Minute, "nonce-replay-1"))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d: %s", w1.Code, w1.Body.String())
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, buildRequest(t, key, 2*time.Minute, "nonce-replay-1"))
	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("replay: expected 401, got %d: %s", w2.Code, w2.Body.String())
	}
	if got := errorOf(t, w2); got != "nonce already used" {
		t.Errorf("unexpected error: %s", got)
	}
}

// Nonces are scoped per wallet: another wallet may reuse the same string.
func TestMiddleware_NoncePerWallet(t *testing.T) {
	_, _, r := testSetup(t)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, buildRequest(t, newKey(t), 2*time.Minute, "shared-nonce"))
		if w.Code != http.StatusOK {
			t.Fatalf("wallet %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
	}
}

func TestMiddleware_NonceTTL(t *testing.T) {
	mr, _, r := testSetup(t)
	key := newKey(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, buildRequest(t, key, 2*time.Minute, "nonce-ttl-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	nk := NonceKey(crypto.PubkeyToAddress(key.PublicKey), "nonce-ttl-1")
	if ttl := mr.TTL(nk); ttl <= 0 || ttl > 2*time.Minute {
		t.Fatalf("nonce TTL = %v", ttl)
	}
	mr.FastForward(3 * time.Minute)
	if mr.Exists(nk) {
		t.Fatal("nonce key should expire with the request window")
	}
}

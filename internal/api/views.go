package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/item"
	"github.com/0gfoundation/0g-game-economy/internal/market"
	"github.com/0gfoundation/0g-game-economy/internal/token"
	"github.com/0gfoundation/0g-game-economy/internal/vault"
)

const maxEventPage = 500

func (h *Handler) registerViews(rg *gin.RouterGroup) {
	rg.GET("/contracts", h.viewContracts)
	rg.GET("/events", h.viewEvents)
	rg.GET("/nonces/:contract/:nonce", h.viewNonce)

	rg.GET("/tokens/:symbol", h.withToken(h.viewToken))
	rg.GET("/tokens/:symbol/balances/:addr", h.withToken(h.viewBalance))
	rg.GET("/tokens/:symbol/allowances/:owner/:spender", h.withToken(h.viewAllowance))

	rg.GET("/wallets/:addr", h.viewWallet)

	rg.GET("/items", h.viewRegistry)
	rg.GET("/items/:id", h.viewItem)

	rg.GET("/vault/deposits/:addr/:asset", h.viewDeposit)

	rg.GET("/market", h.viewMarket)
	rg.GET("/market/listings/:id", h.viewListing)
}

func (h *Handler) invalid(c *gin.Context, what string) {
	h.fail(c, chain.Errorf(chain.KindInvalidArgument, "invalid %s", what))
}

// ── Host ────────────────────────────────────────────────────────────────────

func (h *Handler) viewContracts(c *gin.Context) {
	out := make(map[string]string)
	for name, addr := range h.eco.Contracts() {
		out[name] = addr.Hex()
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) viewEvents(c *gin.Context) {
	from, err := strconv.ParseUint(c.DefaultQuery("from", "0"), 10, 64)
	if err != nil {
		h.invalid(c, "from")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		h.invalid(c, "limit")
		return
	}
	if limit > maxEventPage {
		limit = maxEventPage
	}
	events := h.eco.Host.Events(from, limit)
	if events == nil {
		events = []chain.Event{}
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) viewNonce(c *gin.Context) {
	nonce := c.Param("nonce")
	var used bool
	switch c.Param("contract") {
	case ContractItems:
		h.eco.Host.View(func() { used = h.eco.Items.NonceUsed(nonce) })
	case ContractVault:
		h.eco.Host.View(func() { used = h.eco.Vault.NonceUsed(nonce) })
	case ContractMarket:
		h.eco.Host.View(func() { used = h.eco.Market.NonceUsed(nonce) })
	default:
		h.invalid(c, "contract")
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "used": used})
}

// ── Currencies ──────────────────────────────────────────────────────────────

func (h *Handler) withToken(fn func(*gin.Context, *token.Ledger)) gin.HandlerFunc {
	return func(c *gin.Context) {
		l, ok := h.eco.Token(c.Param("symbol"))
		if !ok {
			h.invalid(c, "token")
			return
		}
		fn(c, l)
	}
}

func (h *Handler) viewToken(c *gin.Context, l *token.Ledger) {
	var out gin.H
	h.eco.Host.View(func() {
		out = gin.H{
			"address":      l.Address().Hex(),
			"name":         l.Name(),
			"symbol":       l.Symbol(),
			"decimals":     token.Decimals,
			"cap":          l.Cap().String(),
			"total_supply": l.TotalSupply().String(),
			"burn_amount":  l.BurnAmount().String(),
			"owner":        l.Owner().Hex(),
		}
	})
	c.JSON(http.StatusOK, out)
}

func (h *Handler) viewBalance(c *gin.Context, l *token.Ledger) {
	who, ok := address(c, "addr")
	if !ok {
		h.invalid(c, "address")
		return
	}
	var bal string
	h.eco.Host.View(func() { bal = l.BalanceOf(who).String() })
	c.JSON(http.StatusOK, gin.H{"address": who.Hex(), "balance": bal})
}

func (h *Handler) viewAllowance(c *gin.Context, l *token.Ledger) {
	owner, ok1 := address(c, "owner")
	spender, ok2 := address(c, "spender")
	if !ok1 || !ok2 {
		h.invalid(c, "address")
		return
	}
	var allowance string
	h.eco.Host.View(func() { allowance = l.Allowance(owner, spender).String() })
	c.JSON(http.StatusOK, gin.H{"owner": owner.Hex(), "spender": spender.Hex(), "allowance": allowance})
}

// ── Wallets ─────────────────────────────────────────────────────────────────

type walletView struct {
	Address common.Address    `json:"address"`
	Native  string            `json:"native"`
	Tokens  map[string]string `json:"tokens"`
	Items   []item.Item       `json:"items"`
	Custody []vault.Custody   `json:"custody"`
}

func (h *Handler) viewWallet(c *gin.Context) {
	who, ok := address(c, "addr")
	if !ok {
		h.invalid(c, "address")
		return
	}
	out := walletView{Address: who, Tokens: make(map[string]string, len(h.eco.Tokens))}
	h.eco.Host.View(func() {
		out.Native = h.eco.Host.NativeBalance(who).String()
		for sym, l := range h.eco.Tokens {
			out.Tokens[sym] = l.BalanceOf(who).String()
		}
		out.Items = h.eco.Items.ItemsOf(who)
		out.Custody = h.eco.Vault.CustodiedBy(who)
	})
	c.JSON(http.StatusOK, out)
}

// ── Items ───────────────────────────────────────────────────────────────────

func (h *Handler) viewRegistry(c *gin.Context) {
	r := h.eco.Items
	var out gin.H
	h.eco.Host.View(func() {
		out = gin.H{
			"address":       r.Address().Hex(),
			"logic":         r.Logic(),
			"signer":        r.Signer().Hex(),
			"game_address":  r.GameAddress().Hex(),
			"price_token":   r.PriceToken().Hex(),
			"price":         r.Price().String(),
			"next_token_id": r.NextTokenID(),
		}
	})
	c.JSON(http.StatusOK, out)
}

func (h *Handler) viewItem(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		h.invalid(c, "token id")
		return
	}
	var (
		it       item.Item
		approved common.Address
	)
	h.eco.Host.View(func() {
		if it, err = h.eco.Items.Item(id); err == nil {
			approved, err = h.eco.Items.GetApproved(id)
		}
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": it, "approved": approved.Hex()})
}

// ── Vault ───────────────────────────────────────────────────────────────────

// viewDeposit reports a depositor's credited position. The zero address is
// the native asset.
func (h *Handler) viewDeposit(c *gin.Context) {
	who, ok1 := address(c, "addr")
	asset, ok2 := address(c, "asset")
	if !ok1 || !ok2 {
		h.invalid(c, "address")
		return
	}
	var amt string
	h.eco.Host.View(func() { amt = h.eco.Vault.Deposited(who, asset).String() })
	c.JSON(http.StatusOK, gin.H{"depositor": who.Hex(), "asset": asset.Hex(), "amount": amt})
}

// ── Market ──────────────────────────────────────────────────────────────────

func (h *Handler) viewMarket(c *gin.Context) {
	m := h.eco.Market
	var out gin.H
	h.eco.Host.View(func() {
		out = gin.H{
			"address":         m.Address().Hex(),
			"signer":          m.Signer().Hex(),
			"fees_collector":  m.FeesCollector().Hex(),
			"cut_per_million": m.CutPerMillion(),
		}
	})
	c.JSON(http.StatusOK, out)
}

func (h *Handler) viewListing(c *gin.Context) {
	var (
		l   market.Listing
		err error
	)
	h.eco.Host.View(func() { l, err = h.eco.Market.Listing(c.Param("id")) })
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

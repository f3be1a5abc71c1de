package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gin-gonic/gin"

	"github.com/0gfoundation/0g-game-economy/internal/auth"
	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/token"
)

type amountRequest struct {
	To     common.Address        `json:"to"`
	Amount *math.HexOrDecimal256 `json:"amount"`
}

type approveRequest struct {
	Spender common.Address        `json:"spender"`
	Amount  *math.HexOrDecimal256 `json:"amount"`
}

type transferFromRequest struct {
	From   common.Address        `json:"from"`
	To     common.Address        `json:"to"`
	Amount *math.HexOrDecimal256 `json:"amount"`
}

func (h *Handler) registerTokens(rg *gin.RouterGroup) {
	rg.POST("/tokens/:symbol/transfer", tokenOp(h, "transfer", func(tx *chain.Tx, l *token.Ledger, p amountRequest) error {
		return l.Transfer(tx, p.To, amount(p.Amount))
	}))
	rg.POST("/tokens/:symbol/approve", tokenOp(h, "approve", func(tx *chain.Tx, l *token.Ledger, p approveRequest) error {
		return l.Approve(tx, p.Spender, amount(p.Amount))
	}))
	rg.POST("/tokens/:symbol/transfer-from", tokenOp(h, "transfer_from", func(tx *chain.Tx, l *token.Ledger, p transferFromRequest) error {
		return l.TransferFrom(tx, p.From, p.To, amount(p.Amount))
	}))
	rg.POST("/tokens/:symbol/burn", tokenOp(h, "burn", func(tx *chain.Tx, l *token.Ledger, p amountRequest) error {
		return l.Burn(tx, amount(p.Amount))
	}))

	// Owner only.
	rg.POST("/tokens/:symbol/mint", tokenOp(h, "mint", func(tx *chain.Tx, l *token.Ledger, p amountRequest) error {
		return l.Mint(tx, p.To, amount(p.Amount))
	}))
	rg.POST("/tokens/:symbol/burn-amount", tokenOp(h, "set_burn_amount", func(tx *chain.Tx, l *token.Ledger, p amountRequest) error {
		return l.SetBurnAmount(tx, amount(p.Amount))
	}))
	rg.POST("/tokens/:symbol/burn-then-mint", tokenOp(h, "burn_then_mint", func(tx *chain.Tx, l *token.Ledger, p amountRequest) error {
		return l.BurnThenMint(tx, p.To)
	}))
}

// tokenOp builds a handler that resolves the currency from the path, decodes
// a payload of type P and runs op as one transaction against the ledger.
func tokenOp[P any](h *Handler, action string, op func(tx *chain.Tx, l *token.Ledger, p P) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := c.Param("symbol")
		l, ok := h.eco.Token(symbol)
		if !ok {
			h.fail(c, chain.Errorf(chain.KindInvalidArgument, "unknown token %s", symbol))
			return
		}
		p, ok := bind[P](h, c, symbol, action)
		if !ok {
			return
		}
		if !h.exec(c, l.Address(), nil, func(tx *chain.Tx) error { return op(tx, l, p) }) {
			return
		}
		var supply, balance string
		h.eco.Host.View(func() {
			supply = l.TotalSupply().String()
			balance = l.BalanceOf(auth.Caller(c)).String()
		})
		c.JSON(http.StatusOK, gin.H{"token": symbol, "total_supply": supply, "balance": balance})
	}
}

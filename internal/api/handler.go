// Package api exposes the game economy over HTTP. Mutating routes live under
// /api behind wallet-signature auth; the signed payload carries the operation
// arguments. Read-only routes live under /view.
package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-game-economy/internal/auth"
	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/economy"
)

// Contract names used in SignedRequest.Contract for non-currency routes.
// Currency routes use the token symbol.
const (
	ContractItems  = "items"
	ContractVault  = "vault"
	ContractMarket = "market"
)

// Handler wires every ledger operation onto Gin route groups.
type Handler struct {
	eco *economy.Economy
	log *zap.Logger
}

func NewHandler(eco *economy.Economy, log *zap.Logger) *Handler {
	return &Handler{eco: eco, log: log}
}

// Register mounts mutating routes on api (auth middleware must already be
// applied) and read-only routes on view.
func (h *Handler) Register(api, view *gin.RouterGroup) {
	h.registerTokens(api)
	h.registerItems(api)
	h.registerVault(api)
	h.registerMarket(api)
	api.POST("/upgrade", h.handleUpgrade)
	api.POST("/ownership", h.handleOwnership)

	h.registerViews(view)
}

// ── Errors ──────────────────────────────────────────────────────────────────

func statusOf(k chain.Kind) int {
	switch k {
	case chain.KindInvalidSignature, chain.KindUnauthorized, chain.KindNotBoxOwner:
		return http.StatusForbidden
	case chain.KindNonceReused, chain.KindListingInactive, chain.KindDuplicateListing:
		return http.StatusConflict
	case chain.KindListingNotFound, chain.KindTokenNotFound:
		return http.StatusNotFound
	case chain.KindInsufficientPayment, chain.KindWrongPayment:
		return http.StatusPaymentRequired
	case chain.KindExceedsCap, chain.KindInsufficientBalance, chain.KindInsufficientAllowance:
		return http.StatusUnprocessableEntity
	case chain.KindZeroAmount, chain.KindInvalidArgument:
		return http.StatusBadRequest
	case chain.KindUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	var ce *chain.Error
	if !errors.As(err, &ce) {
		h.log.Error("api: unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": chain.KindUnknown.String(), "reason": "internal error"})
		return
	}
	c.AbortWithStatusJSON(statusOf(ce.Kind), gin.H{"error": ce.Kind.String(), "reason": ce.Reason})
}

func (h *Handler) badRequest(c *gin.Context, reason string) {
	h.fail(c, chain.Errorf(chain.KindInvalidArgument, "%s", reason))
}

// ── Request plumbing ────────────────────────────────────────────────────────

// bind checks that the signed request targets action on contract and decodes
// its payload into T.
func bind[T any](h *Handler, c *gin.Context, contract, action string) (T, bool) {
	var out T
	req := auth.Request(c)
	if req.Action != action || req.Contract != contract {
		h.badRequest(c, "signed request is for "+req.Contract+"/"+req.Action+", not "+contract+"/"+action)
		return out, false
	}
	if len(req.Payload) == 0 {
		h.badRequest(c, "missing payload")
		return out, false
	}
	if err := json.Unmarshal(req.Payload, &out); err != nil {
		h.badRequest(c, "invalid payload: "+err.Error())
		return out, false
	}
	return out, true
}

// exec runs fn as one transaction from the authenticated caller to contract.
func (h *Handler) exec(c *gin.Context, contract common.Address, value *big.Int, fn func(tx *chain.Tx) error) bool {
	msg := chain.Msg{From: auth.Caller(c), To: contract, Value: value}
	if err := h.eco.Host.Execute(c.Request.Context(), msg, fn); err != nil {
		h.fail(c, err)
		return false
	}
	return true
}

// payment is embedded in payloads of payable operations.
type payment struct {
	Value *math.HexOrDecimal256 `json:"value"`
}

func (p payment) attached() *big.Int { return amount(p.Value) }

type payable interface{ attached() *big.Int }

// call builds a handler that decodes a payload of type P signed for
// name/action and runs fn as one transaction against addr. The value fn
// returns is sent back as "result".
func call[P any](h *Handler, name string, addr common.Address, action string, fn func(tx *chain.Tx, p P) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := bind[P](h, c, name, action)
		if !ok {
			return
		}
		var value *big.Int
		if pp, ok := any(p).(payable); ok {
			value = pp.attached()
		}
		var res any
		if !h.exec(c, addr, value, func(tx *chain.Tx) error {
			var err error
			res, err = fn(tx, p)
			return err
		}) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": res})
	}
}

// amount converts an optional decimal-or-hex JSON amount. nil stays nil so
// ledgers report ZERO_AMOUNT.
func amount(x *math.HexOrDecimal256) *big.Int {
	if x == nil {
		return nil
	}
	return (*big.Int)(x)
}

func address(c *gin.Context, param string) (common.Address, bool) {
	s := c.Param(param)
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// ── Upgrade ─────────────────────────────────────────────────────────────────

type upgradeRequest struct {
	Version uint8 `json:"version"`
}

// handleUpgrade swaps the logic version of a named contract. The signed
// request's Contract names the target.
func (h *Handler) handleUpgrade(c *gin.Context) {
	req := auth.Request(c)
	addr, ok := h.eco.Contracts()[req.Contract]
	if !ok {
		h.badRequest(c, "unknown contract "+req.Contract)
		return
	}
	p, ok := bind[upgradeRequest](h, c, req.Contract, "upgrade")
	if !ok {
		return
	}
	if err := h.eco.Host.Upgrade(c.Request.Context(), auth.Caller(c), addr, chain.Version(p.Version)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": addr.Hex(), "version": p.Version})
}

type ownershipRequest struct {
	NewOwner common.Address `json:"new_owner"`
}

// handleOwnership hands a named contract to a new owner.
func (h *Handler) handleOwnership(c *gin.Context) {
	req := auth.Request(c)
	addr, ok := h.eco.Contracts()[req.Contract]
	if !ok {
		h.badRequest(c, "unknown contract "+req.Contract)
		return
	}
	p, ok := bind[ownershipRequest](h, c, req.Contract, "transfer_ownership")
	if !ok {
		return
	}
	ok = h.exec(c, addr, nil, func(tx *chain.Tx) error {
		ct, _ := tx.Contract(addr)
		return ct.TransferOwnership(tx, p.NewOwner)
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": addr.Hex(), "owner": p.NewOwner.Hex()})
}

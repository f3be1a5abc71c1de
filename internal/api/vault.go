package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gin-gonic/gin"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

type depositTokenRequest struct {
	Token  common.Address        `json:"token"`
	Amount *math.HexOrDecimal256 `json:"amount"`
}

type depositNativeRequest struct {
	payment
	Amount *math.HexOrDecimal256 `json:"amount"`
}

type withdrawTokenRequest struct {
	Voucher voucher.Signed[voucher.WithdrawToken] `json:"voucher"`
}

type depositItemRequest struct {
	Voucher voucher.Signed[voucher.DepositItem] `json:"voucher"`
}

type withdrawItemRequest struct {
	Voucher voucher.Signed[voucher.WithdrawItem] `json:"voucher"`
}

type releaseResponse struct {
	Kind    string `json:"kind"`
	TokenID uint64 `json:"token_id"`
}

func (h *Handler) registerVault(rg *gin.RouterGroup) {
	v := h.eco.Vault
	at := v.Address()

	rg.POST("/vault/deposit-token", call(h, ContractVault, at, "deposit_token", func(tx *chain.Tx, p depositTokenRequest) (any, error) {
		return nil, v.DepositToken(tx, amount(p.Amount), p.Token)
	}))
	rg.POST("/vault/deposit-native", call(h, ContractVault, at, "deposit_native_token", func(tx *chain.Tx, p depositNativeRequest) (any, error) {
		return nil, v.DepositNativeToken(tx, amount(p.Amount))
	}))
	// Anyone may submit a withdrawal voucher; the payout goes to the wallet
	// named inside it.
	rg.POST("/vault/withdraw-token", call(h, ContractVault, at, "withdraw_token", func(tx *chain.Tx, p withdrawTokenRequest) (any, error) {
		return nil, v.WithdrawToken(tx, p.Voucher.Data, p.Voucher.Signature)
	}))
	rg.POST("/vault/deposit-item", call(h, ContractVault, at, "deposit_item", func(tx *chain.Tx, p depositItemRequest) (any, error) {
		return nil, v.DepositItem(tx, p.Voucher.Data, p.Voucher.Signature)
	}))
	rg.POST("/vault/withdraw-item", call(h, ContractVault, at, "withdraw_item", func(tx *chain.Tx, p withdrawItemRequest) (any, error) {
		rel, err := v.WithdrawItem(tx, p.Voucher.Data, p.Voucher.Signature)
		if err != nil {
			return nil, err
		}
		return releaseResponse{Kind: rel.Kind.String(), TokenID: rel.TokenID}, nil
	}))

	rg.POST("/vault/signer", call(h, ContractVault, at, "set_signer", func(tx *chain.Tx, p addressRequest) (any, error) {
		return nil, v.SetSigner(tx, p.Address)
	}))
}

package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gin-gonic/gin"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

type redeemRequest struct {
	payment
	Voucher voucher.Signed[voucher.ItemVoucher] `json:"voucher"`
}

type openBoxRequest struct {
	Voucher voucher.Signed[voucher.StarterBox] `json:"voucher"`
}

type itemTransferRequest struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	TokenID uint64         `json:"token_id"`
}

type itemApproveRequest struct {
	To      common.Address `json:"to"`
	TokenID uint64         `json:"token_id"`
}

type operatorRequest struct {
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

type gameMintRequest struct {
	To        common.Address `json:"to"`
	ID        string         `json:"id"`
	ItemType  string         `json:"item_type"`
	ExtraType string         `json:"extra_type"`
}

type metadataRequest struct {
	TokenID   uint64 `json:"token_id"`
	ItemType  string `json:"item_type"`
	ExtraType string `json:"extra_type"`
}

type priceRequest struct {
	Token common.Address        `json:"token"`
	Price *math.HexOrDecimal256 `json:"price"`
}

type addressRequest struct {
	Address common.Address `json:"address"`
}

func (h *Handler) registerItems(rg *gin.RouterGroup) {
	r := h.eco.Items
	at := r.Address()

	rg.POST("/items/redeem", call(h, ContractItems, at, "redeem", func(tx *chain.Tx, p redeemRequest) (any, error) {
		return r.Redeem(tx, p.Voucher.Data, p.Voucher.Signature)
	}))
	rg.POST("/items/open-box", call(h, ContractItems, at, "open_starter_box", func(tx *chain.Tx, p openBoxRequest) (any, error) {
		return r.OpenStarterBox(tx, p.Voucher.Data, p.Voucher.Signature)
	}))
	rg.POST("/items/transfer", call(h, ContractItems, at, "transfer_from", func(tx *chain.Tx, p itemTransferRequest) (any, error) {
		return p.TokenID, r.TransferFrom(tx, p.From, p.To, p.TokenID)
	}))
	rg.POST("/items/approve", call(h, ContractItems, at, "approve", func(tx *chain.Tx, p itemApproveRequest) (any, error) {
		return p.TokenID, r.Approve(tx, p.To, p.TokenID)
	}))
	rg.POST("/items/approval-for-all", call(h, ContractItems, at, "set_approval_for_all", func(tx *chain.Tx, p operatorRequest) (any, error) {
		return p.Approved, r.SetApprovalForAll(tx, p.Operator, p.Approved)
	}))

	// Game only.
	rg.POST("/items/mint-from-game", call(h, ContractItems, at, "mint_from_game", func(tx *chain.Tx, p gameMintRequest) (any, error) {
		return r.MintFromGame(tx, p.To, p.ID, p.ItemType, p.ExtraType)
	}))
	rg.POST("/items/metadata", call(h, ContractItems, at, "set_metadata", func(tx *chain.Tx, p metadataRequest) (any, error) {
		return p.TokenID, r.SetMetadata(tx, p.TokenID, p.ItemType, p.ExtraType)
	}))

	// Owner only.
	rg.POST("/items/price", call(h, ContractItems, at, "set_price", func(tx *chain.Tx, p priceRequest) (any, error) {
		return nil, r.SetPrice(tx, p.Token, amount(p.Price))
	}))
	rg.POST("/items/game-address", call(h, ContractItems, at, "set_game_address", func(tx *chain.Tx, p addressRequest) (any, error) {
		return nil, r.SetGameAddress(tx, p.Address)
	}))
	rg.POST("/items/signer", call(h, ContractItems, at, "set_signer", func(tx *chain.Tx, p addressRequest) (any, error) {
		return nil, r.SetSigner(tx, p.Address)
	}))
	rg.POST("/items/sweep", call(h, ContractItems, at, "sweep", func(tx *chain.Tx, p addressRequest) (any, error) {
		return r.Sweep(tx, p.Address)
	}))
}

package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

type offerRequest struct {
	Voucher voucher.Signed[voucher.OrderItem] `json:"voucher"`
}

type buyRequest struct {
	payment
	ListingID string `json:"listing_id"`
}

type listingRequest struct {
	ListingID string `json:"listing_id"`
}

type cutRequest struct {
	CutPerMillion uint64 `json:"cut_per_million"`
}

type collectorRequest struct {
	Collector common.Address `json:"collector"`
}

func (h *Handler) registerMarket(rg *gin.RouterGroup) {
	m := h.eco.Market
	at := m.Address()

	rg.POST("/market/offer", call(h, ContractMarket, at, "offer", func(tx *chain.Tx, p offerRequest) (any, error) {
		return m.Offer(tx, p.Voucher.Data, p.Voucher.Signature)
	}))
	rg.POST("/market/buy", call(h, ContractMarket, at, "buy", func(tx *chain.Tx, p buyRequest) (any, error) {
		return m.Buy(tx, p.ListingID)
	}))
	rg.POST("/market/withdraw", call(h, ContractMarket, at, "withdraw", func(tx *chain.Tx, p listingRequest) (any, error) {
		return p.ListingID, m.Withdraw(tx, p.ListingID)
	}))

	// Owner only.
	rg.POST("/market/fees-collector", call(h, ContractMarket, at, "set_fees_collector_address", func(tx *chain.Tx, p collectorRequest) (any, error) {
		return nil, m.SetFeesCollectorAddress(tx, p.Collector)
	}))
	rg.POST("/market/fees-cut", call(h, ContractMarket, at, "set_fees_collector_cut_per_million", func(tx *chain.Tx, p cutRequest) (any, error) {
		return nil, m.SetFeesCollectorCutPerMillion(tx, p.CutPerMillion)
	}))
	rg.POST("/market/signer", call(h, ContractMarket, at, "set_signer", func(tx *chain.Tx, p addressRequest) (any, error) {
		return nil, m.SetSigner(tx, p.Address)
	}))
}

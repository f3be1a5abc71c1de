package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type OfferEvent struct {
	Owner   common.Address `json:"owner"`
	ID      string         `json:"id"`
	TokenID uint64         `json:"tokenId"`
	Price   *big.Int       `json:"price"`
}

type BuyEvent struct {
	Buyer   common.Address `json:"buyer"`
	Seller  common.Address `json:"seller"`
	ID      string         `json:"id"`
	TokenID uint64         `json:"tokenId"`
	Price   *big.Int       `json:"price"`
	Fee     *big.Int       `json:"fee"`
}

type WithdrawEvent struct {
	Owner common.Address `json:"owner"`
	ID    string         `json:"id"`
}

package item

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type RedeemEvent struct {
	User      common.Address `json:"user"`
	ID        string         `json:"id"`
	TokenID   uint64         `json:"tokenId"`
	ItemType  string         `json:"itemType"`
	ExtraType string         `json:"extraType"`
	Price     *big.Int       `json:"price"`
	Token     common.Address `json:"token"` // zero for native payment
	Nonce     string         `json:"nonce"`
}

type OpenStarterBoxEvent struct {
	User     common.Address `json:"user"`
	ID       string         `json:"id"`
	BoxID    uint64         `json:"boxId"`
	TokenIDs []uint64       `json:"tokenIds"`
}

type MintFromGameEvent struct {
	User      common.Address `json:"user"`
	ID        string         `json:"id"`
	TokenID   uint64         `json:"tokenId"`
	ItemType  string         `json:"itemType"`
	ExtraType string         `json:"extraType"`
}

type MetadataUpdateEvent struct {
	TokenID   uint64 `json:"tokenId"`
	ItemType  string `json:"itemType"`
	ExtraType string `json:"extraType"`
}

type TransferEvent struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	TokenID uint64         `json:"tokenId"`
}

type ApprovalEvent struct {
	Owner    common.Address `json:"owner"`
	Approved common.Address `json:"approved"`
	TokenID  uint64         `json:"tokenId"`
}

type ApprovalForAllEvent struct {
	Owner    common.Address `json:"owner"`
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

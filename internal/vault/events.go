package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DepositTokenEvent is shared by DepositToken and DepositNativeToken; Token
// is zero for native deposits.
type DepositTokenEvent struct {
	User   common.Address `json:"user"`
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

type WithdrawTokenEvent struct {
	User   common.Address `json:"user"`
	Native bool           `json:"native"`
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
	Nonce  string         `json:"nonce"`
}

type DepositItemEvent struct {
	User        common.Address `json:"user"`
	ID          string         `json:"id"`
	ItemAddress common.Address `json:"itemAddress"`
	TokenID     uint64         `json:"tokenId"`
	ItemType    string         `json:"itemType"`
	ExtraType   string         `json:"extraType"`
}

type WithdrawItemEvent struct {
	User        common.Address `json:"user"`
	ID          string         `json:"id"`
	ItemAddress common.Address `json:"itemAddress"`
	TokenID     uint64         `json:"tokenId"`
	Release     string         `json:"release"`
	ItemType    string         `json:"itemType"`
	ExtraType   string         `json:"extraType"`
}

package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferEvent is emitted for transfers, mints (From is zero) and burns (To is zero).
type TransferEvent struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type ApprovalEvent struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
}

package voucher

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Redis keys for withdrawal vouchers awaiting relay, per vault address.
const (
	WithdrawQueueKeyFmt = "voucher:withdraw:queue:%s"
	WithdrawDLQKeyFmt   = "voucher:withdraw:dlq:%s"
)

func WithdrawQueueKey(vault common.Address) string {
	return fmt.Sprintf(WithdrawQueueKeyFmt, strings.ToLower(vault.Hex()))
}

func WithdrawDLQKey(vault common.Address) string {
	return fmt.Sprintf(WithdrawDLQKeyFmt, strings.ToLower(vault.Hex()))
}

// Rejected is a dead-lettered voucher with the reason it was refused.
type Rejected struct {
	Voucher Signed[WithdrawToken] `json:"voucher"`
	Kind    string                `json:"kind"`
	Reason  string                `json:"reason"`
}

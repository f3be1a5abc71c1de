package chain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Event is one entry of the append-only log. Data is the typed payload
// defined by the emitting ledger package.
type Event struct {
	Seq      uint64         `json:"seq"`
	Contract common.Address `json:"contract"`
	Name     string         `json:"name"`
	Data     any            `json:"data"`
}

type UpgradedEvent struct {
	From Version `json:"from"`
	To   Version `json:"to"`
}

type OwnershipTransferredEvent struct {
	Previous common.Address `json:"previous"`
	Next     common.Address `json:"next"`
}

package chain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Version tags the logic a contract runs over its storage. Version 1 is
// installed at deploy; Host.Upgrade moves to a later one.
type Version uint8

// Contract is implemented by every ledger by embedding Base.
type Contract interface {
	Address() common.Address
	Kind() string
	Owner() common.Address
	Logic() Version
	TransferOwnership(tx *Tx, newOwner common.Address) error
	base() *Base
}

// Base carries the identity, ownership and logic version shared by all
// contracts.
type Base struct {
	addr     common.Address
	kind     string
	owner    common.Address
	logic    Version
	maxLogic Version
}

// NewBase returns a Base for a contract kind supporting logic versions
// 1..maxLogic. Address and owner are assigned by Host.Deploy.
func NewBase(kind string, maxLogic Version) Base {
	return Base{kind: kind, maxLogic: maxLogic}
}

func (b *Base) Address() common.Address { return b.addr }
func (b *Base) Kind() string            { return b.kind }
func (b *Base) Owner() common.Address   { return b.owner }
func (b *Base) Logic() Version          { return b.logic }
func (b *Base) base() *Base             { return b }

// OnlyOwner fails with Unauthorized unless the frame's sender owns the contract.
func (b *Base) OnlyOwner(tx *Tx) error {
	if tx.Sender() != b.owner {
		return Errorf(KindUnauthorized, "caller is not the owner")
	}
	return nil
}

// RequireLogic fails with Unsupported when the installed logic predates min.
func (b *Base) RequireLogic(min Version, op string) error {
	if b.logic < min {
		return Errorf(KindUnsupported, "%s requires %s logic v%d, running v%d", op, b.kind, min, b.logic)
	}
	return nil
}

// TransferOwnership hands the contract to newOwner. Owner only.
func (b *Base) TransferOwnership(tx *Tx, newOwner common.Address) error {
	if err := b.OnlyOwner(tx); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return Errorf(KindInvalidArgument, "new owner is the zero address")
	}
	prev := b.owner
	Set(tx, &b.owner, newOwner)
	tx.Emit("OwnershipTransferred", OwnershipTransferredEvent{Previous: prev, Next: newOwner})
	return nil
}

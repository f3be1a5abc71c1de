package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tx is one execution frame. Frames created with Call share the journal and
// the pending event list of the outermost transaction.
type Tx struct {
	host   *Host
	j      *journal
	events *[]Event

	sender common.Address
	self   common.Address
	value  *big.Int
	depth  int
}

// Sender is the immediate caller of the current frame.
func (t *Tx) Sender() common.Address { return t.sender }

// Self is the address of the contract executing the current frame.
func (t *Tx) Self() common.Address { return t.self }

// Value is the native value attached to the current frame.
func (t *Tx) Value() *big.Int { return new(big.Int).Set(t.value) }

// Host returns the host running this transaction.
func (t *Tx) Host() *Host { return t.host }

// Emit queues an event from the current contract. It is appended to the log
// only if the whole transaction commits.
func (t *Tx) Emit(name string, data any) {
	*t.events = append(*t.events, Event{Contract: t.self, Name: name, Data: data})
}

// Pay sends native value from the executing contract to addr.
func (t *Tx) Pay(to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return t.host.move(t, t.self, to, amount)
}

// NativeBalance reads a native balance inside the transaction.
func (t *Tx) NativeBalance(addr common.Address) *big.Int {
	return t.host.NativeBalance(addr)
}

// Contract resolves a deployed contract inside the transaction.
func (t *Tx) Contract(addr common.Address) (Contract, bool) {
	return t.host.Contract(addr)
}

// Call runs fn in a nested frame on contract to, with the current contract as
// sender. value (may be nil) moves from the current contract to to first.
func (t *Tx) Call(to common.Address, value *big.Int, fn func(sub *Tx) error) error {
	if t.depth+1 > maxCallDepth {
		return Errorf(KindInvalidArgument, "call depth exceeded")
	}
	if _, ok := t.host.contracts[to]; !ok {
		return Errorf(KindInvalidArgument, "no contract at %s", to.Hex())
	}
	v := new(big.Int)
	if value != nil {
		v.Set(value)
	}
	if v.Sign() > 0 {
		if err := t.host.move(t, t.self, to, v); err != nil {
			return err
		}
	}
	sub := &Tx{
		host:   t.host,
		j:      t.j,
		events: t.events,
		sender: t.self,
		self:   to,
		value:  v,
		depth:  t.depth + 1,
	}
	return fn(sub)
}

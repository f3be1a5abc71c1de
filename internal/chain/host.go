// Package chain is the execution host for the game economy ledgers.
//
// A Host runs one transaction at a time. Every state mutation made inside a
// transaction is journaled; if the transaction body returns an error the
// journal is replayed backwards and the transaction's events are dropped, so a
// failed operation leaves no trace. Contracts are plain Go values registered at
// deploy time under an address derived from the deployer, and their logic
// version can be swapped in place without touching storage.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const maxCallDepth = 64

// Msg is an externally submitted call: From invokes contract To, attaching
// Value units of native currency.
type Msg struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// Sink receives committed events in order. Publish errors are logged and
// never roll back the committed transaction.
type Sink interface {
	Publish(ctx context.Context, events []Event) error
}

// Host owns all contract storage, native balances and the event log.
type Host struct {
	mu sync.Mutex

	chainID     *big.Int
	contracts   map[common.Address]Contract
	deployNonce map[common.Address]uint64
	native      map[common.Address]*big.Int
	events      []Event
	sinks       []Sink

	log *zap.Logger
}

func NewHost(chainID *big.Int, log *zap.Logger) *Host {
	return &Host{
		chainID:     new(big.Int).Set(chainID),
		contracts:   make(map[common.Address]Contract),
		deployNonce: make(map[common.Address]uint64),
		native:      make(map[common.Address]*big.Int),
		log:         log,
	}
}

// ChainID returns the chain id used in voucher domains.
func (h *Host) ChainID() *big.Int { return new(big.Int).Set(h.chainID) }

// AddSink registers an event consumer. Not safe to call concurrently with Execute.
func (h *Host) AddSink(s Sink) { h.sinks = append(h.sinks, s) }

// Contract looks up a deployed contract. Callers outside a transaction must
// hold the host through View.
func (h *Host) Contract(addr common.Address) (Contract, bool) {
	c, ok := h.contracts[addr]
	return c, ok
}

// NativeBalance returns the native balance of addr. Same locking rule as Contract.
func (h *Host) NativeBalance(addr common.Address) *big.Int {
	if b, ok := h.native[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// View runs fn with the host locked so reads observe a consistent state.
func (h *Host) View(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn()
}

// Fund credits native value to addr outside of any transaction (genesis
// allocation, faucets, tests).
func (h *Host) Fund(addr common.Address, amount *big.Int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.native[addr] = new(big.Int).Add(h.NativeBalance(addr), amount)
}

// Events returns up to limit committed events with Seq >= from.
func (h *Host) Events(from uint64, limit int) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if from >= uint64(len(h.events)) {
		return nil
	}
	out := h.events[from:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]Event(nil), out...)
}

// Deploy registers c under a fresh address derived from owner and runs init
// inside a transaction sent by owner. If init fails nothing is registered.
func (h *Host) Deploy(ctx context.Context, owner common.Address, c Contract, init func(tx *Tx) error) (common.Address, error) {
	h.mu.Lock()

	nonce := h.deployNonce[owner]
	addr := crypto.CreateAddress(owner, nonce)
	b := c.base()
	b.addr = addr
	b.owner = owner
	b.logic = 1

	tx := h.newTx(Msg{From: owner, To: addr})
	h.contracts[addr] = c
	h.deployNonce[owner] = nonce + 1
	tx.j.append(func() {
		delete(h.contracts, addr)
		h.deployNonce[owner] = nonce
	})

	if init != nil {
		if err := h.run(tx, init); err != nil {
			h.mu.Unlock()
			return common.Address{}, err
		}
	}
	committed := h.commit(tx)
	h.mu.Unlock()

	h.log.Info("contract deployed",
		zap.String("kind", c.Kind()),
		zap.String("address", addr.Hex()),
		zap.String("owner", owner.Hex()),
	)
	h.publish(ctx, committed)
	return addr, nil
}

// Upgrade swaps the logic version of the contract at addr. Storage is left
// untouched. Only the contract owner may upgrade.
func (h *Host) Upgrade(ctx context.Context, sender, addr common.Address, v Version) error {
	h.mu.Lock()

	c, ok := h.contracts[addr]
	if !ok {
		h.mu.Unlock()
		return Errorf(KindInvalidArgument, "no contract at %s", addr.Hex())
	}
	b := c.base()
	if sender != b.owner {
		h.mu.Unlock()
		return Errorf(KindUnauthorized, "caller is not the owner")
	}
	if v < 1 || v > b.maxLogic {
		h.mu.Unlock()
		return Errorf(KindUnsupported, "%s has no logic version %d", b.kind, v)
	}
	from := b.logic
	b.logic = v

	tx := h.newTx(Msg{From: sender, To: addr})
	tx.Emit("Upgraded", UpgradedEvent{From: from, To: v})
	committed := h.commit(tx)
	h.mu.Unlock()

	h.log.Info("contract upgraded",
		zap.String("kind", b.kind),
		zap.String("address", addr.Hex()),
		zap.Uint8("from", uint8(from)),
		zap.Uint8("to", uint8(v)),
	)
	h.publish(ctx, committed)
	return nil
}

// Execute runs fn as one all-or-nothing transaction for msg. Attached value
// moves from msg.From to msg.To before fn runs.
func (h *Host) Execute(ctx context.Context, msg Msg, fn func(tx *Tx) error) error {
	h.mu.Lock()

	if _, ok := h.contracts[msg.To]; !ok {
		h.mu.Unlock()
		return Errorf(KindInvalidArgument, "no contract at %s", msg.To.Hex())
	}
	tx := h.newTx(msg)
	err := h.run(tx, func(tx *Tx) error {
		if tx.value.Sign() > 0 {
			if err := h.move(tx, msg.From, msg.To, tx.value); err != nil {
				return err
			}
		}
		return fn(tx)
	})
	if err != nil {
		h.mu.Unlock()
		h.log.Debug("transaction reverted",
			zap.String("from", msg.From.Hex()),
			zap.String("to", msg.To.Hex()),
			zap.Error(err),
		)
		return err
	}
	committed := h.commit(tx)
	h.mu.Unlock()

	h.publish(ctx, committed)
	return nil
}

func (h *Host) newTx(msg Msg) *Tx {
	value := new(big.Int)
	if msg.Value != nil {
		value.Set(msg.Value)
	}
	return &Tx{
		host:   h,
		j:      &journal{},
		events: new([]Event),
		sender: msg.From,
		self:   msg.To,
		value:  value,
	}
}

// run executes fn and reverts the journal on error or panic. Caller holds mu.
func (h *Host) run(tx *Tx, fn func(tx *Tx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			tx.j.revert()
			h.mu.Unlock()
			panic(r)
		}
	}()
	if tx.value.Sign() < 0 {
		return Errorf(KindInvalidArgument, "negative value")
	}
	if err = fn(tx); err != nil {
		tx.j.revert()
	}
	return err
}

// commit assigns sequence numbers and appends tx events to the log. Caller holds mu.
func (h *Host) commit(tx *Tx) []Event {
	pending := *tx.events
	if len(pending) == 0 {
		return nil
	}
	for i := range pending {
		pending[i].Seq = uint64(len(h.events))
		h.events = append(h.events, pending[i])
	}
	return pending
}

func (h *Host) publish(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	for _, s := range h.sinks {
		if err := s.Publish(ctx, events); err != nil {
			h.log.Error("event sink publish failed",
				zap.Uint64("first_seq", events[0].Seq),
				zap.Int("count", len(events)),
				zap.Error(err),
			)
		}
	}
}

// move transfers native value between accounts, journaled. Caller holds mu.
func (h *Host) move(tx *Tx, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return Errorf(KindInvalidArgument, "negative amount")
	}
	bal := h.NativeBalance(from)
	if bal.Cmp(amount) < 0 {
		return Errorf(KindInsufficientBalance, "native balance of %s is %s, need %s", from.Hex(), bal, amount)
	}
	if from == to {
		return nil
	}
	SetMap(tx, h.native, from, new(big.Int).Sub(bal, amount))
	SetMap(tx, h.native, to, new(big.Int).Add(h.NativeBalance(to), amount))
	return nil
}

func (h *Host) String() string {
	return fmt.Sprintf("host(chain=%s, contracts=%d)", h.chainID, len(h.contracts))
}

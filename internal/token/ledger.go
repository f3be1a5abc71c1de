// Package token implements the capped fungible ledger used for in-game
// currencies. Supply can never exceed the cap fixed at deploy time.
package token

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
)

const Kind = "fungible"

// Decimals is the fixed-point precision of every ledger.
const Decimals = 18

// Config is the deploy-time configuration of one currency.
type Config struct {
	Name    string
	Symbol  string
	Cap     *big.Int
	Premint *big.Int // minted to the owner at deploy; nil mints the full cap
}

type allowanceKey struct {
	owner, spender common.Address
}

// Ledger is one capped fungible currency.
type Ledger struct {
	chain.Base

	name        string
	symbol      string
	cap         *big.Int
	totalSupply *big.Int
	burnAmount  *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[allowanceKey]*big.Int
}

// Deploy instantiates a ledger owned by owner and mints the premint to it.
func Deploy(ctx context.Context, h *chain.Host, owner common.Address, cfg Config) (*Ledger, error) {
	if cfg.Cap == nil || cfg.Cap.Sign() <= 0 {
		return nil, chain.Errorf(chain.KindInvalidArgument, "cap must be positive")
	}
	l := &Ledger{
		Base:        chain.NewBase(Kind, 1),
		name:        cfg.Name,
		symbol:      cfg.Symbol,
		cap:         new(big.Int).Set(cfg.Cap),
		totalSupply: new(big.Int),
		burnAmount:  new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[allowanceKey]*big.Int),
	}
	premint := cfg.Premint
	if premint == nil {
		premint = cfg.Cap
	}
	_, err := h.Deploy(ctx, owner, l, func(tx *chain.Tx) error {
		if premint.Sign() == 0 {
			return nil
		}
		return l.mint(tx, owner, premint)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ── Views ─────────────────────────────────────────────────────────────────────

func (l *Ledger) Name() string   { return l.name }
func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) Cap() *big.Int         { return new(big.Int).Set(l.cap) }
func (l *Ledger) TotalSupply() *big.Int { return new(big.Int).Set(l.totalSupply) }
func (l *Ledger) BurnAmount() *big.Int  { return new(big.Int).Set(l.burnAmount) }

func (l *Ledger) BalanceOf(who common.Address) *big.Int {
	if b, ok := l.balances[who]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	if a, ok := l.allowances[allowanceKey{owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// ── Owner operations ──────────────────────────────────────────────────────────

// Mint creates amount new units for to. Fails ExceedsCap rather than minting
// a partial amount.
func (l *Ledger) Mint(tx *chain.Tx, to common.Address, amount *big.Int) error {
	if err := l.OnlyOwner(tx); err != nil {
		return err
	}
	return l.mint(tx, to, amount)
}

// SetBurnAmount sets the amount BurnThenMint issues.
func (l *Ledger) SetBurnAmount(tx *chain.Tx, amount *big.Int) error {
	if err := l.OnlyOwner(tx); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return chain.Errorf(chain.KindInvalidArgument, "burn amount must not be negative")
	}
	chain.Set(tx, &l.burnAmount, new(big.Int).Set(amount))
	return nil
}

// BurnThenMint reissues burnAmount to to under the same cap check as Mint.
func (l *Ledger) BurnThenMint(tx *chain.Tx, to common.Address) error {
	if err := l.OnlyOwner(tx); err != nil {
		return err
	}
	return l.mint(tx, to, l.burnAmount)
}

// ── Holder operations ─────────────────────────────────────────────────────────

// Burn destroys amount of the sender's balance, freeing cap headroom.
func (l *Ledger) Burn(tx *chain.Tx, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	from := tx.Sender()
	bal := l.BalanceOf(from)
	if bal.Cmp(amount) < 0 {
		return chain.Errorf(chain.KindInsufficientBalance, "burn amount %s exceeds balance %s", amount, bal)
	}
	chain.SetMap(tx, l.balances, from, new(big.Int).Sub(bal, amount))
	chain.Set(tx, &l.totalSupply, new(big.Int).Sub(l.totalSupply, amount))
	tx.Emit("Transfer", TransferEvent{From: from, To: common.Address{}, Amount: new(big.Int).Set(amount)})
	return nil
}

func (l *Ledger) Transfer(tx *chain.Tx, to common.Address, amount *big.Int) error {
	return l.transfer(tx, tx.Sender(), to, amount)
}

func (l *Ledger) Approve(tx *chain.Tx, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return chain.Errorf(chain.KindInvalidArgument, "allowance must not be negative")
	}
	if spender == (common.Address{}) {
		return chain.Errorf(chain.KindInvalidArgument, "approve to the zero address")
	}
	owner := tx.Sender()
	chain.SetMap(tx, l.allowances, allowanceKey{owner, spender}, new(big.Int).Set(amount))
	tx.Emit("Approval", ApprovalEvent{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom moves amount from from to to on the sender's allowance. The
// balance is checked before the allowance.
func (l *Ledger) TransferFrom(tx *chain.Tx, from, to common.Address, amount *big.Int) error {
	spender := tx.Sender()
	if err := l.transfer(tx, from, to, amount); err != nil {
		return err
	}
	allowed := l.Allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return chain.Errorf(chain.KindInsufficientAllowance, "allowance %s below %s", allowed, amount)
	}
	chain.SetMap(tx, l.allowances, allowanceKey{from, spender}, new(big.Int).Sub(allowed, amount))
	return nil
}

// ── internals ─────────────────────────────────────────────────────────────────

func (l *Ledger) mint(tx *chain.Tx, to common.Address, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return chain.Errorf(chain.KindInvalidArgument, "mint to the zero address")
	}
	supply := new(big.Int).Add(l.totalSupply, amount)
	if supply.Cmp(l.cap) > 0 {
		return chain.Errorf(chain.KindExceedsCap, "%s: minting %s would exceed cap %s", l.symbol, amount, l.cap)
	}
	chain.Set(tx, &l.totalSupply, supply)
	chain.SetMap(tx, l.balances, to, new(big.Int).Add(l.BalanceOf(to), amount))
	tx.Emit("Transfer", TransferEvent{From: common.Address{}, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (l *Ledger) transfer(tx *chain.Tx, from, to common.Address, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return chain.Errorf(chain.KindInvalidArgument, "transfer to the zero address")
	}
	bal := l.BalanceOf(from)
	if bal.Cmp(amount) < 0 {
		return chain.Errorf(chain.KindInsufficientBalance, "%s: transfer amount %s exceeds balance %s", l.symbol, amount, bal)
	}
	if from == to {
		tx.Emit("Transfer", TransferEvent{From: from, To: to, Amount: new(big.Int).Set(amount)})
		return nil
	}
	chain.SetMap(tx, l.balances, from, new(big.Int).Sub(bal, amount))
	chain.SetMap(tx, l.balances, to, new(big.Int).Add(l.BalanceOf(to), amount))
	tx.Emit("Transfer", TransferEvent{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func positive(amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return chain.Errorf(chain.KindZeroAmount, "amount must be greater than zero")
	}
	if amount.Sign() < 0 {
		return chain.Errorf(chain.KindInvalidArgument, "amount must not be negative")
	}
	return nil
}

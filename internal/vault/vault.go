// Package vault implements the game vault: players deposit currency and items
// into game custody and take them back out against authority vouchers.
//
// Deposits credit a per-depositor position. Withdrawals are paid from the
// vault-wide reserves and do not debit positions; the authority decides what a
// player is owed off-chain and signs accordingly.
package vault

import (
	"bytes"
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/item"
	"github.com/0gfoundation/0g-game-economy/internal/token"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

const Kind = "vault"

// NativeAsset keys native-value positions.
var NativeAsset = common.Address{}

// ReleaseKind says how WithdrawItem produced the item it handed out.
type ReleaseKind uint8

const (
	// ReleaseCustody returns an item the vault already holds.
	ReleaseCustody ReleaseKind = iota + 1
	// ReleaseCrafted mints a new item through the registry's game channel.
	ReleaseCrafted
)

func (k ReleaseKind) String() string {
	switch k {
	case ReleaseCustody:
		return "custody"
	case ReleaseCrafted:
		return "crafted"
	default:
		return "unknown"
	}
}

// Release is the outcome of WithdrawItem.
type Release struct {
	Kind    ReleaseKind `json:"kind"`
	TokenID uint64      `json:"tokenId"`
}

// Custody is one item held by the vault on behalf of a depositor.
type Custody struct {
	ItemAddress common.Address `json:"itemAddress"`
	TokenID     uint64         `json:"tokenId"`
	Depositor   common.Address `json:"depositor"`
}

type positionKey struct {
	depositor, asset common.Address
}

type custodyKey struct {
	itemAddress common.Address
	tokenID     uint64
}

type Vault struct {
	chain.Base
	engine *voucher.Engine

	positions map[positionKey]*big.Int
	custody   map[custodyKey]common.Address
}

func Deploy(ctx context.Context, h *chain.Host, owner, signer common.Address) (*Vault, error) {
	v := &Vault{
		Base:      chain.NewBase(Kind, 1),
		positions: make(map[positionKey]*big.Int),
		custody:   make(map[custodyKey]common.Address),
	}
	_, err := h.Deploy(ctx, owner, v, func(tx *chain.Tx) error {
		v.engine = voucher.NewEngine(voucher.Domain{
			Name:              voucher.ItemDomainName,
			Version:           voucher.DomainVersion,
			ChainID:           h.ChainID(),
			VerifyingContract: tx.Self(),
		}, signer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) Domain() voucher.Domain      { return v.engine.Domain() }
func (v *Vault) Signer() common.Address      { return v.engine.Signer() }
func (v *Vault) NonceUsed(nonce string) bool { return v.engine.Used(nonce) }

func (v *Vault) SetSigner(tx *chain.Tx, signer common.Address) error {
	if err := v.OnlyOwner(tx); err != nil {
		return err
	}
	v.engine.SetSigner(tx, signer)
	return nil
}

// ── Currency ──────────────────────────────────────────────────────────────────

// DepositToken pulls amount of a fungible ledger from the sender. The vault
// needs an allowance on that ledger.
func (v *Vault) DepositToken(tx *chain.Tx, amount *big.Int, tokenAddress common.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return chain.Errorf(chain.KindZeroAmount, "deposit amount must be greater than zero")
	}
	ledger, err := ledgerAt(tx, tokenAddress)
	if err != nil {
		return err
	}
	depositor := tx.Sender()
	v.credit(tx, depositor, tokenAddress, amount)
	err = tx.Call(tokenAddress, nil, func(sub *chain.Tx) error {
		return ledger.TransferFrom(sub, depositor, tx.Self(), amount)
	})
	if err != nil {
		return err
	}
	tx.Emit("DepositToken", DepositTokenEvent{User: depositor, Token: tokenAddress, Amount: new(big.Int).Set(amount)})
	return nil
}

// DepositNativeToken credits the native value attached to the call. The
// attachment must equal amount exactly.
func (v *Vault) DepositNativeToken(tx *chain.Tx, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return chain.Errorf(chain.KindZeroAmount, "deposit amount must be greater than zero")
	}
	if tx.Value().Cmp(amount) != 0 {
		return chain.Errorf(chain.KindWrongPayment, "attached %s, declared %s", tx.Value(), amount)
	}
	depositor := tx.Sender()
	v.credit(tx, depositor, NativeAsset, amount)
	tx.Emit("DepositNativeToken", DepositTokenEvent{User: depositor, Token: NativeAsset, Amount: new(big.Int).Set(amount)})
	return nil
}

// WithdrawToken pays the voucher amount from the vault reserves to the
// voucher's wallet.
func (v *Vault) WithdrawToken(tx *chain.Tx, w voucher.WithdrawToken, sig []byte) error {
	if err := v.engine.Consume(w, sig); err != nil {
		return err
	}
	if w.Amount == nil || w.Amount.Sign() <= 0 {
		return chain.Errorf(chain.KindZeroAmount, "withdraw amount must be greater than zero")
	}
	if w.WalletAddress == (common.Address{}) {
		return chain.Errorf(chain.KindInvalidArgument, "wallet address is zero")
	}

	asset := NativeAsset
	if w.IsNativeToken {
		if err := tx.Pay(w.WalletAddress, w.Amount); err != nil {
			return err
		}
	} else {
		asset = w.TokenAddress
		ledger, err := ledgerAt(tx, w.TokenAddress)
		if err != nil {
			return err
		}
		err = tx.Call(w.TokenAddress, nil, func(sub *chain.Tx) error {
			return ledger.Transfer(sub, w.WalletAddress, w.Amount)
		})
		if err != nil {
			return err
		}
	}
	tx.Emit("WithdrawToken", WithdrawTokenEvent{
		User:   w.WalletAddress,
		Native: w.IsNativeToken,
		Token:  asset,
		Amount: new(big.Int).Set(w.Amount),
		Nonce:  w.Nonce,
	})
	return nil
}

// ── Items ─────────────────────────────────────────────────────────────────────

// DepositItem takes an item owned by the sender into custody. The vault must
// be approved for the item on its registry and the voucher metadata must
// match the item's.
func (v *Vault) DepositItem(tx *chain.Tx, d voucher.DepositItem, sig []byte) error {
	if err := v.engine.Consume(d, sig); err != nil {
		return err
	}
	reg, err := registryAt(tx, d.ItemAddress)
	if err != nil {
		return err
	}
	tokenID, err := item.TokenID(d.TokenID)
	if err != nil {
		return err
	}
	depositor := tx.Sender()
	it, err := reg.Item(tokenID)
	if err != nil {
		return err
	}
	if it.Owner != depositor {
		return chain.Errorf(chain.KindUnauthorized, "token %d is not owned by the caller", tokenID)
	}
	if it.ItemType != d.ItemType || it.ExtraType != d.ExtraType {
		return chain.Errorf(chain.KindInvalidArgument, "token %d is %s/%s, voucher says %s/%s",
			tokenID, it.ItemType, it.ExtraType, d.ItemType, d.ExtraType)
	}

	chain.SetMap(tx, v.custody, custodyKey{d.ItemAddress, tokenID}, depositor)
	err = tx.Call(d.ItemAddress, nil, func(sub *chain.Tx) error {
		return reg.TransferFrom(sub, depositor, tx.Self(), tokenID)
	})
	if err != nil {
		return err
	}
	tx.Emit("DepositItem", DepositItemEvent{
		User:        depositor,
		ID:          d.ID,
		ItemAddress: d.ItemAddress,
		TokenID:     tokenID,
		ItemType:    d.ItemType,
		ExtraType:   d.ExtraType,
	})
	return nil
}

// WithdrawItem releases an item to the voucher's wallet. A non-zero token id
// returns an item the vault holds, deposited or not; token id 0 crafts a new
// one, which requires the vault to be the registry's game address.
func (v *Vault) WithdrawItem(tx *chain.Tx, w voucher.WithdrawItem, sig []byte) (Release, error) {
	if err := v.engine.Consume(w, sig); err != nil {
		return Release{}, err
	}
	if w.WalletAddress == (common.Address{}) {
		return Release{}, chain.Errorf(chain.KindInvalidArgument, "wallet address is zero")
	}
	reg, err := registryAt(tx, w.ItemAddress)
	if err != nil {
		return Release{}, err
	}
	rel, err := classify(w)
	if err != nil {
		return Release{}, err
	}

	switch rel.Kind {
	case ReleaseCustody:
		var holder common.Address
		if holder, err = reg.OwnerOf(rel.TokenID); err != nil {
			return Release{}, err
		}
		if holder != tx.Self() {
			return Release{}, chain.Errorf(chain.KindTokenNotFound, "token %d is not held by the vault", rel.TokenID)
		}
		key := custodyKey{w.ItemAddress, rel.TokenID}
		if _, recorded := v.custody[key]; recorded {
			chain.DeleteMap(tx, v.custody, key)
		}
		err = tx.Call(w.ItemAddress, nil, func(sub *chain.Tx) error {
			return reg.TransferFrom(sub, tx.Self(), w.WalletAddress, rel.TokenID)
		})
	case ReleaseCrafted:
		err = tx.Call(w.ItemAddress, nil, func(sub *chain.Tx) error {
			id, err := reg.MintFromGame(sub, w.WalletAddress, w.ID, w.ItemType, w.ExtraType)
			rel.TokenID = id
			return err
		})
	}
	if err != nil {
		return Release{}, err
	}
	tx.Emit("WithdrawItem", WithdrawItemEvent{
		User:        w.WalletAddress,
		ID:          w.ID,
		ItemAddress: w.ItemAddress,
		TokenID:     rel.TokenID,
		Release:     rel.Kind.String(),
		ItemType:    w.ItemType,
		ExtraType:   w.ExtraType,
	})
	return rel, nil
}

func classify(w voucher.WithdrawItem) (Release, error) {
	if w.TokenID == nil || w.TokenID.Sign() == 0 {
		return Release{Kind: ReleaseCrafted}, nil
	}
	id, err := item.TokenID(w.TokenID)
	if err != nil {
		return Release{}, err
	}
	return Release{Kind: ReleaseCustody, TokenID: id}, nil
}

// ── Views ─────────────────────────────────────────────────────────────────────

// Deposited is the total depositor has credited in asset (NativeAsset for native value).
func (v *Vault) Deposited(depositor, asset common.Address) *big.Int {
	if b, ok := v.positions[positionKey{depositor, asset}]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Custodian returns who deposited the item, if the vault holds it.
func (v *Vault) Custodian(itemAddress common.Address, tokenID uint64) (common.Address, bool) {
	d, ok := v.custody[custodyKey{itemAddress, tokenID}]
	return d, ok
}

// CustodiedBy lists the items held for depositor, ordered by registry then id.
func (v *Vault) CustodiedBy(depositor common.Address) []Custody {
	var out []Custody
	for k, d := range v.custody {
		if d == depositor {
			out = append(out, Custody{ItemAddress: k.itemAddress, TokenID: k.tokenID, Depositor: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].ItemAddress[:], out[j].ItemAddress[:]); c != 0 {
			return c < 0
		}
		return out[i].TokenID < out[j].TokenID
	})
	return out
}

// ── internals ─────────────────────────────────────────────────────────────────

func (v *Vault) credit(tx *chain.Tx, depositor, asset common.Address, amount *big.Int) {
	k := positionKey{depositor, asset}
	chain.SetMap(tx, v.positions, k, new(big.Int).Add(v.Deposited(depositor, asset), amount))
}

func ledgerAt(tx *chain.Tx, addr common.Address) (*token.Ledger, error) {
	c, ok := tx.Contract(addr)
	if !ok {
		return nil, chain.Errorf(chain.KindInvalidArgument, "no token at %s", addr.Hex())
	}
	l, ok := c.(*token.Ledger)
	if !ok {
		return nil, chain.Errorf(chain.KindInvalidArgument, "%s is not a fungible ledger", addr.Hex())
	}
	return l, nil
}

func registryAt(tx *chain.Tx, addr common.Address) (*item.Registry, error) {
	c, ok := tx.Contract(addr)
	if !ok {
		return nil, chain.Errorf(chain.KindInvalidArgument, "no item registry at %s", addr.Hex())
	}
	r, ok := c.(*item.Registry)
	if !ok {
		return nil, chain.Errorf(chain.KindInvalidArgument, "%s is not an item registry", addr.Hex())
	}
	return r, nil
}

// Package item implements the registry of unique game items. Items are
// minted against authority vouchers (paid in native value or a fungible
// ledger), by the registered game process, or out of starter boxes.
//
// Logic v1 covers redemption and the transfer surface. v2 adds game minting,
// starter boxes and metadata updates over the same storage.
package item

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/token"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

const Kind = "item"

const (
	LogicV1 chain.Version = 1
	LogicV2 chain.Version = 2
)

const (
	TypeBox       = "box"
	TypeOpenedBox = "opened_box"
	TypeStarter   = "starter_item"

	// MaxBoxContents bounds how many items one starter box may yield.
	MaxBoxContents = 20
)

// Item is one unique token. TokenID never changes; the metadata may.
type Item struct {
	TokenID   uint64         `json:"tokenId"`
	Owner     common.Address `json:"owner"`
	ItemType  string         `json:"itemType"`
	ExtraType string         `json:"extraType"`
}

// Config is the deploy-time configuration of a registry.
type Config struct {
	Signer      common.Address
	GameAddress common.Address
	PriceToken  common.Address // currency of the floor price; zero is native
	Price       *big.Int       // floor price, nil is zero
}

type operatorKey struct {
	owner, operator common.Address
}

type Registry struct {
	chain.Base
	engine *voucher.Engine

	nextID    uint64
	items     map[uint64]Item
	balances  map[common.Address]uint64
	approvals map[uint64]common.Address
	operators map[operatorKey]bool

	gameAddress common.Address
	priceToken  common.Address
	price       *big.Int
}

// Deploy instantiates a registry owned by owner with logic v1.
func Deploy(ctx context.Context, h *chain.Host, owner common.Address, cfg Config) (*Registry, error) {
	price := new(big.Int)
	if cfg.Price != nil {
		if cfg.Price.Sign() < 0 {
			return nil, chain.Errorf(chain.KindInvalidArgument, "price must not be negative")
		}
		price.Set(cfg.Price)
	}
	r := &Registry{
		Base:        chain.NewBase(Kind, LogicV2),
		nextID:      1,
		items:       make(map[uint64]Item),
		balances:    make(map[common.Address]uint64),
		approvals:   make(map[uint64]common.Address),
		operators:   make(map[operatorKey]bool),
		gameAddress: cfg.GameAddress,
		priceToken:  cfg.PriceToken,
		price:       price,
	}
	_, err := h.Deploy(ctx, owner, r, func(tx *chain.Tx) error {
		r.engine = voucher.NewEngine(voucher.Domain{
			Name:              voucher.ItemDomainName,
			Version:           voucher.DomainVersion,
			ChainID:           h.ChainID(),
			VerifyingContract: tx.Self(),
		}, cfg.Signer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Domain is the voucher domain this registry verifies against.
func (r *Registry) Domain() voucher.Domain { return r.engine.Domain() }

// ── Voucher operations ────────────────────────────────────────────────────────

// Redeem mints one item to the sender against an authority voucher. Payment
// is taken in the currency the voucher names. The floor price is
// denominated in the registry's price token and only raises vouchers priced
// in that same currency.
func (r *Registry) Redeem(tx *chain.Tx, v voucher.ItemVoucher, sig []byte) (uint64, error) {
	if err := r.engine.Consume(v, sig); err != nil {
		return 0, err
	}
	price := new(big.Int)
	if v.Price != nil {
		price.Set(v.Price)
	}
	if v.PriceTokenAddress == r.priceToken && r.price.Cmp(price) > 0 {
		price.Set(r.price)
	}

	buyer := tx.Sender()
	if !v.PaysWithToken() && tx.Value().Cmp(price) < 0 {
		return 0, chain.Errorf(chain.KindInsufficientPayment, "sent %s, price is %s", tx.Value(), price)
	}

	id, err := r.mint(tx, buyer, v.ItemType, v.ExtraType)
	if err != nil {
		return 0, err
	}
	if v.PaysWithToken() && price.Sign() > 0 {
		if err := r.pull(tx, v.PriceTokenAddress, buyer, price); err != nil {
			return 0, err
		}
	}
	tx.Emit("Redeem", RedeemEvent{
		User:      buyer,
		ID:        v.ID,
		TokenID:   id,
		ItemType:  v.ItemType,
		ExtraType: v.ExtraType,
		Price:     price,
		Token:     v.PriceTokenAddress,
		Nonce:     v.Nonce,
	})
	return id, nil
}

// pull collects a payment in the ledger at tokenAddr from buyer to the
// registry owner.
func (r *Registry) pull(tx *chain.Tx, tokenAddr, buyer common.Address, amount *big.Int) error {
	c, ok := tx.Contract(tokenAddr)
	if !ok {
		return chain.Errorf(chain.KindInvalidArgument, "price token %s is not deployed", tokenAddr.Hex())
	}
	ledger, ok := c.(*token.Ledger)
	if !ok {
		return chain.Errorf(chain.KindInvalidArgument, "%s is not a fungible ledger", tokenAddr.Hex())
	}
	err := tx.Call(tokenAddr, nil, func(sub *chain.Tx) error {
		return ledger.TransferFrom(sub, buyer, r.Owner(), amount)
	})
	switch chain.KindOf(err) {
	case chain.KindInsufficientBalance, chain.KindInsufficientAllowance:
		return chain.Errorf(chain.KindInsufficientPayment, "token payment failed: %v", err)
	}
	return err
}

// OpenStarterBox consumes a box owned by the sender and mints its contents to
// the voucher's wallet. The box item is kept and marked opened.
func (r *Registry) OpenStarterBox(tx *chain.Tx, v voucher.StarterBox, sig []byte) ([]uint64, error) {
	if err := r.RequireLogic(LogicV2, "OpenStarterBox"); err != nil {
		return nil, err
	}
	if err := r.engine.Consume(v, sig); err != nil {
		return nil, err
	}
	boxID, err := TokenID(v.TokenID)
	if err != nil {
		return nil, err
	}
	box, ok := r.items[boxID]
	if !ok || box.Owner != tx.Sender() || box.ItemType != TypeBox {
		return nil, chain.Errorf(chain.KindNotBoxOwner, "sender does not own an unopened box %d", boxID)
	}
	if v.NumberTokens == nil || v.NumberTokens.Sign() <= 0 || v.NumberTokens.Cmp(big.NewInt(MaxBoxContents)) > 0 {
		return nil, chain.Errorf(chain.KindInvalidArgument, "box contents must be between 1 and %d", MaxBoxContents)
	}
	if v.WalletAddress == (common.Address{}) {
		return nil, chain.Errorf(chain.KindInvalidArgument, "wallet address is zero")
	}

	box.ItemType = TypeOpenedBox
	chain.SetMap(tx, r.items, boxID, box)

	n := int(v.NumberTokens.Int64())
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		id, err := r.mint(tx, v.WalletAddress, TypeStarter, v.ID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	tx.Emit("OpenStarterBox", OpenStarterBoxEvent{User: v.WalletAddress, ID: v.ID, BoxID: boxID, TokenIDs: ids})
	return ids, nil
}

// ── Game channel ──────────────────────────────────────────────────────────────

// MintFromGame mints an item on behalf of the registered game process.
func (r *Registry) MintFromGame(tx *chain.Tx, to common.Address, id, itemType, extraType string) (uint64, error) {
	if err := r.RequireLogic(LogicV2, "MintFromGame"); err != nil {
		return 0, err
	}
	if err := r.onlyGame(tx); err != nil {
		return 0, err
	}
	tokenID, err := r.mint(tx, to, itemType, extraType)
	if err != nil {
		return 0, err
	}
	tx.Emit("MintFromGame", MintFromGameEvent{User: to, ID: id, TokenID: tokenID, ItemType: itemType, ExtraType: extraType})
	return tokenID, nil
}

// SetMetadata rewrites an item's type pair, e.g. after an in-game upgrade.
func (r *Registry) SetMetadata(tx *chain.Tx, tokenID uint64, itemType, extraType string) error {
	if err := r.RequireLogic(LogicV2, "SetMetadata"); err != nil {
		return err
	}
	if err := r.onlyGame(tx); err != nil {
		return err
	}
	it, ok := r.items[tokenID]
	if !ok {
		return errNotFound(tokenID)
	}
	it.ItemType, it.ExtraType = itemType, extraType
	chain.SetMap(tx, r.items, tokenID, it)
	tx.Emit("MetadataUpdate", MetadataUpdateEvent{TokenID: tokenID, ItemType: itemType, ExtraType: extraType})
	return nil
}

func (r *Registry) onlyGame(tx *chain.Tx) error {
	if r.gameAddress == (common.Address{}) || tx.Sender() != r.gameAddress {
		return chain.Errorf(chain.KindUnauthorized, "caller is not the game address")
	}
	return nil
}

// ── Owner configuration ───────────────────────────────────────────────────────

func (r *Registry) SetGameAddress(tx *chain.Tx, game common.Address) error {
	if err := r.OnlyOwner(tx); err != nil {
		return err
	}
	chain.Set(tx, &r.gameAddress, game)
	return nil
}

// SetPrice sets the floor price and the token it is denominated in (zero for
// native).
func (r *Registry) SetPrice(tx *chain.Tx, priceToken common.Address, price *big.Int) error {
	if err := r.OnlyOwner(tx); err != nil {
		return err
	}
	if price == nil || price.Sign() < 0 {
		return chain.Errorf(chain.KindInvalidArgument, "price must not be negative")
	}
	chain.Set(tx, &r.priceToken, priceToken)
	chain.Set(tx, &r.price, new(big.Int).Set(price))
	return nil
}

func (r *Registry) SetSigner(tx *chain.Tx, signer common.Address) error {
	if err := r.OnlyOwner(tx); err != nil {
		return err
	}
	r.engine.SetSigner(tx, signer)
	return nil
}

// Sweep sends the registry's native proceeds to to.
func (r *Registry) Sweep(tx *chain.Tx, to common.Address) (*big.Int, error) {
	if err := r.OnlyOwner(tx); err != nil {
		return nil, err
	}
	amount := tx.NativeBalance(tx.Self())
	if err := tx.Pay(to, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// ── Views ─────────────────────────────────────────────────────────────────────

func (r *Registry) Signer() common.Address      { return r.engine.Signer() }
func (r *Registry) GameAddress() common.Address { return r.gameAddress }
func (r *Registry) PriceToken() common.Address  { return r.priceToken }
func (r *Registry) Price() *big.Int             { return new(big.Int).Set(r.price) }
func (r *Registry) NonceUsed(nonce string) bool { return r.engine.Used(nonce) }

// NextTokenID is the id the next mint will receive.
func (r *Registry) NextTokenID() uint64 { return r.nextID }

func (r *Registry) Item(tokenID uint64) (Item, error) {
	it, ok := r.items[tokenID]
	if !ok {
		return Item{}, errNotFound(tokenID)
	}
	return it, nil
}

func (r *Registry) OwnerOf(tokenID uint64) (common.Address, error) {
	it, err := r.Item(tokenID)
	return it.Owner, err
}

func (r *Registry) BalanceOf(owner common.Address) uint64 { return r.balances[owner] }

// ItemsOf lists the items held by owner in token id order.
func (r *Registry) ItemsOf(owner common.Address) []Item {
	var out []Item
	for id := uint64(1); id < r.nextID; id++ {
		if it, ok := r.items[id]; ok && it.Owner == owner {
			out = append(out, it)
		}
	}
	return out
}

func (r *Registry) GetApproved(tokenID uint64) (common.Address, error) {
	if _, err := r.Item(tokenID); err != nil {
		return common.Address{}, err
	}
	return r.approvals[tokenID], nil
}

func (r *Registry) IsApprovedForAll(owner, operator common.Address) bool {
	return r.operators[operatorKey{owner, operator}]
}

// IsApprovedOrOwner reports whether spender may move tokenID.
func (r *Registry) IsApprovedOrOwner(spender common.Address, tokenID uint64) bool {
	it, ok := r.items[tokenID]
	if !ok {
		return false
	}
	return spender == it.Owner || r.approvals[tokenID] == spender || r.IsApprovedForAll(it.Owner, spender)
}

// ── Transfer surface ──────────────────────────────────────────────────────────

func (r *Registry) Approve(tx *chain.Tx, to common.Address, tokenID uint64) error {
	it, ok := r.items[tokenID]
	if !ok {
		return errNotFound(tokenID)
	}
	sender := tx.Sender()
	if sender != it.Owner && !r.IsApprovedForAll(it.Owner, sender) {
		return chain.Errorf(chain.KindUnauthorized, "caller is not token owner or approved for all")
	}
	chain.SetMap(tx, r.approvals, tokenID, to)
	tx.Emit("Approval", ApprovalEvent{Owner: it.Owner, Approved: to, TokenID: tokenID})
	return nil
}

func (r *Registry) SetApprovalForAll(tx *chain.Tx, operator common.Address, approved bool) error {
	owner := tx.Sender()
	if operator == owner {
		return chain.Errorf(chain.KindInvalidArgument, "approve to caller")
	}
	chain.SetMap(tx, r.operators, operatorKey{owner, operator}, approved)
	tx.Emit("ApprovalForAll", ApprovalForAllEvent{Owner: owner, Operator: operator, Approved: approved})
	return nil
}

// TransferFrom moves tokenID from from to to. The sender must be the owner,
// the token's approved address or an operator of the owner.
func (r *Registry) TransferFrom(tx *chain.Tx, from, to common.Address, tokenID uint64) error {
	it, ok := r.items[tokenID]
	if !ok {
		return errNotFound(tokenID)
	}
	if it.Owner != from {
		return chain.Errorf(chain.KindUnauthorized, "token %d is not owned by %s", tokenID, from.Hex())
	}
	if !r.IsApprovedOrOwner(tx.Sender(), tokenID) {
		return chain.Errorf(chain.KindUnauthorized, "caller is not token owner or approved")
	}
	if to == (common.Address{}) {
		return chain.Errorf(chain.KindInvalidArgument, "transfer to the zero address")
	}

	if _, approved := r.approvals[tokenID]; approved {
		chain.DeleteMap(tx, r.approvals, tokenID)
	}
	it.Owner = to
	chain.SetMap(tx, r.items, tokenID, it)
	chain.SetMap(tx, r.balances, from, r.balances[from]-1)
	chain.SetMap(tx, r.balances, to, r.balances[to]+1)
	tx.Emit("Transfer", TransferEvent{From: from, To: to, TokenID: tokenID})
	return nil
}

// ── internals ─────────────────────────────────────────────────────────────────

func (r *Registry) mint(tx *chain.Tx, to common.Address, itemType, extraType string) (uint64, error) {
	if to == (common.Address{}) {
		return 0, chain.Errorf(chain.KindInvalidArgument, "mint to the zero address")
	}
	id := r.nextID
	chain.Set(tx, &r.nextID, id+1)
	chain.SetMap(tx, r.items, id, Item{TokenID: id, Owner: to, ItemType: itemType, ExtraType: extraType})
	chain.SetMap(tx, r.balances, to, r.balances[to]+1)
	tx.Emit("Transfer", TransferEvent{From: common.Address{}, To: to, TokenID: id})
	return id, nil
}

// TokenID narrows a voucher's uint256 token id to the registry's id space.
func TokenID(x *big.Int) (uint64, error) {
	if x == nil || x.Sign() < 0 || !x.IsUint64() {
		return 0, chain.Errorf(chain.KindInvalidArgument, "token id out of range")
	}
	return x.Uint64(), nil
}

func errNotFound(tokenID uint64) error {
	return chain.Errorf(chain.KindTokenNotFound, "token %d does not exist", tokenID)
}

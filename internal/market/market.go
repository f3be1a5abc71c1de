// Package market implements the escrow-free item marketplace. Sellers list an
// item they keep custody of, having approved the marketplace on the item
// registry; buyers pay the exact price in native value and the marketplace
// moves the item and splits the payment between the fee collector and the
// seller.
package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/item"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

const Kind = "market"

// PerMillion is the denominator of the fee cut.
const PerMillion = 1_000_000

type Config struct {
	Signer        common.Address
	FeesCollector common.Address // zero defaults to the owner
	CutPerMillion uint64
}

// Listing is one offer. It becomes inactive exactly once, by Buy or Withdraw.
type Listing struct {
	ID          string         `json:"id"`
	Seller      common.Address `json:"seller"`
	ItemAddress common.Address `json:"itemAddress"`
	TokenID     uint64         `json:"tokenId"`
	ItemType    string         `json:"itemType"`
	ExtraType   string         `json:"extraType"`
	Price       *big.Int       `json:"price"`
	Active      bool           `json:"active"`
}

// Sale is the settlement of one Buy.
type Sale struct {
	Listing  Listing        `json:"listing"`
	Buyer    common.Address `json:"buyer"`
	Fee      *big.Int       `json:"fee"`
	Proceeds *big.Int       `json:"proceeds"`
}

type Market struct {
	chain.Base
	engine *voucher.Engine

	listings      map[string]Listing
	feesCollector common.Address
	cutPerMillion uint64
}

func Deploy(ctx context.Context, h *chain.Host, owner common.Address, cfg Config) (*Market, error) {
	if cfg.CutPerMillion > PerMillion {
		return nil, chain.Errorf(chain.KindInvalidArgument, "cut %d exceeds %d", cfg.CutPerMillion, PerMillion)
	}
	collector := cfg.FeesCollector
	if collector == (common.Address{}) {
		collector = owner
	}
	m := &Market{
		Base:          chain.NewBase(Kind, 1),
		listings:      make(map[string]Listing),
		feesCollector: collector,
		cutPerMillion: cfg.CutPerMillion,
	}
	_, err := h.Deploy(ctx, owner, m, func(tx *chain.Tx) error {
		m.engine = voucher.NewEngine(voucher.Domain{
			Name:              voucher.MarketDomainName,
			Version:           voucher.DomainVersion,
			ChainID:           h.ChainID(),
			VerifyingContract: tx.Self(),
		}, cfg.Signer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ── Operations ────────────────────────────────────────────────────────────────

// Offer lists the voucher's item for sale under the voucher id.
func (m *Market) Offer(tx *chain.Tx, o voucher.OrderItem, sig []byte) (Listing, error) {
	if err := m.engine.Consume(o, sig); err != nil {
		return Listing{}, err
	}
	seller := tx.Sender()
	if seller != o.WalletAddress {
		return Listing{}, chain.Errorf(chain.KindUnauthorized, "voucher was issued to %s", o.WalletAddress.Hex())
	}
	if o.Price == nil || o.Price.Sign() <= 0 {
		return Listing{}, chain.Errorf(chain.KindZeroAmount, "price must be greater than zero")
	}
	tokenID, err := item.TokenID(o.TokenID)
	if err != nil {
		return Listing{}, err
	}
	reg, err := registryAt(tx, o.ItemAddress)
	if err != nil {
		return Listing{}, err
	}
	holder, err := reg.OwnerOf(tokenID)
	if err != nil {
		return Listing{}, err
	}
	if holder != seller {
		return Listing{}, chain.Errorf(chain.KindUnauthorized, "token %d is not owned by the seller", tokenID)
	}
	if !reg.IsApprovedOrOwner(tx.Self(), tokenID) {
		return Listing{}, chain.Errorf(chain.KindUnauthorized, "marketplace is not approved for token %d", tokenID)
	}
	if l, ok := m.listings[o.ID]; ok && l.Active {
		return Listing{}, chain.Errorf(chain.KindDuplicateListing, "listing %q is already active", o.ID)
	}

	l := Listing{
		ID:          o.ID,
		Seller:      seller,
		ItemAddress: o.ItemAddress,
		TokenID:     tokenID,
		ItemType:    o.ItemType,
		ExtraType:   o.ExtraType,
		Price:       new(big.Int).Set(o.Price),
		Active:      true,
	}
	chain.SetMap(tx, m.listings, o.ID, l)
	tx.Emit("Offer", OfferEvent{Owner: seller, ID: o.ID, TokenID: tokenID, Price: l.Price})
	return l, nil
}

// Buy settles listing id. The attached value must equal the price.
func (m *Market) Buy(tx *chain.Tx, id string) (Sale, error) {
	l, ok := m.listings[id]
	if !ok {
		return Sale{}, chain.Errorf(chain.KindListingNotFound, "listing %q does not exist", id)
	}
	if !l.Active {
		return Sale{}, chain.Errorf(chain.KindListingInactive, "listing %q is no longer active", id)
	}
	if tx.Value().Cmp(l.Price) != 0 {
		return Sale{}, chain.Errorf(chain.KindWrongPayment, "attached %s, price is %s", tx.Value(), l.Price)
	}
	reg, err := registryAt(tx, l.ItemAddress)
	if err != nil {
		return Sale{}, err
	}
	buyer := tx.Sender()

	closed := l
	closed.Active = false
	chain.SetMap(tx, m.listings, id, closed)

	err = tx.Call(l.ItemAddress, nil, func(sub *chain.Tx) error {
		return reg.TransferFrom(sub, l.Seller, buyer, l.TokenID)
	})
	if err != nil {
		return Sale{}, err
	}
	fee := m.Fee(l.Price)
	proceeds := new(big.Int).Sub(l.Price, fee)
	if err := tx.Pay(m.feesCollector, fee); err != nil {
		return Sale{}, err
	}
	if err := tx.Pay(l.Seller, proceeds); err != nil {
		return Sale{}, err
	}
	tx.Emit("Buy", BuyEvent{Buyer: buyer, Seller: l.Seller, ID: id, TokenID: l.TokenID, Price: l.Price, Fee: fee})
	return Sale{Listing: closed, Buyer: buyer, Fee: fee, Proceeds: proceeds}, nil
}

// Withdraw cancels the sender's active listing.
func (m *Market) Withdraw(tx *chain.Tx, id string) error {
	l, ok := m.listings[id]
	if !ok {
		return chain.Errorf(chain.KindListingNotFound, "listing %q does not exist", id)
	}
	if tx.Sender() != l.Seller {
		return chain.Errorf(chain.KindUnauthorized, "caller is not the seller")
	}
	if !l.Active {
		return chain.Errorf(chain.KindListingInactive, "listing %q is no longer active", id)
	}
	l.Active = false
	chain.SetMap(tx, m.listings, id, l)
	tx.Emit("Withdraw", WithdrawEvent{Owner: l.Seller, ID: id})
	return nil
}

// ── Owner configuration ───────────────────────────────────────────────────────

func (m *Market) SetFeesCollectorAddress(tx *chain.Tx, collector common.Address) error {
	if err := m.OnlyOwner(tx); err != nil {
		return err
	}
	if collector == (common.Address{}) {
		return chain.Errorf(chain.KindInvalidArgument, "fees collector is the zero address")
	}
	chain.Set(tx, &m.feesCollector, collector)
	return nil
}

func (m *Market) SetFeesCollectorCutPerMillion(tx *chain.Tx, cut uint64) error {
	if err := m.OnlyOwner(tx); err != nil {
		return err
	}
	if cut > PerMillion {
		return chain.Errorf(chain.KindInvalidArgument, "cut %d exceeds %d", cut, PerMillion)
	}
	chain.Set(tx, &m.cutPerMillion, cut)
	return nil
}

func (m *Market) SetSigner(tx *chain.Tx, signer common.Address) error {
	if err := m.OnlyOwner(tx); err != nil {
		return err
	}
	m.engine.SetSigner(tx, signer)
	return nil
}

// ── Views ─────────────────────────────────────────────────────────────────────

func (m *Market) Domain() voucher.Domain        { return m.engine.Domain() }
func (m *Market) Signer() common.Address        { return m.engine.Signer() }
func (m *Market) NonceUsed(nonce string) bool   { return m.engine.Used(nonce) }
func (m *Market) FeesCollector() common.Address { return m.feesCollector }
func (m *Market) CutPerMillion() uint64         { return m.cutPerMillion }

func (m *Market) Listing(id string) (Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return Listing{}, chain.Errorf(chain.KindListingNotFound, "listing %q does not exist", id)
	}
	l.Price = new(big.Int).Set(l.Price)
	return l, nil
}

// Fee is ceil(price * cut / 1e6).
func (m *Market) Fee(price *big.Int) *big.Int {
	return Fee(price, m.cutPerMillion)
}

func Fee(price *big.Int, cutPerMillion uint64) *big.Int {
	num := new(big.Int).Mul(price, new(big.Int).SetUint64(cutPerMillion))
	num.Add(num, big.NewInt(PerMillion-1))
	return num.Quo(num, big.NewInt(PerMillion))
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

package voucher

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain names used by the deployed ledgers. The item registry and the game
// vault share a name; the marketplace has its own.
const (
	ItemDomainName   = "NFT-Voucher"
	MarketDomainName = "Marketplace-Item"
	DomainVersion    = "1"
)

// Domain is the EIP-712 domain a voucher is bound to.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Payload is a typed voucher body. Fields declares the EIP-712 member order;
// Message must carry exactly those members.
type Payload interface {
	PrimaryType() string
	Fields() []apitypes.Type
	Message() apitypes.TypedDataMessage
	NonceValue() string
}

// Signed pairs a payload with the authority signature over it.
type Signed[P Payload] struct {
	Data      P             `json:"data"`
	Signature hexutil.Bytes `json:"signature"`
}

// ItemVoucher authorizes minting one item to the redeemer. A zero
// PriceTokenAddress means the price is paid in native value.
type ItemVoucher struct {
	ID                string         `json:"id"`
	ItemType          string         `json:"itemType"`
	ExtraType         string         `json:"extraType"`
	Price             *big.Int       `json:"price"`
	PriceTokenAddress common.Address `json:"priceTokenAddress"`
	Nonce             string         `json:"nonce"`
}

func (v ItemVoucher) PrimaryType() string { return "ItemVoucherStruct" }

func (v ItemVoucher) Fields() []apitypes.Type {
	if v.PaysWithToken() {
		return []apitypes.Type{
			{Name: "id", Type: "string"},
			{Name: "itemType", Type: "string"},
			{Name: "extraType", Type: "string"},
			{Name: "price", Type: "uint256"},
			{Name: "priceTokenAddress", Type: "address"},
			{Name: "nonce", Type: "string"},
		}
	}
	return []apitypes.Type{
		{Name: "id", Type: "string"},
		{Name: "itemType", Type: "string"},
		{Name: "extraType", Type: "string"},
		{Name: "price", Type: "uint256"},
		{Name: "nonce", Type: "string"},
	}
}

func (v ItemVoucher) Message() apitypes.TypedDataMessage {
	m := apitypes.TypedDataMessage{
		"id":        v.ID,
		"itemType":  v.ItemType,
		"extraType": v.ExtraType,
		"price":     u256(v.Price),
		"nonce":     v.Nonce,
	}
	if v.PaysWithToken() {
		m["priceTokenAddress"] = v.PriceTokenAddress.Hex()
	}
	return m
}

func (v ItemVoucher) NonceValue() string { return v.Nonce }

// PaysWithToken reports whether the price is pulled from a fungible ledger.
func (v ItemVoucher) PaysWithToken() bool { return v.PriceTokenAddress != (common.Address{}) }

// StarterBox authorizes opening box TokenID into NumberTokens new items.
type StarterBox struct {
	WalletAddress common.Address `json:"walletAddress"`
	ID            string         `json:"id"`
	TokenID       *big.Int       `json:"tokenId"`
	NumberTokens  *big.Int       `json:"numberTokens"`
	Nonce         string         `json:"nonce"`
}

func (v StarterBox) PrimaryType() string { return "StarterBoxStruct" }

func (v StarterBox) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "walletAddress", Type: "address"},
		{Name: "id", Type: "string"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "numberTokens", Type: "uint256"},
		{Name: "nonce", Type: "string"},
	}
}

func (v StarterBox) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"walletAddress": v.WalletAddress.Hex(),
		"id":            v.ID,
		"tokenId":       u256(v.TokenID),
		"numberTokens":  u256(v.NumberTokens),
		"nonce":         v.Nonce,
	}
}

func (v StarterBox) NonceValue() string { return v.Nonce }

// WithdrawToken authorizes a payout from vault reserves to WalletAddress.
type WithdrawToken struct {
	WalletAddress common.Address `json:"walletAddress"`
	IsNativeToken bool           `json:"isNativeToken"`
	TokenAddress  common.Address `json:"tokenAddress"`
	Amount        *big.Int       `json:"amount"`
	Nonce         string         `json:"nonce"`
}

func (v WithdrawToken) PrimaryType() string { return "WithdrawTokenStruct" }

func (v WithdrawToken) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "walletAddress", Type: "address"},
		{Name: "isNativeToken", Type: "bool"},
		{Name: "tokenAddress", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "nonce", Type: "string"},
	}
}

func (v WithdrawToken) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"walletAddress": v.WalletAddress.Hex(),
		"isNativeToken": v.IsNativeToken,
		"tokenAddress":  v.TokenAddress.Hex(),
		"amount":        u256(v.Amount),
		"nonce":         v.Nonce,
	}
}

func (v WithdrawToken) NonceValue() string { return v.Nonce }

// DepositItem acknowledges that an item may be moved into vault custody.
type DepositItem struct {
	ID          string         `json:"id"`
	ItemAddress common.Address `json:"itemAddress"`
	TokenID     *big.Int       `json:"tokenId"`
	ItemType    string         `json:"itemType"`
	ExtraType   string         `json:"extraType"`
	Nonce       string         `json:"nonce"`
}

func (v DepositItem) PrimaryType() string { return "DepositItemStruct" }

func (v DepositItem) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "id", Type: "string"},
		{Name: "itemAddress", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "itemType", Type: "string"},
		{Name: "extraType", Type: "string"},
		{Name: "nonce", Type: "string"},
	}
}

func (v DepositItem) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"id":          v.ID,
		"itemAddress": v.ItemAddress.Hex(),
		"tokenId":     u256(v.TokenID),
		"itemType":    v.ItemType,
		"extraType":   v.ExtraType,
		"nonce":       v.Nonce,
	}
}

func (v DepositItem) NonceValue() string { return v.Nonce }

// WithdrawItem releases an item from the vault to WalletAddress. TokenID 0
// asks the vault to craft a fresh item instead.
type WithdrawItem struct {
	WalletAddress common.Address `json:"walletAddress"`
	ID            string         `json:"id"`
	ItemAddress   common.Address `json:"itemAddress"`
	TokenID       *big.Int       `json:"tokenId"`
	ItemType      string         `json:"itemType"`
	ExtraType     string         `json:"extraType"`
	Nonce         string         `json:"nonce"`
}

func (v WithdrawItem) PrimaryType() string { return "WithdrawItemStruct" }

func (v WithdrawItem) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "walletAddress", Type: "address"},
		{Name: "id", Type: "string"},
		{Name: "itemAddress", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "itemType", Type: "string"},
		{Name: "extraType", Type: "string"},
		{Name: "nonce", Type: "string"},
	}
}

func (v WithdrawItem) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"walletAddress": v.WalletAddress.Hex(),
		"id":            v.ID,
		"itemAddress":   v.ItemAddress.Hex(),
		"tokenId":       u256(v.TokenID),
		"itemType":      v.ItemType,
		"extraType":     v.ExtraType,
		"nonce":         v.Nonce,
	}
}

func (v WithdrawItem) NonceValue() string { return v.Nonce }

// OrderItem attests the terms of a marketplace listing.
type OrderItem struct {
	WalletAddress common.Address `json:"walletAddress"`
	ID            string         `json:"id"`
	ItemType      string         `json:"itemType"`
	ExtraType     string         `json:"extraType"`
	TokenID       *big.Int       `json:"tokenId"`
	ItemAddress   common.Address `json:"itemAddress"`
	Price         *big.Int       `json:"price"`
	Nonce         string         `json:"nonce"`
}

func (v OrderItem) PrimaryType() string { return "OrderItemStruct" }

func (v OrderItem) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "walletAddress", Type: "address"},
		{Name: "id", Type: "string"},
		{Name: "itemType", Type: "string"},
		{Name: "extraType", Type: "string"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "itemAddress", Type: "address"},
		{Name: "price", Type: "uint256"},
		{Name: "nonce", Type: "string"},
	}
}

func (v OrderItem) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"walletAddress": v.WalletAddress.Hex(),
		"id":            v.ID,
		"itemType":      v.ItemType,
		"extraType":     v.ExtraType,
		"tokenId":       u256(v.TokenID),
		"itemAddress":   v.ItemAddress.Hex(),
		"price":         u256(v.Price),
		"nonce":         v.Nonce,
	}
}

func (v OrderItem) NonceValue() string { return v.Nonce }

// u256 renders an amount for the typed-data encoder; nil encodes as zero.
func u256(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

// Package economy deploys the full set of game ledgers into one host: the
// configured currencies, the item registry, the game vault and the
// marketplace.
package economy

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/config"
	"github.com/0gfoundation/0g-game-economy/internal/item"
	"github.com/0gfoundation/0g-game-economy/internal/market"
	"github.com/0gfoundation/0g-game-economy/internal/token"
	"github.com/0gfoundation/0g-game-economy/internal/vault"
)

type Economy struct {
	Host   *chain.Host
	Owner  common.Address
	Tokens map[string]*token.Ledger // by symbol
	Items  *item.Registry
	Vault  *vault.Vault
	Market *market.Market
}

// Deploy credits the genesis allocation, then creates every ledger owned by
// owner and trusting authority as the voucher signer. The vault is installed
// as the registry's game address and the registry is upgraded to the
// configured logic version.
func Deploy(ctx context.Context, h *chain.Host, owner, authority common.Address, cfg *config.Config, log *zap.Logger) (*Economy, error) {
	e := &Economy{Host: h, Owner: owner, Tokens: make(map[string]*token.Ledger, len(cfg.Tokens))}

	if err := fundGenesis(h, cfg.Chain.Genesis, log); err != nil {
		return nil, err
	}

	for _, tc := range cfg.Tokens {
		capAmt, err := config.ParseAmount(tc.Cap)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", tc.Symbol, err)
		}
		tcfg := token.Config{Name: tc.Name, Symbol: tc.Symbol, Cap: capAmt}
		if tc.Premint != "" {
			if tcfg.Premint, err = config.ParseAmount(tc.Premint); err != nil {
				return nil, fmt.Errorf("token %s: %w", tc.Symbol, err)
			}
		}
		l, err := token.Deploy(ctx, h, owner, tcfg)
		if err != nil {
			return nil, fmt.Errorf("deploy token %s: %w", tc.Symbol, err)
		}
		e.Tokens[tc.Symbol] = l
		log.Info("token deployed", zap.String("symbol", tc.Symbol), zap.String("address", l.Address().Hex()))
	}

	v, err := vault.Deploy(ctx, h, owner, authority)
	if err != nil {
		return nil, fmt.Errorf("deploy vault: %w", err)
	}
	e.Vault = v
	log.Info("vault deployed", zap.String("address", v.Address().Hex()))

	price, err := config.ParseAmount(cfg.Items.Price)
	if err != nil {
		return nil, fmt.Errorf("item price: %w", err)
	}
	icfg := item.Config{Signer: authority, GameAddress: v.Address(), Price: price}
	if cfg.Items.PriceToken != "" {
		l, ok := e.Tokens[cfg.Items.PriceToken]
		if !ok {
			return nil, fmt.Errorf("item price token %s is not deployed", cfg.Items.PriceToken)
		}
		icfg.PriceToken = l.Address()
	}
	r, err := item.Deploy(ctx, h, owner, icfg)
	if err != nil {
		return nil, fmt.Errorf("deploy item registry: %w", err)
	}
	e.Items = r
	if want := chain.Version(cfg.Items.Logic); want > r.Logic() {
		if err := h.Upgrade(ctx, owner, r.Address(), want); err != nil {
			return nil, fmt.Errorf("upgrade item registry to v%d: %w", want, err)
		}
	}
	log.Info("item registry deployed", zap.String("address", r.Address().Hex()), zap.Uint8("logic", uint8(r.Logic())))

	mcfg := market.Config{Signer: authority, CutPerMillion: cfg.Market.CutPerMillion}
	if cfg.Market.FeesCollector != "" {
		if !common.IsHexAddress(cfg.Market.FeesCollector) {
			return nil, fmt.Errorf("invalid fees collector %q", cfg.Market.FeesCollector)
		}
		mcfg.FeesCollector = common.HexToAddress(cfg.Market.FeesCollector)
	}
	m, err := market.Deploy(ctx, h, owner, mcfg)
	if err != nil {
		return nil, fmt.Errorf("deploy market: %w", err)
	}
	e.Market = m
	log.Info("market deployed", zap.String("address", m.Address().Hex()))

	return e, nil
}

// Token looks up a currency by symbol.
func (e *Economy) Token(symbol string) (*token.Ledger, bool) {
	l, ok := e.Tokens[symbol]
	return l, ok
}

// Contracts maps a stable name to each deployed address.
func (e *Economy) Contracts() map[string]common.Address {
	out := map[string]common.Address{
		"items":  e.Items.Address(),
		"vault":  e.Vault.Address(),
		"market": e.Market.Address(),
	}
	for sym, l := range e.Tokens {
		out[sym] = l.Address()
	}
	return out
}

func fundGenesis(h *chain.Host, allocs []config.GenesisAlloc, log *zap.Logger) error {
	for i, g := range allocs {
		if !common.IsHexAddress(g.Address) {
			return fmt.Errorf("genesis[%d]: invalid address %q", i, g.Address)
		}
		amount, err := config.ParseAmount(g.Amount)
		if err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		addr := common.HexToAddress(g.Address)
		h.Fund(addr, amount)
		log.Info("genesis allocation", zap.String("address", addr.Hex()), zap.String("amount", amount.String()))
	}
	return nil
}

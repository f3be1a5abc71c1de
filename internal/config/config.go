package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Redis   RedisConfig
	Chain   ChainConfig
	Server  ServerConfig
	Tokens  []TokenConfig
	Items   ItemsConfig
	Market  MarketConfig
	Relayer RelayerConfig
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type ChainConfig struct {
	ChainID      int64  `mapstructure:"chain_id"`
	AuthorityKey string `mapstructure:"authority_key"`
	Owner        string `mapstructure:"owner"`

	// Genesis is credited as native value before any ledger is deployed.
	Genesis []GenesisAlloc `mapstructure:"genesis"`
	// GenesisAlloc holds extra allocations as "0xaddr=amount,..."; it is
	// appended to Genesis by Load.
	GenesisAlloc string `mapstructure:"genesis_alloc"`
}

type GenesisAlloc struct {
	Address string `mapstructure:"address"`
	Amount  string `mapstructure:"amount"`
}

type ServerConfig struct {
	Port     int `mapstructure:"port"`
	GRPCPort int `mapstructure:"grpc_port"`
}

// TokenConfig describes one fungible currency. Amounts are decimal strings in
// base units.
type TokenConfig struct {
	Name    string `mapstructure:"name"`
	Symbol  string `mapstructure:"symbol"`
	Cap     string `mapstructure:"cap"`
	Premint string `mapstructure:"premint"`
}

type ItemsConfig struct {
	// PriceToken is the symbol of the currency Price is denominated in;
	// empty for native.
	PriceToken string `mapstructure:"price_token"`
	Price      string `mapstructure:"price"`
	Logic      uint8  `mapstructure:"logic"`
}

type MarketConfig struct {
	FeesCollector string `mapstructure:"fees_collector"`
	CutPerMillion uint64 `mapstructure:"cut_per_million"`
}

type RelayerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BlockSec    int64  `mapstructure:"block_sec"`
	BatchSize   int    `mapstructure:"batch_size"`
	EventStream string `mapstructure:"event_stream"`
}

// 1,000,000 tokens at 18 decimals.
const defaultCap = "1000000000000000000000000"

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("chain.chain_id", 31337)
	v.SetDefault("tokens", []map[string]any{
		{"name": "RUNNOW", "symbol": "RUNNOW", "cap": defaultCap},
		{"name": "RUNGEM", "symbol": "RUNGEM", "cap": defaultCap},
	})
	v.SetDefault("items.logic", 2)
	v.SetDefault("items.price", "0")
	v.SetDefault("market.cut_per_million", 50000)
	v.SetDefault("relayer.enabled", true)
	v.SetDefault("relayer.block_sec", 5)
	v.SetDefault("relayer.batch_size", 50)
	v.SetDefault("relayer.event_stream", "chain:events")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"redis.addr":             "REDIS_ADDR",
		"redis.password":         "REDIS_PASSWORD",
		"chain.chain_id":         "CHAIN_ID",
		"chain.authority_key":    "AUTHORITY_SIGNING_KEY",
		"chain.owner":            "OWNER_ADDRESS",
		"chain.genesis_alloc":    "GENESIS_ALLOC",
		"server.port":            "PORT",
		"server.grpc_port":       "GRPC_PORT",
		"items.price_token":      "ITEM_PRICE_TOKEN",
		"items.price":            "ITEM_PRICE",
		"items.logic":            "ITEM_LOGIC",
		"market.fees_collector":  "FEES_COLLECTOR",
		"market.cut_per_million": "FEES_CUT_PER_MILLION",
		"relayer.enabled":        "RELAYER_ENABLED",
		"relayer.block_sec":      "RELAYER_BLOCK_SEC",
		"relayer.batch_size":     "RELAYER_BATCH_SIZE",
		"relayer.event_stream":   "EVENT_STREAM",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	extra, err := parseAllocs(cfg.Chain.GenesisAlloc)
	if err != nil {
		return nil, fmt.Errorf("GENESIS_ALLOC: %w", err)
	}
	cfg.Chain.Genesis = append(cfg.Chain.Genesis, extra...)

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("required config missing: CHAIN_ID")
	}
	if c.Market.CutPerMillion > 1_000_000 {
		return fmt.Errorf("FEES_CUT_PER_MILLION must be at most 1000000, got %d", c.Market.CutPerMillion)
	}
	if c.Items.Logic != 1 && c.Items.Logic != 2 {
		return fmt.Errorf("ITEM_LOGIC must be 1 or 2, got %d", c.Items.Logic)
	}
	if _, err := ParseAmount(c.Items.Price); err != nil {
		return fmt.Errorf("ITEM_PRICE: %w", err)
	}
	if len(c.Tokens) == 0 {
		return fmt.Errorf("at least one token must be configured")
	}
	seen := make(map[string]bool, len(c.Tokens))
	for i, t := range c.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("tokens[%d]: symbol is required", i)
		}
		if seen[t.Symbol] {
			return fmt.Errorf("tokens[%d]: duplicate symbol %s", i, t.Symbol)
		}
		seen[t.Symbol] = true
		if _, err := ParseAmount(t.Cap); err != nil {
			return fmt.Errorf("tokens[%d].cap: %w", i, err)
		}
		if t.Premint != "" {
			if _, err := ParseAmount(t.Premint); err != nil {
				return fmt.Errorf("tokens[%d].premint: %w", i, err)
			}
		}
	}
	for i, g := range c.Chain.Genesis {
		if !common.IsHexAddress(g.Address) {
			return fmt.Errorf("chain.genesis[%d]: invalid address %q", i, g.Address)
		}
		if _, err := ParseAmount(g.Amount); err != nil {
			return fmt.Errorf("chain.genesis[%d]: %w", i, err)
		}
	}
	if c.Items.PriceToken != "" && !seen[c.Items.PriceToken] {
		return fmt.Errorf("ITEM_PRICE_TOKEN %s is not a configured token", c.Items.PriceToken)
	}
	return nil
}

// ParseAmount parses a non-negative decimal amount. Empty is zero.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

func parseAllocs(s string) ([]GenesisAlloc, error) {
	var out []GenesisAlloc
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, amount, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not address=amount", part)
		}
		out = append(out, GenesisAlloc{Address: strings.TrimSpace(addr), Amount: strings.TrimSpace(amount)})
	}
	return out, nil
}

package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/FabianBoni/Flashloab-arbitrage/types"
)

type Config struct {
	// Chain and network settings
	ChainID          uint64 `json:"chain_id" yaml:"chain_id"`
	RPCEndpoint      string `json:"rpc_endpoint" yaml:"rpc_endpoint"`
	ExecutorContract string `json:"executor_contract" yaml:"executor_contract"`
	GasLimit         uint64 `json:"gas_limit" yaml:"gas_limit"`

	// Scan loop settings
	ScanInterval        time.Duration `json:"scan_interval" yaml:"scan_interval"`
	NetworkTimeout      time.Duration `json:"network_timeout" yaml:"network_timeout"`
	ConfirmTimeout      time.Duration `json:"confirm_timeout" yaml:"confirm_timeout"`
	StatsReportInterval time.Duration `json:"stats_report_interval" yaml:"stats_report_interval"`

	// Execution throttling
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`

	// Venue pacing
	RouterReadInterval time.Duration `json:"router_read_interval" yaml:"router_read_interval"`
	QuoteCacheTTL      time.Duration `json:"quote_cache_ttl" yaml:"quote_cache_ttl"`

	// Quote plausibility bound: implied price must lie within
	// [1/MaxPriceRatio, MaxPriceRatio].
	MaxPriceRatio int64 `json:"max_price_ratio" yaml:"max_price_ratio"`

	Fees       FeeModel   `json:"fees" yaml:"fees"`
	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`

	Routers   []RouterConfig         `json:"routers" yaml:"routers"`
	Exchanges []ExchangeConfig       `json:"exchanges" yaml:"exchanges"`
	Assets    map[string]AssetConfig `json:"assets" yaml:"assets"`
	Pairs     []PairConfig           `json:"pairs" yaml:"pairs"`

	// Supervisor settings
	MaxRestarts    int           `json:"max_restarts" yaml:"max_restarts"`
	RestartBackoff time.Duration `json:"restart_backoff" yaml:"restart_backoff"`

	// Observability
	PrometheusEnabled  bool   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	PrometheusEndpoint string `json:"prometheus_endpoint" yaml:"prometheus_endpoint"`

	// Notification settings (credentials come from the environment)
	TelegramEnabled bool `json:"telegram_enabled" yaml:"telegram_enabled"`

	// Internal components
	Logger *zap.Logger `json:"-" yaml:"-"`
}

// FeeModel holds the fee constants applied to every round trip. Rates are
// basis points of the input amount; the gas estimate is a flat amount in the
// smallest unit of the input asset.
type FeeModel struct {
	FlashLoanFeeBps   int64  `json:"flash_loan_fee_bps" yaml:"flash_loan_fee_bps"`
	SwapFeeBps        int64  `json:"swap_fee_bps" yaml:"swap_fee_bps"` // per leg
	SlippageBufferBps int64  `json:"slippage_buffer_bps" yaml:"slippage_buffer_bps"`
	GasCostEstimate   string `json:"gas_cost_estimate" yaml:"gas_cost_estimate"`

	gasCost *big.Int
}

// GasCost returns the parsed flat gas cost estimate.
func (f *FeeModel) GasCost() *big.Int {
	if f.gasCost == nil {
		return new(big.Int)
	}
	return f.gasCost
}

// Thresholds define the ascending execution tiers. An opportunity below
// QueuedBps is discarded; trade size scales with tier, not with profit.
type Thresholds struct {
	QueuedBps     int64 `json:"queued_bps" yaml:"queued_bps"`
	ImmediateBps  int64 `json:"immediate_bps" yaml:"immediate_bps"`
	AggressiveBps int64 `json:"aggressive_bps" yaml:"aggressive_bps"`

	BaseTradeAmount       string `json:"base_trade_amount" yaml:"base_trade_amount"`
	AggressiveTradeAmount string `json:"aggressive_trade_amount" yaml:"aggressive_trade_amount"`
	MaxTradeAmount        string `json:"max_trade_amount" yaml:"max_trade_amount"`

	baseAmount       *big.Int
	aggressiveAmount *big.Int
	maxAmount        *big.Int
}

// BaseAmount returns the parsed base-tier trade size, also used as the scan
// probe amount.
func (t *Thresholds) BaseAmount() *big.Int {
	if t.baseAmount == nil {
		return new(big.Int)
	}
	return t.baseAmount
}

// Classify maps a net profit in basis points to the tier with the highest
// threshold not exceeding it, plus that tier's trade size. Below the lowest
// threshold it returns TierNone and nil.
func (t *Thresholds) Classify(netProfitBps int64) (types.Tier, *big.Int) {
	switch {
	case netProfitBps >= t.AggressiveBps:
		return types.TierAggressive, t.maxAmount
	case netProfitBps >= t.ImmediateBps:
		return types.TierImmediate, t.aggressiveAmount
	case netProfitBps >= t.QueuedBps:
		return types.TierQueued, t.baseAmount
	default:
		return types.TierNone, nil
	}
}

type RouterConfig struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	Factory string `json:"factory" yaml:"factory"`
}

type ExchangeConfig struct {
	Name              string  `json:"name" yaml:"name"`
	BaseURL           string  `json:"base_url" yaml:"base_url"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
	APIKeyEnv         string  `json:"api_key_env" yaml:"api_key_env"`
	APISecretEnv      string  `json:"api_secret_env" yaml:"api_secret_env"`
}

type AssetConfig struct {
	Address  string `json:"address" yaml:"address"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

type PairConfig struct {
	Base  string `json:"base" yaml:"base"`
	Quote string `json:"quote" yaml:"quote"`
}

// DefaultConfig mirrors the safe defaults the scanner ships with. Thresholds
// sit above the total fee load so the lowest tier is already net-positive.
func DefaultConfig() *Config {
	return &Config{
		ChainID:             56,
		GasLimit:            600000,
		ScanInterval:        30 * time.Second,
		NetworkTimeout:      15 * time.Second,
		ConfirmTimeout:      180 * time.Second,
		StatsReportInterval: 30 * time.Minute,
		Cooldown:            30 * time.Second,
		RouterReadInterval:  2 * time.Second,
		QuoteCacheTTL:       10 * time.Second,
		MaxPriceRatio:       1_000_000,
		Fees: FeeModel{
			FlashLoanFeeBps:   20,
			SwapFeeBps:        15,
			SlippageBufferBps: 10,
			GasCostEstimate:   "300000000000000", // 0.0003 in 18-decimal units
		},
		Thresholds: Thresholds{
			QueuedBps:             50,
			ImmediateBps:          80,
			AggressiveBps:         150,
			BaseTradeAmount:       "100000000000000000",  // 0.1
			AggressiveTradeAmount: "500000000000000000",  // 0.5
			MaxTradeAmount:        "1000000000000000000", // 1.0
		},
		MaxRestarts:    5,
		RestartBackoff: 10 * time.Second,
	}
}

// LoadConfig reads a JSON or YAML config file, applies it over the defaults
// and validates the result. An empty path loads defaults only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse yaml config: %w", err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse json config: %w", err)
			}
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize parses the string-encoded amounts into big integers.
func (c *Config) Normalize() error {
	var err error
	if c.Fees.gasCost, err = parseAmount(c.Fees.GasCostEstimate, "fees.gas_cost_estimate"); err != nil {
		return err
	}
	if c.Thresholds.baseAmount, err = parseAmount(c.Thresholds.BaseTradeAmount, "thresholds.base_trade_amount"); err != nil {
		return err
	}
	if c.Thresholds.aggressiveAmount, err = parseAmount(c.Thresholds.AggressiveTradeAmount, "thresholds.aggressive_trade_amount"); err != nil {
		return err
	}
	if c.Thresholds.maxAmount, err = parseAmount(c.Thresholds.MaxTradeAmount, "thresholds.max_trade_amount"); err != nil {
		return err
	}
	return nil
}

func parseAmount(s, field string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", field, s)
	}
	return v, nil
}

// ValidateConfig checks the full configuration and reports every problem at
// once. Configuration errors are the only fatal errors in the system.
func (c *Config) ValidateConfig() error {
	var errors []string

	if c.ChainID == 0 {
		errors = append(errors, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" && len(c.Routers) > 0 {
		errors = append(errors, "rpc_endpoint must be specified when routers are configured")
	}
	if len(c.Routers)+len(c.Exchanges) < 2 {
		errors = append(errors, "at least two venues (routers + exchanges) must be configured")
	}
	if len(c.Pairs) == 0 {
		errors = append(errors, "at least one pair must be configured")
	}
	if c.ScanInterval <= 0 {
		errors = append(errors, "scan_interval must be positive")
	}
	if c.Cooldown <= 0 {
		errors = append(errors, "cooldown must be positive")
	}
	if c.MaxPriceRatio <= 1 {
		errors = append(errors, "max_price_ratio must exceed 1")
	}

	if c.Fees.FlashLoanFeeBps < 0 || c.Fees.SwapFeeBps < 0 || c.Fees.SlippageBufferBps < 0 {
		errors = append(errors, "fee rates must not be negative")
	}

	t := &c.Thresholds
	if t.QueuedBps <= 0 {
		errors = append(errors, "thresholds.queued_bps must be positive")
	}
	if !(t.QueuedBps < t.ImmediateBps && t.ImmediateBps < t.AggressiveBps) {
		errors = append(errors, "thresholds must be strictly ascending (queued < immediate < aggressive)")
	}
	if t.baseAmount == nil || t.baseAmount.Sign() <= 0 ||
		t.aggressiveAmount == nil || t.aggressiveAmount.Sign() <= 0 ||
		t.maxAmount == nil || t.maxAmount.Sign() <= 0 {
		errors = append(errors, "tier trade amounts must be positive")
	}

	for i, r := range c.Routers {
		if r.Name == "" {
			errors = append(errors, fmt.Sprintf("routers[%d]: name must be specified", i))
		}
		// An empty address is resolved later against the well-known
		// router table.
		if r.Address != "" && !common.IsHexAddress(r.Address) {
			errors = append(errors, fmt.Sprintf("routers[%d]: invalid address %q", i, r.Address))
		}
	}
	for i, e := range c.Exchanges {
		if e.Name == "" {
			errors = append(errors, fmt.Sprintf("exchanges[%d]: name must be specified", i))
		}
		if e.BaseURL == "" {
			errors = append(errors, fmt.Sprintf("exchanges[%d]: base_url must be specified", i))
		}
		if e.RequestsPerSecond <= 0 {
			errors = append(errors, fmt.Sprintf("exchanges[%d]: requests_per_second must be positive", i))
		}
	}
	for i, p := range c.Pairs {
		if _, ok := c.Assets[p.Base]; !ok {
			errors = append(errors, fmt.Sprintf("pairs[%d]: unknown base asset %q", i, p.Base))
		}
		if _, ok := c.Assets[p.Quote]; !ok {
			errors = append(errors, fmt.Sprintf("pairs[%d]: unknown quote asset %q", i, p.Quote))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("invalid configuration:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ResolvePairs builds the typed pair list from the asset table.
func (c *Config) ResolvePairs() []types.Pair {
	pairs := make([]types.Pair, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		base, quote := c.Assets[p.Base], c.Assets[p.Quote]
		pairs = append(pairs, types.Pair{
			Base:  types.Asset{Symbol: p.Base, Address: common.HexToAddress(base.Address), Decimals: base.Decimals},
			Quote: types.Asset{Symbol: p.Quote, Address: common.HexToAddress(quote.Address), Decimals: quote.Decimals},
		})
	}
	return pairs
}

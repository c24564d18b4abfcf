package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rustyeddy/quantsim/cost"
	"github.com/rustyeddy/quantsim/market"
	"github.com/rustyeddy/quantsim/risk"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. QUANTSIM_CASH.
const EnvPrefix = "QUANTSIM"

// Config represents the complete simulation configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Market   MarketConfig   `json:"market" yaml:"market"`
	Costs    CostsConfig    `json:"costs" yaml:"costs"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Sizing   SizingConfig   `json:"sizing" yaml:"sizing"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Cash     float64 `json:"cash" yaml:"cash"`
}

// MarketConfig names the traded pair and where its klines come from.
type MarketConfig struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Data   string `json:"data,omitempty" yaml:"data,omitempty"` // csv or csv.xz
}

type CostsConfig struct {
	Enabled  bool           `json:"enabled" yaml:"enabled"`
	Fee      FeeConfig      `json:"fee" yaml:"fee"`
	Slippage SlippageConfig `json:"slippage" yaml:"slippage"`
}

type FeeConfig struct {
	Kind   string         `json:"kind" yaml:"kind"` // none, fixed, percentage, tiered, maker_taker
	Amount float64        `json:"amount,omitempty" yaml:"amount,omitempty"`
	Rate   float64        `json:"rate,omitempty" yaml:"rate,omitempty"`
	Tiers  []cost.FeeTier `json:"tiers,omitempty" yaml:"tiers,omitempty"`
	Maker  float64        `json:"maker,omitempty" yaml:"maker,omitempty"`
	Taker  float64        `json:"taker,omitempty" yaml:"taker,omitempty"`
}

type SlippageConfig struct {
	Kind                  string  `json:"kind" yaml:"kind"` // none, fixed, percentage, volume, volatility, dynamic
	Amount                float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Rate                  float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
	Base                  float64 `json:"base,omitempty" yaml:"base,omitempty"`
	VolumeCoefficient     float64 `json:"volume_coefficient,omitempty" yaml:"volume_coefficient,omitempty"`
	ReferenceVolume       float64 `json:"reference_volume,omitempty" yaml:"reference_volume,omitempty"`
	VolatilityCoefficient float64 `json:"volatility_coefficient,omitempty" yaml:"volatility_coefficient,omitempty"`
}

// RiskConfig holds the account rules plus the protective levels placed
// around each entry. StopPct and RewardRisk of 0 disable protective orders.
type RiskConfig struct {
	risk.Rules `json:",inline" yaml:",inline"`

	StopPct    float64 `json:"stop_pct,omitempty" yaml:"stop_pct,omitempty"`
	RewardRisk float64 `json:"reward_risk,omitempty" yaml:"reward_risk,omitempty"`
}

type SizingConfig struct {
	Kind             string  `json:"kind" yaml:"kind"` // fixed_amount, fixed_percentage, kelly, pyramid, all_in
	Amount           float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Percentage       float64 `json:"percentage,omitempty" yaml:"percentage,omitempty"`
	WinRate          float64 `json:"win_rate,omitempty" yaml:"win_rate,omitempty"`
	ProfitLossRatio  float64 `json:"profit_loss_ratio,omitempty" yaml:"profit_loss_ratio,omitempty"`
	KellyFraction    float64 `json:"kelly_fraction,omitempty" yaml:"kelly_fraction,omitempty"`
	InitialPct       float64 `json:"initial_pct,omitempty" yaml:"initial_pct,omitempty"`
	ProfitThreshold  float64 `json:"profit_threshold,omitempty" yaml:"profit_threshold,omitempty"`
	MaxPct           float64 `json:"max_pct,omitempty" yaml:"max_pct,omitempty"`
	Increment        float64 `json:"increment,omitempty" yaml:"increment,omitempty"`
	MinPositionValue float64 `json:"min_position_value,omitempty" yaml:"min_position_value,omitempty"`
	MaxLeverage      float64 `json:"max_leverage,omitempty" yaml:"max_leverage,omitempty"`
}

// StrategyConfig contains strategy parameters
type StrategyConfig struct {
	Name string `json:"name" yaml:"name"` // sma_cross or hold
	Fast int    `json:"fast,omitempty" yaml:"fast,omitempty"`
	Slow int    `json:"slow,omitempty" yaml:"slow,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// envOverrides are the settings worth changing per run without editing
// the file. Unset variables leave the file value alone.
type envOverrides struct {
	AccountID    string  `envconfig:"ACCOUNT_ID"`
	Cash         float64 `envconfig:"CASH"`
	Symbol       string  `envconfig:"SYMBOL"`
	Data         string  `envconfig:"DATA"`
	CostsEnabled *bool   `envconfig:"COSTS_ENABLED"`
	JournalType  string  `envconfig:"JOURNAL_TYPE"`
	JournalDB    string  `envconfig:"JOURNAL_DB"`
	Addr         string  `envconfig:"ADDR"`
	LogLevel     string  `envconfig:"LOG_LEVEL"`
	LogFormat    string  `envconfig:"LOG_FORMAT"`
}

// ApplyEnv loads the given .env files (or ./.env) if present, then applies
// QUANTSIM_* variables on top of c. A missing .env file is not an error.
func (c *Config) ApplyEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return fmt.Errorf("process env: %w", err)
	}

	if o.AccountID != "" {
		c.Account.ID = o.AccountID
	}
	if o.Cash != 0 {
		c.Account.Cash = o.Cash
	}
	if o.Symbol != "" {
		c.Market.Symbol = o.Symbol
	}
	if o.Data != "" {
		c.Market.Data = o.Data
	}
	if o.CostsEnabled != nil {
		c.Costs.Enabled = *o.CostsEnabled
	}
	if o.JournalType != "" {
		c.Journal.Type = o.JournalType
	}
	if o.JournalDB != "" {
		c.Journal.DBPath = o.JournalDB
	}
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive")
	}
	if c.Market.Symbol == "" {
		return fmt.Errorf("market.symbol is required")
	}
	sym, err := market.ParseSymbol(c.Market.Symbol)
	if err != nil {
		return fmt.Errorf("market.symbol: %w", err)
	}
	if sym.Quote != strings.ToUpper(c.Account.Currency) {
		return fmt.Errorf("market.symbol quote %s must match account.currency %s", sym.Quote, c.Account.Currency)
	}
	if _, err := c.Costs.Calculator(); err != nil {
		return fmt.Errorf("costs: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if _, err := c.Sizing.PositionManager(); err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	switch c.Strategy.Name {
	case "hold":
	case "sma_cross":
		if c.Strategy.Fast <= 0 || c.Strategy.Slow <= c.Strategy.Fast {
			return fmt.Errorf("strategy sma_cross needs 0 < fast < slow")
		}
	default:
		return fmt.Errorf("unknown strategy: %q", c.Strategy.Name)
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	return nil
}

// Calculator builds the cost model named by the config.
func (c CostsConfig) Calculator() (cost.Calculator, error) {
	fk, err := cost.ParseFeeKind(c.Fee.Kind)
	if err != nil {
		return cost.Calculator{}, err
	}
	sk, err := cost.ParseSlippageKind(c.Slippage.Kind)
	if err != nil {
		return cost.Calculator{}, err
	}

	fee := cost.FeeModel{
		Kind:   fk,
		Amount: c.Fee.Amount,
		Rate:   c.Fee.Rate,
		Maker:  c.Fee.Maker,
		Taker:  c.Fee.Taker,
	}
	if fk == cost.TieredFee {
		fee = cost.Tiered(c.Fee.Tiers...)
	}

	calc := cost.Calculator{
		Fee: fee,
		Slippage: cost.SlippageModel{
			Kind:                  sk,
			Amount:                c.Slippage.Amount,
			Rate:                  c.Slippage.Rate,
			Base:                  c.Slippage.Base,
			VolumeCoefficient:     c.Slippage.VolumeCoefficient,
			ReferenceVolume:       c.Slippage.ReferenceVolume,
			VolatilityCoefficient: c.Slippage.VolatilityCoefficient,
		},
	}
	if err := calc.Validate(); err != nil {
		return cost.Calculator{}, err
	}
	return calc, nil
}

func (r RiskConfig) Validate() error {
	frac := func(name string, v *float64) error {
		if v != nil && (*v <= 0 || *v > 1) {
			return fmt.Errorf("risk.%s must be between 0 and 1", name)
		}
		return nil
	}
	if err := frac("max_drawdown", r.MaxDrawdown); err != nil {
		return err
	}
	if err := frac("max_daily_loss", r.MaxDailyLoss); err != nil {
		return err
	}
	if r.MaxConsecutiveLosses != nil && *r.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("risk.max_consecutive_losses must be positive")
	}
	if r.MinEquity != nil && *r.MinEquity < 0 {
		return fmt.Errorf("risk.min_equity must not be negative")
	}
	if r.StopPct < 0 || r.StopPct >= 1 {
		return fmt.Errorf("risk.stop_pct must be in [0,1)")
	}
	if r.RewardRisk < 0 {
		return fmt.Errorf("risk.reward_risk must not be negative")
	}
	return nil
}

// Protective reports whether entries get a stop and target.
func (r RiskConfig) Protective() bool {
	return r.StopPct > 0 && r.RewardRisk > 0
}

// PositionManager builds the sizing policy named by the config.
func (s SizingConfig) PositionManager() (risk.PositionManager, error) {
	kind, err := risk.ParseSizingKind(s.Kind)
	if err != nil {
		return risk.PositionManager{}, err
	}
	pm := risk.PositionManager{
		Strategy: risk.Sizing{
			Kind:            kind,
			Amount:          s.Amount,
			Percentage:      s.Percentage,
			WinRate:         s.WinRate,
			ProfitLossRatio: s.ProfitLossRatio,
			KellyFraction:   s.KellyFraction,
			InitialPct:      s.InitialPct,
			ProfitThreshold: s.ProfitThreshold,
			MaxPct:          s.MaxPct,
			Increment:       s.Increment,
		},
		MinPositionValue: s.MinPositionValue,
		MaxLeverage:      s.MaxLeverage,
	}
	if err := pm.Strategy.Validate(); err != nil {
		return risk.PositionManager{}, err
	}
	if s.MinPositionValue < 0 || s.MaxLeverage < 0 {
		return risk.PositionManager{}, fmt.Errorf("%w: min_position_value and max_leverage must not be negative", risk.ErrInvalidParameter)
	}
	return pm, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "SIM-001",
			Currency: "USDT",
			Cash:     10000,
		},
		Market: MarketConfig{
			Symbol: "BTC/USDT",
		},
		Costs: CostsConfig{
			Enabled:  true,
			Fee:      FeeConfig{Kind: "percentage", Rate: 0.001},
			Slippage: SlippageConfig{Kind: "percentage", Rate: 0.0005},
		},
		Risk: RiskConfig{
			Rules: risk.Rules{
				MaxDrawdown:          risk.Float(0.2),
				MaxDailyLoss:         risk.Float(0.05),
				MaxConsecutiveLosses: risk.Int(5),
			},
			StopPct:    0.02,
			RewardRisk: 2,
		},
		Sizing: SizingConfig{
			Kind:       "fixed_percentage",
			Percentage: 0.1,
		},
		Strategy: StrategyConfig{
			Name: "sma_cross",
			Fast: 10,
			Slow: 30,
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

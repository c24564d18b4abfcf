package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/quantsim/cost"
	"github.com/rustyeddy/quantsim/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "USDT", cfg.Account.Currency)
	assert.Equal(t, 10000.0, cfg.Account.Cash)
	assert.Equal(t, "BTC/USDT", cfg.Market.Symbol)
	assert.True(t, cfg.Risk.Protective())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	with := func(mut func(c *Config)) *Config {
		c := Default()
		mut(c)
		return c
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			config:  Default(),
			wantErr: false,
		},
		{
			name:    "missing currency",
			config:  &Config{Account: AccountConfig{Cash: 100000}},
			wantErr: true,
			errMsg:  "account.currency is required",
		},
		{
			name:    "negative cash",
			config:  with(func(c *Config) { c.Account.Cash = -1000 }),
			wantErr: true,
			errMsg:  "account.cash must be positive",
		},
		{
			name:    "malformed symbol",
			config:  with(func(c *Config) { c.Market.Symbol = "BTCUSDT" }),
			wantErr: true,
			errMsg:  "market.symbol",
		},
		{
			name:    "quote differs from currency",
			config:  with(func(c *Config) { c.Market.Symbol = "BTC/EUR" }),
			wantErr: true,
			errMsg:  "must match account.currency",
		},
		{
			name:    "lower case symbol is fine",
			config:  with(func(c *Config) { c.Market.Symbol = "eth/usdt" }),
			wantErr: false,
		},
		{
			name:    "unknown fee kind",
			config:  with(func(c *Config) { c.Costs.Fee.Kind = "flat-ish" }),
			wantErr: true,
			errMsg:  "costs",
		},
		{
			name:    "negative slippage",
			config:  with(func(c *Config) { c.Costs.Slippage.Rate = -0.1 }),
			wantErr: true,
			errMsg:  "costs",
		},
		{
			name:    "drawdown above one",
			config:  with(func(c *Config) { c.Risk.MaxDrawdown = risk.Float(1.5) }),
			wantErr: true,
			errMsg:  "risk.max_drawdown must be between 0 and 1",
		},
		{
			name:    "zero loss streak",
			config:  with(func(c *Config) { c.Risk.MaxConsecutiveLosses = risk.Int(0) }),
			wantErr: true,
			errMsg:  "risk.max_consecutive_losses must be positive",
		},
		{
			name:    "kelly without ratio",
			config:  with(func(c *Config) { c.Sizing = SizingConfig{Kind: "kelly", WinRate: 0.5, KellyFraction: 1} }),
			wantErr: true,
			errMsg:  "sizing",
		},
		{
			name:    "sma fast not below slow",
			config:  with(func(c *Config) { c.Strategy.Fast = 30 }),
			wantErr: true,
			errMsg:  "0 < fast < slow",
		},
		{
			name:    "unknown strategy",
			config:  with(func(c *Config) { c.Strategy.Name = "moon" }),
			wantErr: true,
			errMsg:  "unknown strategy",
		},
		{
			name:    "sqlite without path",
			config:  with(func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }),
			wantErr: true,
			errMsg:  "journal db_path required for SQLite type",
		},
		{
			name:    "no journal",
			config:  with(func(c *Config) { c.Journal = JournalConfig{} }),
			wantErr: false,
		},
		{
			name:    "bad log level",
			config:  with(func(c *Config) { c.Log.Level = "loud" }),
			wantErr: true,
			errMsg:  "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Costs.Fee = FeeConfig{Kind: "tiered", Tiers: []cost.FeeTier{{Threshold: 0, Rate: 0.002}, {Threshold: 10000, Rate: 0.001}}}
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))

			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Account, loaded.Account)
			assert.Equal(t, cfg.Market, loaded.Market)
			assert.Equal(t, cfg.Costs, loaded.Costs)
			assert.Equal(t, cfg.Risk, loaded.Risk)
			assert.Equal(t, cfg.Sizing, loaded.Sizing)
			assert.Equal(t, cfg.Strategy, loaded.Strategy)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	doc := `
account:
  currency: USDT
  cash: 5000
market:
  symbol: ETH/USDT
costs:
  enabled: true
  fee:
    kind: maker_taker
    maker: 0.0002
    taker: 0.0004
  slippage:
    kind: volume
    base: 0.0005
    volume_coefficient: 0.001
    reference_volume: 100
risk:
  max_drawdown: 0.3
  min_equity: 1000
sizing:
  kind: kelly
  win_rate: 0.55
  profit_loss_ratio: 1.5
  kelly_fraction: 0.5
strategy:
  name: hold
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Risk.MaxDrawdown)
	assert.Equal(t, 0.3, *cfg.Risk.MaxDrawdown)
	assert.Nil(t, cfg.Risk.MaxDailyLoss)
	assert.False(t, cfg.Risk.Protective())

	calc, err := cfg.Costs.Calculator()
	require.NoError(t, err)
	assert.Equal(t, cost.MakerTakerFee, calc.Fee.Kind)
	assert.Equal(t, cost.VolumeSlippage, calc.Slippage.Kind)

	pm, err := cfg.Sizing.PositionManager()
	require.NoError(t, err)
	size, err := pm.PositionSize(10000, 0)
	require.NoError(t, err)
	// f* = (0.55*1.5 - 0.45) / 1.5 = 0.25, half of it
	assert.InDelta(t, 1250, size, 1e-6)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("QUANTSIM_CASH", "2500")
	t.Setenv("QUANTSIM_SYMBOL", "sol/usdt")
	t.Setenv("QUANTSIM_COSTS_ENABLED", "false")
	t.Setenv("QUANTSIM_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, 2500.0, cfg.Account.Cash)
	assert.Equal(t, "sol/usdt", cfg.Market.Symbol)
	assert.False(t, cfg.Costs.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("QUANTSIM_DATA=klines.csv.xz\nQUANTSIM_ADDR=127.0.0.1:9090\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("QUANTSIM_DATA")
		os.Unsetenv("QUANTSIM_ADDR")
	})

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(path))
	assert.Equal(t, "klines.csv.xz", cfg.Market.Data)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
}

func TestApplyEnvRejectsBadValue(t *testing.T) {
	t.Setenv("QUANTSIM_CASH", "lots")

	cfg := Default()
	assert.Error(t, cfg.ApplyEnv(filepath.Join(t.TempDir(), "missing.env")))
}

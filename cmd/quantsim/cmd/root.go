package cmd

import (
	"fmt"

	"github.com/rustyeddy/quantsim/config"
	"github.com/rustyeddy/quantsim/pkg/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quantsim",
	Short: "A simulated exchange and portfolio risk engine",
	Long: `Quantsim is a paper trading exchange and research platform written in Go.

It provides tools for:
  - Backtesting strategies against historical klines
  - Paper trading sessions over an HTTP and websocket API
  - Trading costs, risk rules and position sizing
  - Managing trade journals, equity curves and backtest results

Settings come from a YAML or JSON file, then from a .env file and
QUANTSIM_* environment variables.`,
	SilenceUsage: true,
}

var (
	cfgFile string
	envFile string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file (default ./.env when present)")
}

// loadConfig reads the config file, applies the environment and configures
// the default logger.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := cfg.ApplyEnv(files...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

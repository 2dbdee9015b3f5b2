package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/config"
	"github.com/rustyeddy/futbridge/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "futbridge",
	Short: "Futures trading gateway bridge",
	Long: `futbridge connects a trading host to a futures trading gateway.

It provides tools for:
  - Generating and inspecting the trading server directory
  - Running the bridge against the built-in simulated gateway
  - Querying the order and P&L journal
  - Watching a running bridge through its status monitor`,
	SilenceUsage: true,
}

var cfgFile string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (defaults are used when empty)")
}

// loadConfig reads --config, or returns the defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(cfgFile)
	if err != nil {
		return nil, errors.WithMessagef(err, "config %s", cfgFile)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	log, atom, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, atom, errors.WithMessage(err, "logger")
	}
	return log, atom, nil
}

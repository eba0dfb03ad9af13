package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/listingsearch/internal/config"
	"github.com/dshills/listingsearch/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "listingsearch",
	Short: "Marketplace listing search and ranking engine",
	Long: `Searches active marketplace listings with multi-criterion filters,
relevance scoring and selectable sort orders, serving from an in-memory
snapshot that is refreshed at most once per cache TTL.

Configuration is read from --config (or LISTINGSEARCH_CONFIG), then
overridden by LISTINGSEARCH_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		cfg = loaded
		logger = logging.New(cfg.LogLevel)
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/listingsearch/internal/config"
	"github.com/dshills/listingsearch/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server. Requests arrive on stdin and
responses are written to stdout; logs go to stderr.

When a config file is in use it is watched, and changes to the [scoring]
table are applied without a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	server, err := mcp.NewServer(mcp.Deps{
		Searcher: a.searcher,
		Store:    a.store,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if cfg.Path != "" {
		go func() {
			err := config.Watch(ctx, cfg.Path,
				func(next *config.Config) {
					if err := a.searcher.SetWeights(next.Scoring); err != nil {
						logger.Warn("ignoring scoring weights from reloaded config", "error", err)
					}
				},
				func(err error) {
					logger.Warn("config reload failed", "path", cfg.Path, "error", err)
				})
			if err != nil {
				logger.Warn("config watch stopped", "error", err)
			}
		}()
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready", "version", version, "storage", cfg.Storage.Driver)
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
		return nil
	case err := <-errChan:
		return err
	}
}

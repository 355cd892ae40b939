package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iwinswap/lockable-token-registry-go/cmd/registryd/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var (
		cfgFile    string
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:     "registryd",
		Short:   "Run a lockable token registry host",
		Version: version,
		Long: `Run a host for lockable token registries.

Every registry listed in the configuration file is created empty and served under the
"registry" JSON-RPC namespace. HTTP requests are served on /, WebSocket connections
(required for event subscriptions) on /ws, and Prometheus metrics on /metrics.

Mutating methods take the acting address as an argument and do not authenticate it.
Only expose registryd on trusted networks.

Example:
  registryd --config registryd.yaml
  registryd --config registryd.yaml --addr :8545`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			level, err := cfg.Level()
			if err != nil {
				return err
			}
			rootLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			promRegistry := prometheus.NewRegistry()
			promRegistry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			d, err := newDaemon(cfg, rootLogger, promRegistry)
			if err != nil {
				rootLogger.Error("Failed to initialize daemon", "error", err)
				return err
			}
			return d.serve(ctx)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "registryd.yaml", "Path to the configuration file.")
	cmd.Flags().StringVar(&listenAddr, "addr", "", "Address to listen on (overrides config)")
	cmd.SetContext(context.Background())
	return cmd
}

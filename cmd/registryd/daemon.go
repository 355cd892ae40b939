package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/Iwinswap/lockable-token-registry-go/cmd/registryd/config"
	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable"
	"github.com/Iwinswap/lockable-token-registry-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// daemon owns the host, its registries and the network endpoints serving them.
type daemon struct {
	cfg        *config.DaemonConfig
	logger     *slog.Logger
	gatherer   prometheus.Gatherer
	host       *chain.Host
	registries []*lockable.Registry
	rpc        *rpc.Server
}

func newDaemon(cfg *config.DaemonConfig, logger *slog.Logger, reg *prometheus.Registry) (*daemon, error) {
	host, err := chain.NewHost(chain.Config{
		MaxCallDepth: cfg.MaxCallDepth,
		Logger:       logger.With("component", "host"),
		Registry:     reg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating host: %w", err)
	}

	dir := lockable.NewDirectory()
	registries := make([]*lockable.Registry, 0, len(cfg.Registries))
	for _, rc := range cfg.Registries {
		r, err := lockable.New(lockable.Config{
			Address:    rc.Address,
			Controller: rc.Controller,
			Directory:  dir,
			Logger:     logger.With("component", "registry", "registry", rc.Name),
			Registry:   reg,
		})
		if err != nil {
			return nil, fmt.Errorf("creating registry %q: %w", rc.Name, err)
		}
		registries = append(registries, r)
		logger.Info("Registry created", "name", rc.Name, "address", rc.Address, "controller", rc.Controller)
	}

	api, err := server.NewAPI(server.Config{
		Host:       host,
		Registries: registries,
		Logger:     logger.With("component", "jsonrpc-server"),
		BufferSize: cfg.EventBuffer,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API: %w", err)
	}
	rpcServer, err := server.NewServer(api)
	if err != nil {
		return nil, fmt.Errorf("registering API: %w", err)
	}

	return &daemon{
		cfg:        cfg,
		logger:     logger,
		gatherer:   reg,
		host:       host,
		registries: registries,
		rpc:        rpcServer,
	}, nil
}

func (d *daemon) metricsHandler() http.Handler {
	return promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})
}

// handler routes JSON-RPC over HTTP on /, WebSocket on /ws and, unless a separate
// metrics listener is configured, metrics on /metrics.
func (d *daemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", d.rpc.WebsocketHandler([]string{"*"}))
	if d.cfg.MetricsAddr == "" {
		mux.Handle("/metrics", d.metricsHandler())
	}
	mux.Handle("/", d.rpc)
	return mux
}

// serve runs the listeners until ctx is done, then shuts them down gracefully.
func (d *daemon) serve(ctx context.Context) error {
	servers := []*http.Server{{Addr: d.cfg.ListenAddr, Handler: d.handler()}}
	if d.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.metricsHandler())
		servers = append(servers, &http.Server{Addr: d.cfg.MetricsAddr, Handler: mux})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, started := range servers {
				_ = started.Close()
			}
			return fmt.Errorf("listening on %s: %w", srv.Addr, err)
		}
		d.logger.Info("Listening", "addr", ln.Addr().String())
		go func(srv *http.Server) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		d.logger.Info("Shutting down")
	case serveErr = <-errCh:
		d.logger.Error("Server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("Shutdown incomplete", "addr", srv.Addr, "error", err)
		}
	}
	d.rpc.Stop()
	d.logger.Info("Stopped", "committed_tx", d.host.Committed())
	return serveErr
}

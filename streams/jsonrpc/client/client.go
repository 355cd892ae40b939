package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable"
	"github.com/Iwinswap/lockable-token-registry-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DialFunc opens a connection to the server.
type DialFunc func(ctx context.Context, url string) (*rpc.Client, error)

// Config holds the configuration for the client.
type Config struct {
	URL        string
	Logger     Logger
	BufferSize uint
	// Registries filters the stream. Empty means every registry the server serves.
	Registries []common.Address
	// Dial defaults to rpc.DialContext.
	Dial DialFunc
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Client keeps an event subscription to a registry server alive across reconnects.
type Client struct {
	url        string
	registries []common.Address
	dial       DialFunc
	eventCh    chan lockable.Event
	errCh      chan error
	logger     Logger
	lastTx     uint64
}

// NewClient creates a new client and starts the connection and subscription manager.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dial := cfg.Dial
	if dial == nil {
		dial = rpc.DialContext
	}

	client := &Client{
		url:        cfg.URL,
		registries: cfg.Registries,
		dial:       dial,
		eventCh:    make(chan lockable.Event, cfg.BufferSize),
		errCh:      make(chan error, 1),
		logger:     cfg.Logger,
	}

	go client.run(ctx)
	return client, nil
}

// Events returns a read-only channel for receiving committed events.
func (c *Client) Events() <-chan lockable.Event {
	return c.eventCh
}

// Err returns a read-only channel for receiving fatal (unrecoverable) errors.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// run handles the entire lifecycle of the client, including reconnection.
func (c *Client) run(ctx context.Context) {
	defer close(c.eventCh)
	defer close(c.errCh)
	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			c.logger.Info("Client context canceled, shutting down.")
			return
		}

		c.logger.Info("Attempting to connect to RPC server", "url", c.url)
		rpcClient, err := c.dial(ctx, c.url)
		if err != nil {
			c.logger.Error("Failed to connect to RPC server, will retry...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("Successfully connected to RPC server.")
		reconnectDelay = initialReconnectDelay

		err = c.subscribeAndProcess(ctx, rpcClient)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context canceled during subscription, shutting down.", "error", err)
				return
			}
			if errors.Is(err, rpc.ErrNotificationsUnsupported) {
				c.errCh <- err
				return
			}
			c.logger.Error("Subscription failed, will reconnect...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
		}
	}
}

// subscribeAndProcess handles the subscription and forwarding of events.
func (c *Client) subscribeAndProcess(ctx context.Context, rpcClient *rpc.Client) error {
	defer rpcClient.Close()

	rawCh := make(chan lockable.Event)
	sub, err := rpcClient.Subscribe(ctx, server.RpcNamespace, rawCh, server.EventsSubscriptionMethod, c.registries)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Successfully subscribed. Waiting for events...")
	for {
		select {
		case ev := <-rawCh:
			c.processEvent(ev)
			select {
			case c.eventCh <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}

// processEvent tracks the commit sequence. Several events share a transaction; a jump of
// more than one means commits happened while the stream was down or filtered out.
func (c *Client) processEvent(ev lockable.Event) {
	if c.lastTx != 0 && ev.Tx > c.lastTx+1 {
		c.logger.Debug("Commit sequence gap", "last_tx", c.lastTx, "tx", ev.Tx)
	}
	if ev.Tx > c.lastTx {
		c.lastTx = ev.Tx
	}

	token := ""
	if ev.Token != nil {
		token = ev.Token.Dec()
	}
	c.logger.Debug("Received event", "kind", ev.Kind, "registry", ev.Registry, "token", token, "tx", ev.Tx)
}

// sleep waits for d or until ctx is done. It reports whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Package chain is the execution environment registries run in.
//
// A Host serializes top-level calls: one logical thread of control per external call, with
// no internal parallelism. Cross-registry calls made during a top-level call run
// synchronously on the same goroutine and may reenter the original registry. The host gives
// every top-level call all-or-nothing semantics through an undo journal (see Tx) and carries
// the caller identity and call depth in the context.
package chain

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxCallDepth bounds nested cross-registry calls when Config.MaxCallDepth is zero.
const DefaultMaxCallDepth = 64

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for a Host.
type Config struct {
	MaxCallDepth int
	Logger       Logger
	Registry     prometheus.Registerer
}

func (c *Config) validate() error {
	if c.MaxCallDepth < 0 {
		return errors.New("config: MaxCallDepth must not be negative")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	return nil
}

// Host runs top-level calls atomically.
type Host struct {
	mu       sync.RWMutex
	maxDepth int
	seq      uint64
	logger   Logger
	metrics  *Metrics
}

// NewHost creates a Host.
func NewHost(cfg Config) (*Host, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	maxDepth := cfg.MaxCallDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxCallDepth
	}
	return &Host{
		maxDepth: maxDepth,
		logger:   cfg.Logger,
		metrics:  NewMetrics(cfg.Registry),
	}, nil
}

// MaxCallDepth returns the nested call limit.
func (h *Host) MaxCallDepth() int {
	return h.maxDepth
}

// Execute runs fn as one atomic unit on behalf of sender.
//
// If fn returns an error (or panics) every mutation recorded on the transaction is undone,
// newest first, and no commit hook runs. On success the commit hooks run in registration
// order after the host lock has been released.
func (h *Host) Execute(ctx context.Context, sender common.Address, fn func(ctx context.Context) error) (err error) {
	if _, ok := frameFrom(ctx); ok {
		return ErrNestedExecution
	}
	if sender == (common.Address{}) {
		return ErrZeroSender
	}

	start := time.Now()
	h.mu.Lock()
	tx := &Tx{id: h.seq + 1}
	committed := false
	defer func() {
		if !committed {
			tx.revert()
		}
		h.mu.Unlock()
		h.metrics.observe(committed, tx.maxDepth, time.Since(start))
		if committed {
			for _, hook := range tx.commit {
				hook()
			}
		}
	}()

	if err = fn(withFrame(ctx, &frame{host: h, tx: tx, sender: sender})); err != nil {
		h.logger.Debug("Transaction reverted", "tx", tx.id, "sender", sender, "undo_records", len(tx.undo), "error", err)
		return err
	}

	h.seq = tx.id
	committed = true
	h.logger.Debug("Transaction committed", "tx", tx.id, "sender", sender, "undo_records", len(tx.undo), "max_depth", tx.maxDepth)
	return nil
}

// View runs fn as a read-only call on behalf of sender. Mutations inside fn fail with
// ErrReadOnly.
func (h *Host) View(ctx context.Context, sender common.Address, fn func(ctx context.Context) error) error {
	if _, ok := frameFrom(ctx); ok {
		return ErrNestedExecution
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(withFrame(ctx, &frame{host: h, sender: sender}))
}

// Committed returns the sequence number of the last committed transaction.
func (h *Host) Committed() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

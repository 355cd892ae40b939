package lockable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/indexledger"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/ownership"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the configuration for a Registry.
type Config struct {
	// Address is the registry's identity. Peers see it as the sender of every call the
	// registry makes to them.
	Address common.Address
	// Controller may mint tokens and administer flags and whitelists.
	Controller common.Address
	Directory  *Directory
	Logger     Logger
	Registry   prometheus.Registerer
}

func (c *Config) validate() error {
	if c.Address == (common.Address{}) {
		return errors.New("config: Address is required")
	}
	if c.Controller == (common.Address{}) {
		return errors.New("config: Controller is required")
	}
	if c.Directory == nil {
		return errors.New("config: Directory is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	return nil
}

// record holds the fixed-size part of a token's bookkeeping. A missing record is the zero
// record: transferable, burnable, unlocked.
type record struct {
	nonTransferable bool
	nonBurnable     bool
	lockedTo        tokenref.Ref
}

// Registry hosts a set of tokens that can depend on, and be locked to, tokens in any
// registry reachable through its Directory.
//
// Dependencies and locked-from entries live in flat index tables keyed by token id, so
// burning a token erases all of its child entries explicitly. Whitelists are kept apart
// from the record and survive a burn.
type Registry struct {
	addr       common.Address
	controller common.Address
	dir        *Directory
	logger     Logger
	metrics    *Metrics
	feed       event.Feed

	ledger     *ownership.Ledger
	records    map[uint256.Int]record
	deps       *indexledger.Ledger[uint256.Int, tokenref.Ref]
	lockedFrom *indexledger.Ledger[uint256.Int, tokenref.Ref]
	whitelists map[uint256.Int]mapset.Set[common.Address]
}

// New creates a registry and registers it in cfg.Directory.
func New(cfg Config) (*Registry, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		addr:       cfg.Address,
		controller: cfg.Controller,
		dir:        cfg.Directory,
		logger:     cfg.Logger,
		ledger:     ownership.NewLedger(),
		records:    make(map[uint256.Int]record),
		deps:       indexledger.New[uint256.Int, tokenref.Ref](),
		lockedFrom: indexledger.New[uint256.Int, tokenref.Ref](),
		whitelists: make(map[uint256.Int]mapset.Set[common.Address]),
	}
	if err := cfg.Directory.Register(r); err != nil {
		return nil, err
	}
	// A duplicate address must fail in Register, not in MustRegister.
	r.metrics = NewMetrics(cfg.Registry, cfg.Address.Hex())
	return r, nil
}

// Address returns the registry's identity.
func (r *Registry) Address() common.Address {
	return r.addr
}

// Controller returns the registry's administrator.
func (r *Registry) Controller() common.Address {
	return r.controller
}

// ref returns the Ref naming a local token.
func (r *Registry) ref(id *uint256.Int) tokenref.Ref {
	return tokenref.New(r.addr, id)
}

// peer resolves a registry and derives the context for calling it on this registry's
// behalf.
func (r *Registry) peer(ctx context.Context, addr common.Address, method string) (TokenRegistry, context.Context, error) {
	p, err := r.dir.Resolve(addr)
	if err != nil {
		return nil, nil, err
	}
	callCtx, err := chain.Call(ctx, r.addr)
	if err != nil {
		return nil, nil, err
	}
	r.metrics.peerCall(method)
	return p, callCtx, nil
}

func (r *Registry) observe(op string, start time.Time, err *error) {
	r.metrics.observe(op, start, *err)
}

func (r *Registry) setRecord(tx *chain.Tx, key uint256.Int, rec record) {
	prev, existed := r.records[key]
	if rec == (record{}) {
		delete(r.records, key)
	} else {
		r.records[key] = rec
	}
	tx.OnRevert(func() {
		if existed {
			r.records[key] = prev
		} else {
			delete(r.records, key)
		}
	})
}

func (r *Registry) setLockedTo(tx *chain.Tx, key uint256.Int, ref tokenref.Ref) {
	rec := r.records[key]
	rec.lockedTo = ref
	r.setRecord(tx, key, rec)
}

func checkID(id *uint256.Int) error {
	if id == nil {
		return ErrNilTokenID
	}
	return nil
}

// mutation opens the transaction for a state-changing call.
func mutation(ctx context.Context, ids ...*uint256.Int) (*chain.Tx, error) {
	for _, id := range ids {
		if err := checkID(id); err != nil {
			return nil, err
		}
	}
	tx, err := chain.CurrentTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("lockable: %w", err)
	}
	return tx, nil
}

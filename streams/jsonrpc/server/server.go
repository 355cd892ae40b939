// Package server exposes a set of registries over JSON-RPC.
//
// Every method is served under the "registry" namespace. Queries run as read-only host
// calls. Mutating methods take the acting address as their first argument and run as one
// atomic host call on its behalf; the server does not authenticate that address, so it is
// meant for development hosts and trusted networks only.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

const (
	// RpcNamespace is the namespace under which the API is registered.
	RpcNamespace = "registry"
	// EventsSubscriptionMethod streams committed events.
	EventsSubscriptionMethod = "events"

	// ErrorCodeBase is the JSON-RPC error code of an unclassified failure. Classified
	// failures use ErrorCodeBase - Kind.
	ErrorCodeBase = -32000
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the API.
type Config struct {
	Host       *chain.Host
	Registries []*lockable.Registry
	Logger     Logger
	BufferSize uint
}

func (c *Config) validate() error {
	if c.Host == nil {
		return errors.New("config: Host is required")
	}
	if len(c.Registries) == 0 {
		return errors.New("config: at least one registry is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	return nil
}

// API is the JSON-RPC service.
type API struct {
	host       *chain.Host
	registries map[common.Address]*lockable.Registry
	order      []common.Address
	logger     Logger
	bufferSize uint
}

// Receipt acknowledges a committed mutation.
type Receipt struct {
	Tx uint64 `json:"tx"`
}

// NewAPI creates the service.
func NewAPI(cfg Config) (*API, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	api := &API{
		host:       cfg.Host,
		registries: make(map[common.Address]*lockable.Registry, len(cfg.Registries)),
		logger:     cfg.Logger,
		bufferSize: cfg.BufferSize,
	}
	for _, r := range cfg.Registries {
		if _, ok := api.registries[r.Address()]; ok {
			return nil, fmt.Errorf("config: duplicate registry %s", r.Address().Hex())
		}
		api.registries[r.Address()] = r
		api.order = append(api.order, r.Address())
	}
	return api, nil
}

// NewServer creates an rpc.Server with api registered under RpcNamespace.
func NewServer(api *API) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(RpcNamespace, api); err != nil {
		return nil, err
	}
	return srv, nil
}

// Error carries a protocol failure across the wire together with its class.
type Error struct {
	err  error
	kind lockable.Kind
}

func (e *Error) Error() string  { return e.err.Error() }
func (e *Error) Unwrap() error  { return e.err }
func (e *Error) ErrorCode() int { return ErrorCodeBase - int(e.kind) }
func (e *Error) ErrorData() any { return e.kind.String() }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{err: err, kind: lockable.KindOf(err)}
}

func (a *API) registry(addr common.Address) (*lockable.Registry, error) {
	r, ok := a.registries[addr]
	if !ok {
		return nil, wrap(fmt.Errorf("%w: %s", lockable.ErrUnknownRegistry, addr.Hex()))
	}
	return r, nil
}

func (a *API) view(ctx context.Context, registry common.Address, fn func(context.Context, *lockable.Registry) error) error {
	r, err := a.registry(registry)
	if err != nil {
		return err
	}
	return wrap(a.host.View(ctx, common.Address{}, func(ctx context.Context) error {
		return fn(ctx, r)
	}))
}

func (a *API) execute(ctx context.Context, sender, registry common.Address, op string, fn func(context.Context, *lockable.Registry) error) (*Receipt, error) {
	r, err := a.registry(registry)
	if err != nil {
		return nil, err
	}
	var receipt Receipt
	err = a.host.Execute(ctx, sender, func(ctx context.Context) error {
		tx, err := chain.CurrentTx(ctx)
		if err != nil {
			return err
		}
		receipt.Tx = tx.ID()
		return fn(ctx, r)
	})
	if err != nil {
		a.logger.Debug("Call reverted", "op", op, "registry", registry, "sender", sender, "error", err)
		return nil, wrap(err)
	}
	a.logger.Debug("Call committed", "op", op, "registry", registry, "sender", sender, "tx", receipt.Tx)
	return &receipt, nil
}

// Registries returns the addresses of the served registries.
func (a *API) Registries() []common.Address {
	out := make([]common.Address, len(a.order))
	copy(out, a.order)
	return out
}

// Token returns the state of one token.
func (a *API) Token(ctx context.Context, registry common.Address, id *uint256.Int) (view lockable.TokenView, err error) {
	err = a.view(ctx, registry, func(_ context.Context, r *lockable.Registry) error {
		view, err = r.Token(id)
		return err
	})
	return view, err
}

// Snapshot returns every token of a registry.
func (a *API) Snapshot(ctx context.Context, registry common.Address) (views []lockable.TokenView, err error) {
	err = a.view(ctx, registry, func(_ context.Context, r *lockable.Registry) error {
		views = r.Snapshot()
		return nil
	})
	return views, err
}

// OwnerOf returns the owner of a token.
func (a *API) OwnerOf(ctx context.Context, registry common.Address, id *uint256.Int) (owner common.Address, err error) {
	err = a.view(ctx, registry, func(ctx context.Context, r *lockable.Registry) error {
		owner, err = r.OwnerOf(ctx, id)
		return err
	})
	return owner, err
}

// IsTokenTransferable reports whether a token and all of its dependencies are transferable.
func (a *API) IsTokenTransferable(ctx context.Context, registry common.Address, id *uint256.Int) (ok bool, err error) {
	err = a.view(ctx, registry, func(ctx context.Context, r *lockable.Registry) error {
		ok, err = r.IsTokenTransferable(ctx, id)
		return err
	})
	return ok, err
}

// IsTokenBurnable reports whether a token and all of its dependencies are burnable.
func (a *API) IsTokenBurnable(ctx context.Context, registry common.Address, id *uint256.Int) (ok bool, err error) {
	err = a.view(ctx, registry, func(ctx context.Context, r *lockable.Registry) error {
		ok, err = r.IsTokenBurnable(ctx, id)
		return err
	})
	return ok, err
}

// IsTokenTransferableToAddress is the whitelist-aware transferability check.
func (a *API) IsTokenTransferableToAddress(ctx context.Context, registry common.Address, id *uint256.Int, dest common.Address) (ok bool, err error) {
	err = a.view(ctx, registry, func(ctx context.Context, r *lockable.Registry) error {
		ok, err = r.IsTokenTransferableToAddress(ctx, id, dest)
		return err
	})
	return ok, err
}

// IsLocked returns the token a token is locked to. It is null when the token is unlocked.
func (a *API) IsLocked(ctx context.Context, registry common.Address, id *uint256.Int) (locked *tokenref.Ref, err error) {
	err = a.view(ctx, registry, func(ctx context.Context, r *lockable.Registry) error {
		ref, err := r.IsLocked(ctx, id)
		if err == nil && !ref.IsZero() {
			locked = &ref
		}
		return err
	})
	return locked, err
}

// Mint creates a token. Controller only.
func (a *API) Mint(ctx context.Context, sender, registry, to common.Address, id *uint256.Int) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "mint", func(ctx context.Context, r *lockable.Registry) error {
		return r.Mint(ctx, to, id)
	})
}

// TransferFrom moves a token together with every token locked to it.
func (a *API) TransferFrom(ctx context.Context, sender, registry, from, to common.Address, id *uint256.Int) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "transfer", func(ctx context.Context, r *lockable.Registry) error {
		return r.TransferFrom(ctx, from, to, id)
	})
}

// Burn destroys a token together with every token locked to it.
func (a *API) Burn(ctx context.Context, sender, registry common.Address, id *uint256.Int) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "burn", func(ctx context.Context, r *lockable.Registry) error {
		return r.Burn(ctx, id)
	})
}

// Approve sets the single-token approval.
func (a *API) Approve(ctx context.Context, sender, registry, to common.Address, id *uint256.Int) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "approve", func(ctx context.Context, r *lockable.Registry) error {
		return r.Approve(ctx, to, id)
	})
}

// SetApprovalForAll sets or clears an operator of sender.
func (a *API) SetApprovalForAll(ctx context.Context, sender, registry, operator common.Address, approved bool) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "set_approval_for_all", func(ctx context.Context, r *lockable.Registry) error {
		return r.SetApprovalForAll(ctx, operator, approved)
	})
}

// AddDependency makes a token depend on ref.
func (a *API) AddDependency(ctx context.Context, sender, registry common.Address, id *uint256.Int, ref tokenref.Ref) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "add_dependency", func(ctx context.Context, r *lockable.Registry) error {
		return r.AddDependency(ctx, id, ref)
	})
}

// RemoveDependency drops ref from a token's dependencies.
func (a *API) RemoveDependency(ctx context.Context, sender, registry common.Address, id *uint256.Int, ref tokenref.Ref) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "remove_dependency", func(ctx context.Context, r *lockable.Registry) error {
		return r.RemoveDependency(ctx, id, ref)
	})
}

// Lock locks a token to ref.
func (a *API) Lock(ctx context.Context, sender, registry common.Address, id *uint256.Int, ref tokenref.Ref) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "lock", func(ctx context.Context, r *lockable.Registry) error {
		return r.Lock(ctx, id, ref)
	})
}

// Unlock releases a token. Only the locking registry may call it.
func (a *API) Unlock(ctx context.Context, sender, registry common.Address, id *uint256.Int) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "unlock", func(ctx context.Context, r *lockable.Registry) error {
		return r.Unlock(ctx, id)
	})
}

// RemoveLockedToken releases a token locked to id.
func (a *API) RemoveLockedToken(ctx context.Context, sender, registry common.Address, id *uint256.Int, from tokenref.Ref) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "remove_locked_token", func(ctx context.Context, r *lockable.Registry) error {
		return r.RemoveLockedToken(ctx, id, from.Registry, from.ID())
	})
}

// SetTransferable sets a token's own transferability flag. Controller only.
func (a *API) SetTransferable(ctx context.Context, sender, registry common.Address, id *uint256.Int, transferable bool) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "set_transferable", func(ctx context.Context, r *lockable.Registry) error {
		return r.SetTransferable(ctx, id, transferable)
	})
}

// SetBurnable sets a token's own burnability flag. Controller only.
func (a *API) SetBurnable(ctx context.Context, sender, registry common.Address, id *uint256.Int, burnable bool) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "set_burnable", func(ctx context.Context, r *lockable.Registry) error {
		return r.SetBurnable(ctx, id, burnable)
	})
}

// AddToWhitelist lets a token move to dest regardless of its own flag. Controller only.
func (a *API) AddToWhitelist(ctx context.Context, sender, registry common.Address, id *uint256.Int, dest common.Address) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "add_to_whitelist", func(ctx context.Context, r *lockable.Registry) error {
		return r.AddToWhitelist(ctx, id, dest)
	})
}

// RemoveFromWhitelist removes dest from a token's whitelist. Controller only.
func (a *API) RemoveFromWhitelist(ctx context.Context, sender, registry common.Address, id *uint256.Int, dest common.Address) (*Receipt, error) {
	return a.execute(ctx, sender, registry, "remove_from_whitelist", func(ctx context.Context, r *lockable.Registry) error {
		return r.RemoveFromWhitelist(ctx, id, dest)
	})
}

// Events streams committed events of the given registries, or of all served registries
// when none is named.
func (a *API) Events(ctx context.Context, registries []common.Address) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}
	if len(registries) == 0 {
		registries = a.order
	}

	var scope event.SubscriptionScope
	ch := make(chan lockable.Event, a.bufferSize)
	for _, addr := range registries {
		r, err := a.registry(addr)
		if err != nil {
			scope.Close()
			return nil, err
		}
		scope.Track(r.SubscribeEvents(ch))
	}

	rpcSub := notifier.CreateSubscription()
	a.logger.Info("Event subscription opened", "id", rpcSub.ID, "registries", len(registries))

	go func() {
		defer scope.Close()
		for {
			select {
			case ev := <-ch:
				if err := notifier.Notify(rpcSub.ID, ev); err != nil {
					a.logger.Warn("Failed to notify subscriber", "id", rpcSub.ID, "error", err)
					return
				}
			case err := <-rpcSub.Err():
				a.logger.Info("Event subscription closed", "id", rpcSub.ID, "error", err)
				return
			}
		}
	}()

	return rpcSub, nil
}

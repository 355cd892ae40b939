package client

import (
	"context"
	"errors"

	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable/tokenview"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/Iwinswap/lockable-token-registry-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

// Registry is a typed wrapper around the registry JSON-RPC namespace.
type Registry struct {
	c       *rpc.Client
	indexer *tokenview.Indexer
}

// NewRegistry wraps an open connection.
func NewRegistry(c *rpc.Client) *Registry {
	return &Registry{c: c, indexer: tokenview.New()}
}

// DialRegistry connects to url and wraps the connection.
func DialRegistry(ctx context.Context, url string) (*Registry, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewRegistry(c), nil
}

// Close closes the underlying connection.
func (r *Registry) Close() {
	r.c.Close()
}

func (r *Registry) call(ctx context.Context, result any, method string, args ...any) error {
	return r.c.CallContext(ctx, result, server.RpcNamespace+"_"+method, args...)
}

// KindOf recovers the class of an error returned by the server.
func KindOf(err error) lockable.Kind {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return lockable.KindOf(err)
	}
	kind := lockable.Kind(server.ErrorCodeBase - rpcErr.ErrorCode())
	if kind < lockable.KindUnknown || kind > lockable.KindResourceLimit {
		return lockable.KindUnknown
	}
	return kind
}

// Registries returns the addresses the server serves.
func (r *Registry) Registries(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	err := r.call(ctx, &out, "registries")
	return out, err
}

// Token returns the state of one token.
func (r *Registry) Token(ctx context.Context, registry common.Address, id *uint256.Int) (lockable.TokenView, error) {
	var out lockable.TokenView
	err := r.call(ctx, &out, "token", registry, id)
	return out, err
}

// Snapshot returns every token of a registry.
func (r *Registry) Snapshot(ctx context.Context, registry common.Address) ([]lockable.TokenView, error) {
	var out []lockable.TokenView
	err := r.call(ctx, &out, "snapshot", registry)
	return out, err
}

// Index fetches a snapshot and indexes it.
func (r *Registry) Index(ctx context.Context, registry common.Address) (*tokenview.IndexableTokenSet, error) {
	views, err := r.Snapshot(ctx, registry)
	if err != nil {
		return nil, err
	}
	return r.indexer.Index(registry, views), nil
}

// OwnerOf returns the owner of a token.
func (r *Registry) OwnerOf(ctx context.Context, registry common.Address, id *uint256.Int) (common.Address, error) {
	var out common.Address
	err := r.call(ctx, &out, "ownerOf", registry, id)
	return out, err
}

// IsTokenTransferable reports whether a token and all of its dependencies are transferable.
func (r *Registry) IsTokenTransferable(ctx context.Context, registry common.Address, id *uint256.Int) (bool, error) {
	var out bool
	err := r.call(ctx, &out, "isTokenTransferable", registry, id)
	return out, err
}

// IsTokenBurnable reports whether a token and all of its dependencies are burnable.
func (r *Registry) IsTokenBurnable(ctx context.Context, registry common.Address, id *uint256.Int) (bool, error) {
	var out bool
	err := r.call(ctx, &out, "isTokenBurnable", registry, id)
	return out, err
}

// IsTokenTransferableToAddress is the whitelist-aware transferability check.
func (r *Registry) IsTokenTransferableToAddress(ctx context.Context, registry common.Address, id *uint256.Int, dest common.Address) (bool, error) {
	var out bool
	err := r.call(ctx, &out, "isTokenTransferableToAddress", registry, id, dest)
	return out, err
}

// IsLocked returns the token a token is locked to, or the zero Ref.
func (r *Registry) IsLocked(ctx context.Context, registry common.Address, id *uint256.Int) (tokenref.Ref, error) {
	var out *tokenref.Ref
	if err := r.call(ctx, &out, "isLocked", registry, id); err != nil {
		return tokenref.Ref{}, err
	}
	if out == nil {
		return tokenref.Ref{}, nil
	}
	return *out, nil
}

// Mint creates a token on behalf of sender.
func (r *Registry) Mint(ctx context.Context, sender, registry, to common.Address, id *uint256.Int) (server.Receipt, error) {
	return r.execute(ctx, "mint", sender, registry, to, id)
}

// TransferFrom moves a token on behalf of sender.
func (r *Registry) TransferFrom(ctx context.Context, sender, registry, from, to common.Address, id *uint256.Int) (server.Receipt, error) {
	return r.execute(ctx, "transferFrom", sender, registry, from, to, id)
}

// Burn destroys a token on behalf of sender.
func (r *Registry) Burn(ctx context.Context, sender, registry common.Address, id *uint256.Int) (server.Receipt, error) {
	return r.execute(ctx, "burn", sender, registry, id)
}

// AddDependency makes a token depend on ref.
func (r *Registry) AddDependency(ctx context.Context, sender, registry common.Address, id *uint256.Int, ref tokenref.Ref) (server.Receipt, error) {
	return r.execute(ctx, "addDependency", sender, registry, id, ref)
}

// RemoveDependency drops ref from a token's dependencies.
func (r *Registry) RemoveDependency(ctx context.Context, sender, registry common.Address, id *uint256.Int, ref tokenref.Ref) (server.Receipt, error) {
	return r.execute(ctx, "removeDependency", sender, registry, id, ref)
}

// Lock locks a token to ref.
func (r *Registry) Lock(ctx context.Context, sender, registry common.Address, id *uint256.Int, ref tokenref.Ref) (server.Receipt, error) {
	return r.execute(ctx, "lock", sender, registry, id, ref)
}

// RemoveLockedToken releases from, which is locked to id.
func (r *Registry) RemoveLockedToken(ctx context.Context, sender, registry common.Address, id *uint256.Int, from tokenref.Ref) (server.Receipt, error) {
	return r.execute(ctx, "removeLockedToken", sender, registry, id, from)
}

// SetTransferable sets a token's own transferability flag.
func (r *Registry) SetTransferable(ctx context.Context, sender, registry common.Address, id *uint256.Int, transferable bool) (server.Receipt, error) {
	return r.execute(ctx, "setTransferable", sender, registry, id, transferable)
}

// SetBurnable sets a token's own burnability flag.
func (r *Registry) SetBurnable(ctx context.Context, sender, registry common.Address, id *uint256.Int, burnable bool) (server.Receipt, error) {
	return r.execute(ctx, "setBurnable", sender, registry, id, burnable)
}

// AddToWhitelist lets a token move to dest regardless of its own flag.
func (r *Registry) AddToWhitelist(ctx context.Context, sender, registry common.Address, id *uint256.Int, dest common.Address) (server.Receipt, error) {
	return r.execute(ctx, "addToWhitelist", sender, registry, id, dest)
}

func (r *Registry) execute(ctx context.Context, method string, args ...any) (server.Receipt, error) {
	var out server.Receipt
	err := r.call(ctx, &out, method, args...)
	return out, err
}

package lockable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/indexledger"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AddDependency makes id depend on ref: id can only move or be burned while ref can.
func (r *Registry) AddDependency(ctx context.Context, id *uint256.Int, ref tokenref.Ref) (err error) {
	defer r.observe("add_dependency", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	if err := r.requireApprovedOrOwner(ctx, "add_dependency", id); err != nil {
		return err
	}
	if ref == r.ref(id) {
		return ErrSelfReference
	}
	if _, err := r.dir.Resolve(ref.Registry); err != nil {
		return err
	}

	key := *id
	if _, err := r.deps.Add(key, ref); err != nil {
		if errors.Is(err, indexledger.ErrAlreadyPresent) {
			return fmt.Errorf("%w: %s", ErrDuplicateDependency, ref)
		}
		return err
	}
	tx.OnRevert(func() { _, _ = r.deps.Remove(key, ref) })

	r.emit(tx, Event{Kind: EventDependencyAdded, Token: id, Ref: refPtr(ref)})
	r.logger.Debug("Dependency added", "token", id.Dec(), "dependency", ref.String(), "sender", chain.Sender(ctx))
	return nil
}

// RemoveDependency drops ref from id's dependencies.
//
// The owner (or an approved party) may only do so while ref is currently transferable and
// burnable, so a restrictive dependency cannot be escaped. The registry hosting ref may
// always sever the relationship.
func (r *Registry) RemoveDependency(ctx context.Context, id *uint256.Int, ref tokenref.Ref) (err error) {
	defer r.observe("remove_dependency", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	key := *id
	if !r.deps.Contains(key, ref) {
		return fmt.Errorf("%w: %s", ErrNoSuchDependency, ref)
	}

	if chain.Sender(ctx) != ref.Registry {
		if err := r.requireApprovedOrOwner(ctx, "remove_dependency", id); err != nil {
			return err
		}
		free, err := r.isFree(ctx, ref)
		if err != nil {
			return err
		}
		if !free {
			return r.deny(ctx, "remove_dependency", id, "dependency "+ref.String()+" is currently restrictive")
		}
	}

	pos, err := r.deps.Remove(key, ref)
	if err != nil {
		return err
	}
	tx.OnRevert(func() { _ = r.deps.Reinsert(key, ref, pos) })

	r.emit(tx, Event{Kind: EventDependencyRemoved, Token: id, Ref: refPtr(ref)})
	r.logger.Debug("Dependency removed", "token", id.Dec(), "dependency", ref.String(), "sender", chain.Sender(ctx))
	return nil
}

// isFree reports whether ref is currently both transferable and burnable.
func (r *Registry) isFree(ctx context.Context, ref tokenref.Ref) (bool, error) {
	ok, err := r.ask(ctx, ref, transferQuery, nil)
	if err != nil || !ok {
		return false, err
	}
	return r.ask(ctx, ref, burnQuery, nil)
}

// IsDependent reports whether id depends on ref.
func (r *Registry) IsDependent(id *uint256.Int, ref tokenref.Ref) bool {
	return r.deps.Contains(*id, ref)
}

// Dependencies returns id's dependencies in stored order.
func (r *Registry) Dependencies(id *uint256.Int) []tokenref.Ref {
	return r.deps.Items(*id)
}

// IsTransferable reports id's own transferability flag.
func (r *Registry) IsTransferable(id *uint256.Int) bool {
	return !r.records[*id].nonTransferable
}

// IsBurnable reports id's own burnability flag.
func (r *Registry) IsBurnable(id *uint256.Int) bool {
	return !r.records[*id].nonBurnable
}

// IsTransferableToAddress reports whether id's own flag admits a transfer to dest: the
// token is transferable or dest is on its whitelist.
func (r *Registry) IsTransferableToAddress(id *uint256.Int, dest common.Address) bool {
	return r.IsTransferable(id) || r.IsWhitelisted(id, dest)
}

// IsDependentTransferable reports whether every dependency of id is transferable.
func (r *Registry) IsDependentTransferable(ctx context.Context, id *uint256.Int) (bool, error) {
	return r.dependenciesAllow(ctx, id, transferQuery, nil)
}

// IsDependentBurnable reports whether every dependency of id is burnable.
func (r *Registry) IsDependentBurnable(ctx context.Context, id *uint256.Int) (bool, error) {
	return r.dependenciesAllow(ctx, id, burnQuery, nil)
}

// IsDependentTransferableToAddress reports whether every dependency of id may move to
// dest. Each dependency is judged by its own whitelist, never by id's.
func (r *Registry) IsDependentTransferableToAddress(ctx context.Context, id *uint256.Int, dest common.Address) (bool, error) {
	return r.dependenciesAllow(ctx, id, transferQuery, &dest)
}

// IsTokenTransferable reports whether id and all of its dependencies are transferable.
func (r *Registry) IsTokenTransferable(ctx context.Context, id *uint256.Int) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	if !r.IsTransferable(id) {
		return false, nil
	}
	return r.IsDependentTransferable(ctx, id)
}

// IsTokenBurnable reports whether id and all of its dependencies are burnable.
func (r *Registry) IsTokenBurnable(ctx context.Context, id *uint256.Int) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	if !r.IsBurnable(id) {
		return false, nil
	}
	return r.IsDependentBurnable(ctx, id)
}

// IsTokenTransferableToAddress is the predicate consulted before every transfer.
func (r *Registry) IsTokenTransferableToAddress(ctx context.Context, id *uint256.Int, dest common.Address) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	if !r.IsTransferableToAddress(id, dest) {
		return false, nil
	}
	return r.IsDependentTransferableToAddress(ctx, id, dest)
}

type query int

const (
	transferQuery query = iota
	burnQuery
)

func (r *Registry) dependenciesAllow(ctx context.Context, id *uint256.Int, q query, dest *common.Address) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	_, blocked, err := r.blockingDependency(ctx, id, q, dest)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}

// blockingDependency returns the first dependency of id that refuses the query. It stops at
// the first refusal.
func (r *Registry) blockingDependency(ctx context.Context, id *uint256.Int, q query, dest *common.Address) (tokenref.Ref, bool, error) {
	for _, dep := range r.deps.Items(*id) {
		ok, err := r.ask(ctx, dep, q, dest)
		if err != nil {
			return tokenref.Ref{}, false, err
		}
		if !ok {
			return dep, true, nil
		}
	}
	return tokenref.Ref{}, false, nil
}

// ask puts a transferability or burnability question to the registry hosting ref.
func (r *Registry) ask(ctx context.Context, ref tokenref.Ref, q query, dest *common.Address) (bool, error) {
	var method string
	switch {
	case q == burnQuery:
		method = "isTokenBurnable"
	case dest != nil:
		method = "isTokenTransferableToAddress"
	default:
		method = "isTokenTransferable"
	}

	p, callCtx, err := r.peer(ctx, ref.Registry, method)
	if err != nil {
		return false, err
	}

	var ok bool
	switch {
	case q == burnQuery:
		ok, err = p.IsTokenBurnable(callCtx, ref.ID())
	case dest != nil:
		ok, err = p.IsTokenTransferableToAddress(callCtx, ref.ID(), *dest)
	default:
		ok, err = p.IsTokenTransferable(callCtx, ref.ID())
	}
	if err != nil {
		return false, fmt.Errorf("lockable: %s of %s: %w", method, ref, err)
	}
	return ok, nil
}

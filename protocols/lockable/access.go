package lockable

import (
	"context"
	"fmt"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Access checks are evaluated fresh on every call; nothing here is cached.

func (r *Registry) deny(ctx context.Context, op string, id *uint256.Int, reason string) error {
	return &AuthorizationError{
		Op:     op,
		Caller: chain.Sender(ctx),
		Token:  r.ref(id),
		Reason: reason,
	}
}

// requireApprovedOrOwner admits the owner of id, its approved address, or an operator of
// its owner.
func (r *Registry) requireApprovedOrOwner(ctx context.Context, op string, id *uint256.Int) error {
	ok, err := r.ledger.IsApprovedOrOwner(chain.Sender(ctx), id)
	if err != nil {
		return err
	}
	if !ok {
		return r.deny(ctx, op, id, "caller is not owner nor approved")
	}
	return nil
}

// requireSameOwner admits the call when id and ref have the same owner. The owner of ref is
// asked of ref's registry.
func (r *Registry) requireSameOwner(ctx context.Context, op string, id *uint256.Int, ref tokenref.Ref) error {
	owner, err := r.ledger.OwnerOf(id)
	if err != nil {
		return err
	}
	p, callCtx, err := r.peer(ctx, ref.Registry, "ownerOf")
	if err != nil {
		return err
	}
	other, err := p.OwnerOf(callCtx, ref.ID())
	if err != nil {
		return fmt.Errorf("lockable: owner of %s: %w", ref, err)
	}
	if owner != other {
		return r.deny(ctx, op, id, fmt.Sprintf("owner %s differs from owner %s of %s", owner.Hex(), other.Hex(), ref))
	}
	return nil
}

// requireRegistry admits calls from the given registry, and calls this registry makes to
// itself.
func (r *Registry) requireRegistry(ctx context.Context, op string, id *uint256.Int, registry common.Address) error {
	sender := chain.Sender(ctx)
	if sender == registry || sender == r.addr {
		return nil
	}
	return r.deny(ctx, op, id, "caller is not registry "+registry.Hex())
}

// requireTransferGuardAccess decides who may move or destroy id. A locked token answers
// only to its locking registry (or this registry itself); an unlocked one to its owner and
// approved parties.
func (r *Registry) requireTransferGuardAccess(ctx context.Context, op string, id *uint256.Int) error {
	if !r.ledger.Exists(id) {
		return ErrNonexistentToken
	}
	if lockedTo := r.records[*id].lockedTo; !lockedTo.IsZero() {
		return r.requireRegistry(ctx, op, id, lockedTo.Registry)
	}
	return r.requireApprovedOrOwner(ctx, op, id)
}

// requireController admits the registry's administrator.
func (r *Registry) requireController(ctx context.Context, op string, id *uint256.Int) error {
	if chain.Sender(ctx) != r.controller {
		return r.deny(ctx, op, id, "caller is not the registry controller")
	}
	return nil
}

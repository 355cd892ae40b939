package lockable

import (
	"context"
	"fmt"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// guardTransfer runs before id moves from from to to. It refuses the transfer unless id is
// transferable to to, then forwards the same transfer to every token locked to id.
//
// A cascaded transfer that fails fails the whole call: a locked token that cannot follow
// its locking token blocks it rather than being unlocked.
func (r *Registry) guardTransfer(ctx context.Context, from, to common.Address, id *uint256.Int) error {
	self := r.ref(id)
	if !r.IsTransferableToAddress(id, to) {
		return &PolicyError{Err: ErrNonTransferable, Token: self, Blocker: self, Destination: addrPtr(to)}
	}
	dep, blocked, err := r.blockingDependency(ctx, id, transferQuery, &to)
	if err != nil {
		return err
	}
	if blocked {
		return &PolicyError{Err: ErrNonTransferable, Token: self, Blocker: dep, Destination: addrPtr(to)}
	}

	return r.cascade(ctx, id, "transferFrom", func(ctx context.Context, p TokenRegistry, locked tokenref.Ref) error {
		return p.TransferFrom(ctx, from, to, locked.ID())
	})
}

// guardBurn runs before id is destroyed. It refuses the burn unless id is burnable, burns
// every token locked to id, then erases id's dependency and locked-from entries and clears
// its record.
//
// The transfer whitelist is not purged: a token re-minted under the same id starts with the
// old whitelist, which has no effect until its non-transferable flag is set again.
func (r *Registry) guardBurn(ctx context.Context, tx *chain.Tx, id *uint256.Int) error {
	self := r.ref(id)
	if !r.IsBurnable(id) {
		return &PolicyError{Err: ErrNonBurnable, Token: self, Blocker: self}
	}
	dep, blocked, err := r.blockingDependency(ctx, id, burnQuery, nil)
	if err != nil {
		return err
	}
	if blocked {
		return &PolicyError{Err: ErrNonBurnable, Token: self, Blocker: dep}
	}

	err = r.cascade(ctx, id, "burn", func(ctx context.Context, p TokenRegistry, locked tokenref.Ref) error {
		return p.Burn(ctx, locked.ID())
	})
	if err != nil {
		return err
	}

	key := *id
	if deps := r.deps.Clear(key); len(deps) > 0 {
		tx.OnRevert(func() { _ = r.deps.Restore(key, deps) })
	}
	if locked := r.lockedFrom.Clear(key); len(locked) > 0 {
		tx.OnRevert(func() { _ = r.lockedFrom.Restore(key, locked) })
	}
	r.setRecord(tx, key, record{})
	return nil
}

// cascade calls fn for every token locked to id, on a snapshot of the locked-from list.
func (r *Registry) cascade(ctx context.Context, id *uint256.Int, method string, fn func(context.Context, TokenRegistry, tokenref.Ref) error) error {
	for _, locked := range r.lockedFrom.Items(*id) {
		p, callCtx, err := r.peer(ctx, locked.Registry, method)
		if err != nil {
			return err
		}
		if err := fn(callCtx, p, locked); err != nil {
			r.logger.Debug("Cascade failed", "token", id.Dec(), "locked", locked.String(), "method", method, "error", err)
			return fmt.Errorf("lockable: cascade %s of %s: %w", method, locked, err)
		}
	}
	return nil
}

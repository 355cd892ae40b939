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

// Lock ties id to locking: from now on id moves and dies with locking, and only locking's
// registry may transfer, burn or unlock it.
//
// Both tokens must have the same owner. Lock rejects the direct cycle where locking is
// already locked to id; longer cycles (A→B→C→A) are not detected.
//
// id's own record is updated before the locking registry is asked to record the
// back-reference, so a reentrant peer already sees id as locked.
func (r *Registry) Lock(ctx context.Context, id *uint256.Int, locking tokenref.Ref) (err error) {
	defer r.observe("lock", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	if err := r.requireApprovedOrOwner(ctx, "lock", id); err != nil {
		return err
	}
	if locking.Registry == (common.Address{}) {
		return ErrZeroAddress
	}
	if locking == r.ref(id) {
		return ErrSelfReference
	}
	key := *id
	if current := r.records[key].lockedTo; !current.IsZero() {
		return fmt.Errorf("%w: %s is locked to %s", ErrAlreadyLocked, r.ref(id), current)
	}
	if err := r.requireSameOwner(ctx, "lock", id, locking); err != nil {
		return err
	}

	p, callCtx, err := r.peer(ctx, locking.Registry, "isLocked")
	if err != nil {
		return err
	}
	lockingTo, err := p.IsLocked(callCtx, locking.ID())
	if err != nil {
		return fmt.Errorf("lockable: isLocked of %s: %w", locking, err)
	}
	if lockingTo == r.ref(id) {
		return fmt.Errorf("%w: %s is locked to %s", ErrDeadlockDetected, locking, r.ref(id))
	}

	r.setLockedTo(tx, key, locking)

	p, callCtx, err = r.peer(ctx, locking.Registry, "addLockedToken")
	if err != nil {
		return err
	}
	if err := p.AddLockedToken(callCtx, locking.ID(), r.addr, id); err != nil {
		return fmt.Errorf("lockable: addLockedToken on %s: %w", locking, err)
	}

	r.emit(tx, Event{Kind: EventLocked, Token: id, Ref: refPtr(locking)})
	r.logger.Debug("Token locked", "token", id.Dec(), "locked_to", locking.String(), "sender", chain.Sender(ctx))
	return nil
}

// Unlock releases id from its locking token. Only the locking registry, or this registry
// acting on its own behalf, may call it.
func (r *Registry) Unlock(ctx context.Context, id *uint256.Int) (err error) {
	defer r.observe("unlock", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	key := *id
	lockedTo := r.records[key].lockedTo
	if lockedTo.IsZero() {
		return fmt.Errorf("%w: %s", ErrNotLocked, r.ref(id))
	}
	if err := r.requireRegistry(ctx, "unlock", id, lockedTo.Registry); err != nil {
		return err
	}

	r.setLockedTo(tx, key, tokenref.Ref{})

	r.emit(tx, Event{Kind: EventUnlocked, Token: id, Ref: refPtr(lockedTo)})
	r.logger.Debug("Token unlocked", "token", id.Dec(), "was_locked_to", lockedTo.String(), "sender", chain.Sender(ctx))
	return nil
}

// IsLocked returns the token id is locked to, or the zero Ref when it is unlocked.
func (r *Registry) IsLocked(ctx context.Context, id *uint256.Int) (tokenref.Ref, error) {
	if err := checkID(id); err != nil {
		return tokenref.Ref{}, err
	}
	return r.records[*id].lockedTo, nil
}

// LockedFrom returns the tokens currently locked to id.
func (r *Registry) LockedFrom(id *uint256.Int) []tokenref.Ref {
	return r.lockedFrom.Items(*id)
}

// AddLockedToken completes the lock handshake on the locking side: fromID in fromRegistry
// has locked itself to id. Only fromRegistry (or this registry) may call it, and both
// tokens must have the same owner.
func (r *Registry) AddLockedToken(ctx context.Context, id *uint256.Int, fromRegistry common.Address, fromID *uint256.Int) (err error) {
	defer r.observe("add_locked_token", time.Now(), &err)
	tx, err := mutation(ctx, id, fromID)
	if err != nil {
		return err
	}
	if err := r.requireRegistry(ctx, "add_locked_token", id, fromRegistry); err != nil {
		return err
	}
	from := tokenref.New(fromRegistry, fromID)
	if err := r.requireSameOwner(ctx, "add_locked_token", id, from); err != nil {
		return err
	}

	key := *id
	if _, err := r.lockedFrom.Add(key, from); err != nil {
		if errors.Is(err, indexledger.ErrAlreadyPresent) {
			return fmt.Errorf("%w: %s", ErrDuplicateLocking, from)
		}
		return err
	}
	tx.OnRevert(func() { _, _ = r.lockedFrom.Remove(key, from) })

	r.emit(tx, Event{Kind: EventLockedTokenAdded, Token: id, Ref: refPtr(from)})
	return nil
}

// RemoveLockedToken releases fromID in fromRegistry from id. The local entry is removed
// first and the locked token's registry is then told to unlock it; if that call fails the
// whole operation is rolled back.
func (r *Registry) RemoveLockedToken(ctx context.Context, id *uint256.Int, fromRegistry common.Address, fromID *uint256.Int) (err error) {
	defer r.observe("remove_locked_token", time.Now(), &err)
	tx, err := mutation(ctx, id, fromID)
	if err != nil {
		return err
	}
	if err := r.requireApprovedOrOwner(ctx, "remove_locked_token", id); err != nil {
		return err
	}

	key := *id
	from := tokenref.New(fromRegistry, fromID)
	pos, err := r.lockedFrom.Remove(key, from)
	if err != nil {
		if errors.Is(err, indexledger.ErrNotPresent) {
			return fmt.Errorf("%w: %s is not locked to %s", ErrNotLocked, from, r.ref(id))
		}
		return err
	}
	tx.OnRevert(func() { _ = r.lockedFrom.Reinsert(key, from, pos) })

	p, callCtx, err := r.peer(ctx, fromRegistry, "unlock")
	if err != nil {
		return err
	}
	if err := p.Unlock(callCtx, fromID); err != nil {
		return fmt.Errorf("lockable: unlock of %s: %w", from, err)
	}

	r.emit(tx, Event{Kind: EventLockedTokenRemoved, Token: id, Ref: refPtr(from)})
	r.logger.Debug("Locked token released", "token", id.Dec(), "released", from.String(), "sender", chain.Sender(ctx))
	return nil
}

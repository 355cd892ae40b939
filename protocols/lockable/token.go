package lockable

import (
	"context"
	"time"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// OwnerOf returns the owner of id.
func (r *Registry) OwnerOf(ctx context.Context, id *uint256.Int) (common.Address, error) {
	if err := checkID(id); err != nil {
		return common.Address{}, err
	}
	return r.ledger.OwnerOf(id)
}

// BalanceOf returns the number of tokens owner holds in this registry.
func (r *Registry) BalanceOf(owner common.Address) int {
	return r.ledger.BalanceOf(owner)
}

// TokensOf returns the ids owner holds in this registry.
func (r *Registry) TokensOf(owner common.Address) []uint256.Int {
	return r.ledger.TokensOf(owner)
}

// GetApproved returns the single-token approval of id.
func (r *Registry) GetApproved(id *uint256.Int) (common.Address, error) {
	return r.ledger.GetApproved(id)
}

// IsApprovedForAll reports whether operator acts for all of owner's tokens.
func (r *Registry) IsApprovedForAll(owner, operator common.Address) bool {
	return r.ledger.IsApprovedForAll(owner, operator)
}

// Mint creates id for to. Only the controller may mint.
func (r *Registry) Mint(ctx context.Context, to common.Address, id *uint256.Int) (err error) {
	defer r.observe("mint", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	if err := r.requireController(ctx, "mint", id); err != nil {
		return err
	}
	if err := r.ledger.Mint(tx, to, id); err != nil {
		return err
	}
	r.emit(tx, Event{Kind: EventMinted, Token: id, To: addrPtr(to)})
	return nil
}

// TransferFrom moves id from from to to, and with it every token locked to id.
//
// A locked id may only be moved by its locking registry; otherwise the caller must be the
// owner or approved. The move must pass the whitelist-aware transferability check of id and
// all of its dependencies.
func (r *Registry) TransferFrom(ctx context.Context, from, to common.Address, id *uint256.Int) (err error) {
	defer r.observe("transfer", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	if err := r.requireTransferGuardAccess(ctx, "transfer", id); err != nil {
		return err
	}
	owner, err := r.ledger.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrIncorrectOwner
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := r.guardTransfer(ctx, from, to, id); err != nil {
		return err
	}
	if err := r.ledger.Transfer(tx, from, to, id); err != nil {
		return err
	}

	r.emit(tx, Event{Kind: EventTransferred, Token: id, From: addrPtr(from), To: addrPtr(to)})
	r.logger.Debug("Token transferred", "token", id.Dec(), "from", from, "to", to, "sender", chain.Sender(ctx))
	return nil
}

// Burn destroys id and every token locked to it.
func (r *Registry) Burn(ctx context.Context, id *uint256.Int) (err error) {
	defer r.observe("burn", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	if err := r.requireTransferGuardAccess(ctx, "burn", id); err != nil {
		return err
	}
	owner, err := r.ledger.OwnerOf(id)
	if err != nil {
		return err
	}
	if err := r.guardBurn(ctx, tx, id); err != nil {
		return err
	}
	if err := r.ledger.Burn(tx, id); err != nil {
		return err
	}

	r.emit(tx, Event{Kind: EventBurned, Token: id, From: addrPtr(owner)})
	r.logger.Debug("Token burned", "token", id.Dec(), "owner", owner, "sender", chain.Sender(ctx))
	return nil
}

// Approve lets to move id. The zero address clears the approval.
func (r *Registry) Approve(ctx context.Context, to common.Address, id *uint256.Int) (err error) {
	defer r.observe("approve", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	owner, err := r.ledger.OwnerOf(id)
	if err != nil {
		return err
	}
	sender := chain.Sender(ctx)
	if sender != owner && !r.ledger.IsApprovedForAll(owner, sender) {
		return r.deny(ctx, "approve", id, "caller is not owner nor operator")
	}
	return r.ledger.Approve(tx, to, id)
}

// SetApprovalForAll lets operator act for all of the caller's tokens.
func (r *Registry) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (err error) {
	defer r.observe("set_approval_for_all", time.Now(), &err)
	tx, err := mutation(ctx)
	if err != nil {
		return err
	}
	return r.ledger.SetApprovalForAll(tx, chain.Sender(ctx), operator, approved)
}

// SetTransferable sets id's own transferability flag. Controller only.
func (r *Registry) SetTransferable(ctx context.Context, id *uint256.Int, transferable bool) error {
	return r.setFlags(ctx, "set_transferable", id, func(rec *record) { rec.nonTransferable = !transferable })
}

// SetBurnable sets id's own burnability flag. Controller only.
func (r *Registry) SetBurnable(ctx context.Context, id *uint256.Int, burnable bool) error {
	return r.setFlags(ctx, "set_burnable", id, func(rec *record) { rec.nonBurnable = !burnable })
}

func (r *Registry) setFlags(ctx context.Context, op string, id *uint256.Int, apply func(*record)) (err error) {
	defer r.observe(op, time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	if err := r.requireController(ctx, op, id); err != nil {
		return err
	}
	key := *id
	rec := r.records[key]
	apply(&rec)
	r.setRecord(tx, key, rec)

	r.emit(tx, Event{Kind: EventFlagsChanged, Token: id, Flags: &Flags{
		NonTransferable: rec.nonTransferable,
		NonBurnable:     rec.nonBurnable,
	}})
	return nil
}

// AddToWhitelist lets id move to dest even while it is flagged non-transferable.
// It does not override the non-transferability of id's dependencies. Controller only.
func (r *Registry) AddToWhitelist(ctx context.Context, id *uint256.Int, dest common.Address) (err error) {
	defer r.observe("add_to_whitelist", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	if err := r.requireController(ctx, "add_to_whitelist", id); err != nil {
		return err
	}
	key := *id
	set, ok := r.whitelists[key]
	if !ok {
		set = mapset.NewThreadUnsafeSet[common.Address]()
		r.whitelists[key] = set
		tx.OnRevert(func() { delete(r.whitelists, key) })
	}
	if set.Add(dest) {
		tx.OnRevert(func() { set.Remove(dest) })
		r.emit(tx, Event{Kind: EventWhitelistChanged, Token: id, To: addrPtr(dest)})
	}
	return nil
}

// RemoveFromWhitelist removes dest from id's whitelist. Controller only.
func (r *Registry) RemoveFromWhitelist(ctx context.Context, id *uint256.Int, dest common.Address) (err error) {
	defer r.observe("remove_from_whitelist", time.Now(), &err)
	tx, err := mutation(ctx, id)
	if err != nil {
		return err
	}
	if err := r.requireController(ctx, "remove_from_whitelist", id); err != nil {
		return err
	}
	set, ok := r.whitelists[*id]
	if !ok || !set.Contains(dest) {
		return nil
	}
	set.Remove(dest)
	tx.OnRevert(func() { set.Add(dest) })
	r.emit(tx, Event{Kind: EventWhitelistChanged, Token: id, From: addrPtr(dest)})
	return nil
}

// IsWhitelisted reports whether dest is on id's whitelist.
func (r *Registry) IsWhitelisted(id *uint256.Int, dest common.Address) bool {
	set, ok := r.whitelists[*id]
	return ok && set.Contains(dest)
}

// Whitelist returns id's whitelist.
func (r *Registry) Whitelist(id *uint256.Int) []common.Address {
	set, ok := r.whitelists[*id]
	if !ok {
		return nil
	}
	return set.ToSlice()
}

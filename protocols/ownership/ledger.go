// Package ownership is the base ledger registries build on: who owns which token, who may
// act for an owner, and enumeration. It only keeps books; authorization decisions are made
// by the caller.
package ownership

import (
	"errors"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/indexledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrNonexistentToken = errors.New("ownership: token does not exist")
	ErrTokenExists      = errors.New("ownership: token already minted")
	ErrIncorrectOwner   = errors.New("ownership: transfer from incorrect owner")
	ErrZeroAddress      = errors.New("ownership: zero address")
	ErrApproveToOwner   = errors.New("ownership: approval to current owner")
)

type operatorKey struct {
	owner    common.Address
	operator common.Address
}

// Ledger tracks ownership of 256-bit token ids.
type Ledger struct {
	owners    map[uint256.Int]common.Address
	approvals map[uint256.Int]common.Address
	operators map[operatorKey]bool
	byOwner   *indexledger.Ledger[common.Address, uint256.Int]
	all       *indexledger.Ledger[struct{}, uint256.Int]
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		owners:    make(map[uint256.Int]common.Address),
		approvals: make(map[uint256.Int]common.Address),
		operators: make(map[operatorKey]bool),
		byOwner:   indexledger.New[common.Address, uint256.Int](),
		all:       indexledger.New[struct{}, uint256.Int](),
	}
}

// OwnerOf returns the owner of id.
func (l *Ledger) OwnerOf(id *uint256.Int) (common.Address, error) {
	owner, ok := l.owners[*id]
	if !ok {
		return common.Address{}, ErrNonexistentToken
	}
	return owner, nil
}

// Exists reports whether id is currently minted.
func (l *Ledger) Exists(id *uint256.Int) bool {
	_, ok := l.owners[*id]
	return ok
}

// BalanceOf returns the number of tokens held by owner.
func (l *Ledger) BalanceOf(owner common.Address) int {
	return l.byOwner.Len(owner)
}

// TotalSupply returns the number of minted tokens.
func (l *Ledger) TotalSupply() int {
	return l.all.Len(struct{}{})
}

// TokensOf returns the ids held by owner.
func (l *Ledger) TokensOf(owner common.Address) []uint256.Int {
	return l.byOwner.Items(owner)
}

// Tokens returns every minted id.
func (l *Ledger) Tokens() []uint256.Int {
	return l.all.Items(struct{}{})
}

// GetApproved returns the single-token approval of id, or the zero address.
func (l *Ledger) GetApproved(id *uint256.Int) (common.Address, error) {
	if !l.Exists(id) {
		return common.Address{}, ErrNonexistentToken
	}
	return l.approvals[*id], nil
}

// IsApprovedForAll reports whether operator may act for all of owner's tokens.
func (l *Ledger) IsApprovedForAll(owner, operator common.Address) bool {
	return l.operators[operatorKey{owner, operator}]
}

// IsApprovedOrOwner reports whether spender owns id, is approved for it, or is an operator
// of its owner.
func (l *Ledger) IsApprovedOrOwner(spender common.Address, id *uint256.Int) (bool, error) {
	owner, err := l.OwnerOf(id)
	if err != nil {
		return false, err
	}
	return spender == owner || l.approvals[*id] == spender || l.IsApprovedForAll(owner, spender), nil
}

// Mint creates id owned by to.
func (l *Ledger) Mint(tx *chain.Tx, to common.Address, id *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if l.Exists(id) {
		return ErrTokenExists
	}
	key := *id
	l.setOwner(tx, key, to)
	l.index(tx, to, key)
	if _, err := l.all.Add(struct{}{}, key); err != nil {
		return err
	}
	tx.OnRevert(func() { _, _ = l.all.Remove(struct{}{}, key) })
	return nil
}

// Transfer moves id from from to to and clears its single-token approval.
func (l *Ledger) Transfer(tx *chain.Tx, from, to common.Address, id *uint256.Int) error {
	owner, err := l.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrIncorrectOwner
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	key := *id
	l.setApproval(tx, key, common.Address{})
	if err := l.unindex(tx, from, key); err != nil {
		return err
	}
	l.index(tx, to, key)
	l.setOwner(tx, key, to)
	return nil
}

// Burn destroys id.
func (l *Ledger) Burn(tx *chain.Tx, id *uint256.Int) error {
	owner, err := l.OwnerOf(id)
	if err != nil {
		return err
	}
	key := *id
	l.setApproval(tx, key, common.Address{})
	if err := l.unindex(tx, owner, key); err != nil {
		return err
	}
	pos, err := l.all.Remove(struct{}{}, key)
	if err != nil {
		return err
	}
	tx.OnRevert(func() { _ = l.all.Reinsert(struct{}{}, key, pos) })

	delete(l.owners, key)
	tx.OnRevert(func() { l.owners[key] = owner })
	return nil
}

// Approve sets the single-token approval of id. The zero address clears it.
func (l *Ledger) Approve(tx *chain.Tx, to common.Address, id *uint256.Int) error {
	owner, err := l.OwnerOf(id)
	if err != nil {
		return err
	}
	if to == owner {
		return ErrApproveToOwner
	}
	l.setApproval(tx, *id, to)
	return nil
}

// SetApprovalForAll grants or revokes operator rights over all of owner's tokens.
func (l *Ledger) SetApprovalForAll(tx *chain.Tx, owner, operator common.Address, approved bool) error {
	if owner == operator {
		return ErrApproveToOwner
	}
	key := operatorKey{owner, operator}
	prev := l.operators[key]
	if prev == approved {
		return nil
	}
	if approved {
		l.operators[key] = true
	} else {
		delete(l.operators, key)
	}
	tx.OnRevert(func() {
		if prev {
			l.operators[key] = true
		} else {
			delete(l.operators, key)
		}
	})
	return nil
}

func (l *Ledger) setOwner(tx *chain.Tx, key uint256.Int, owner common.Address) {
	prev, existed := l.owners[key]
	l.owners[key] = owner
	tx.OnRevert(func() {
		if existed {
			l.owners[key] = prev
		} else {
			delete(l.owners, key)
		}
	})
}

func (l *Ledger) setApproval(tx *chain.Tx, key uint256.Int, to common.Address) {
	prev := l.approvals[key]
	if prev == to {
		return
	}
	if to == (common.Address{}) {
		delete(l.approvals, key)
	} else {
		l.approvals[key] = to
	}
	tx.OnRevert(func() {
		if prev == (common.Address{}) {
			delete(l.approvals, key)
		} else {
			l.approvals[key] = prev
		}
	})
}

func (l *Ledger) index(tx *chain.Tx, owner common.Address, key uint256.Int) {
	if _, err := l.byOwner.Add(owner, key); err != nil {
		return
	}
	tx.OnRevert(func() { _, _ = l.byOwner.Remove(owner, key) })
}

func (l *Ledger) unindex(tx *chain.Tx, owner common.Address, key uint256.Int) error {
	pos, err := l.byOwner.Remove(owner, key)
	if err != nil {
		return err
	}
	tx.OnRevert(func() { _ = l.byOwner.Reinsert(owner, key, pos) })
	return nil
}

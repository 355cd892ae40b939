// Package indexledger keeps ordered collections of items per owner with O(1) membership
// tests, inserts and removals.
//
// All collections live in one flat table: the items of an owner are stored in a slice and
// every (owner, item) pair has a single index entry holding the item's position plus one.
// A stored index of 0 therefore always means "absent" and never collides with position 0.
// Clear erases every child index entry of an owner explicitly, so destroying an owner never
// leaves a dangling "present" flag behind.
package indexledger

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyPresent = errors.New("indexledger: item already present")
	ErrNotPresent     = errors.New("indexledger: item not present")
	ErrBadPosition    = errors.New("indexledger: position out of range")
	ErrNotEmpty       = errors.New("indexledger: owner collection not empty")
)

type entry[K comparable, V comparable] struct {
	owner K
	item  V
}

// Ledger is an ordered set of V per owner K.
//
// The zero value is not usable; use New.
type Ledger[K comparable, V comparable] struct {
	items map[K][]V
	index map[entry[K, V]]int
}

// New creates an empty ledger.
func New[K comparable, V comparable]() *Ledger[K, V] {
	return &Ledger[K, V]{
		items: make(map[K][]V),
		index: make(map[entry[K, V]]int),
	}
}

// Add appends item to owner's collection and returns its position.
func (l *Ledger[K, V]) Add(owner K, item V) (int, error) {
	key := entry[K, V]{owner, item}
	if l.index[key] != 0 {
		return 0, ErrAlreadyPresent
	}
	l.items[owner] = append(l.items[owner], item)
	pos := len(l.items[owner]) - 1
	l.index[key] = pos + 1
	return pos, nil
}

// Remove deletes item from owner's collection and returns the position it occupied.
//
// The last element is moved into the vacated slot and its index entry is re-pointed, so
// the order of the remaining items is not preserved.
func (l *Ledger[K, V]) Remove(owner K, item V) (int, error) {
	key := entry[K, V]{owner, item}
	stored := l.index[key]
	if stored == 0 {
		return 0, ErrNotPresent
	}
	pos := stored - 1
	items := l.items[owner]
	last := len(items) - 1

	if pos != last {
		moved := items[last]
		items[pos] = moved
		l.index[entry[K, V]{owner, moved}] = pos + 1
	}

	var zero V
	items[last] = zero
	items = items[:last]
	if len(items) == 0 {
		delete(l.items, owner)
	} else {
		l.items[owner] = items
	}
	delete(l.index, key)
	return pos, nil
}

// Reinsert puts item back at pos, moving the current occupant of pos to the end.
// It is the exact inverse of a Remove that returned pos.
func (l *Ledger[K, V]) Reinsert(owner K, item V, pos int) error {
	key := entry[K, V]{owner, item}
	if l.index[key] != 0 {
		return ErrAlreadyPresent
	}
	items := l.items[owner]
	if pos < 0 || pos > len(items) {
		return fmt.Errorf("%w: %d (len %d)", ErrBadPosition, pos, len(items))
	}

	if pos == len(items) {
		l.items[owner] = append(items, item)
		l.index[key] = pos + 1
		return nil
	}

	moved := items[pos]
	items[pos] = item
	items = append(items, moved)
	l.items[owner] = items
	l.index[key] = pos + 1
	l.index[entry[K, V]{owner, moved}] = len(items)
	return nil
}

// Contains reports whether item is indexed under owner.
func (l *Ledger[K, V]) Contains(owner K, item V) bool {
	return l.index[entry[K, V]{owner, item}] != 0
}

// IndexOf returns the stored index of item: its position plus one, or 0 when absent.
func (l *Ledger[K, V]) IndexOf(owner K, item V) int {
	return l.index[entry[K, V]{owner, item}]
}

// Items returns a defensive copy of owner's collection in stored order.
func (l *Ledger[K, V]) Items(owner K) []V {
	items := l.items[owner]
	if len(items) == 0 {
		return nil
	}
	out := make([]V, len(items))
	copy(out, items)
	return out
}

// Len returns the size of owner's collection.
func (l *Ledger[K, V]) Len(owner K) int {
	return len(l.items[owner])
}

// Clear erases owner's collection together with every index entry that belongs to it and
// returns the removed items in stored order.
func (l *Ledger[K, V]) Clear(owner K) []V {
	items := l.items[owner]
	for _, item := range items {
		delete(l.index, entry[K, V]{owner, item})
	}
	delete(l.items, owner)
	return items
}

// Restore re-creates a collection previously returned by Clear. The owner must be empty.
func (l *Ledger[K, V]) Restore(owner K, items []V) error {
	if len(l.items[owner]) != 0 {
		return ErrNotEmpty
	}
	if len(items) == 0 {
		return nil
	}
	restored := make([]V, len(items))
	copy(restored, items)
	for i, item := range restored {
		l.index[entry[K, V]{owner, item}] = i + 1
	}
	l.items[owner] = restored
	return nil
}

// Entries returns the total number of index entries across all owners.
func (l *Ledger[K, V]) Entries() int {
	return len(l.index)
}

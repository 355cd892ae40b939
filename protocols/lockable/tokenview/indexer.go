// Package tokenview indexes registry snapshots for read-heavy consumers.
package tokenview

import (
	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Indexer builds IndexableTokenSets from registry snapshots.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed token set from a raw slice of token views.
func (i *Indexer) Index(registry common.Address, tokens []lockable.TokenView) *IndexableTokenSet {
	return NewIndexableTokenSet(registry, tokens)
}

// IndexableTokenSet provides fast, indexed access to the tokens of one registry.
type IndexableTokenSet struct {
	registry common.Address
	byID     map[uint256.Int]lockable.TokenView
	byOwner  map[common.Address][]lockable.TokenView
	locked   []lockable.TokenView
	all      []lockable.TokenView
}

// NewIndexableTokenSet creates a new indexed token set from a raw slice. Views without an
// id are skipped.
func NewIndexableTokenSet(registry common.Address, tokens []lockable.TokenView) *IndexableTokenSet {
	byID := make(map[uint256.Int]lockable.TokenView, len(tokens))
	byOwner := make(map[common.Address][]lockable.TokenView)
	all := make([]lockable.TokenView, 0, len(tokens))
	var locked []lockable.TokenView

	for _, t := range tokens {
		if t.ID == nil {
			continue
		}
		byID[*t.ID] = t
		byOwner[t.Owner] = append(byOwner[t.Owner], t)
		if t.LockedTo != nil {
			locked = append(locked, t)
		}
		all = append(all, t)
	}

	return &IndexableTokenSet{
		registry: registry,
		byID:     byID,
		byOwner:  byOwner,
		locked:   locked,
		all:      all,
	}
}

// Registry returns the address of the registry the set was built from.
func (s *IndexableTokenSet) Registry() common.Address {
	return s.registry
}

// GetByID retrieves a token by its id.
func (s *IndexableTokenSet) GetByID(id *uint256.Int) (lockable.TokenView, bool) {
	if id == nil {
		return lockable.TokenView{}, false
	}
	t, ok := s.byID[*id]
	return t, ok
}

// ByOwner returns a defensive copy of the tokens held by owner.
func (s *IndexableTokenSet) ByOwner(owner common.Address) []lockable.TokenView {
	return clone(s.byOwner[owner])
}

// Locked returns a defensive copy of the tokens that are locked to another token.
func (s *IndexableTokenSet) Locked() []lockable.TokenView {
	return clone(s.locked)
}

// All returns a defensive copy of the slice of all tokens in the set.
func (s *IndexableTokenSet) All() []lockable.TokenView {
	return clone(s.all)
}

// Len returns the number of tokens in the set.
func (s *IndexableTokenSet) Len() int {
	return len(s.all)
}

func clone(views []lockable.TokenView) []lockable.TokenView {
	out := make([]lockable.TokenView, len(views))
	copy(out, views)
	return out
}

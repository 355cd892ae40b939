package lockable

import (
	"bytes"
	"sort"

	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenView is a read-only copy of one token's state.
type TokenView struct {
	ID              *uint256.Int     `json:"id"`
	Owner           common.Address   `json:"owner"`
	Approved        common.Address   `json:"approved"`
	NonTransferable bool             `json:"nonTransferable"`
	NonBurnable     bool             `json:"nonBurnable"`
	Dependencies    []tokenref.Ref   `json:"dependencies"`
	LockedTo        *tokenref.Ref    `json:"lockedTo,omitempty"`
	LockedFrom      []tokenref.Ref   `json:"lockedFrom"`
	Whitelist       []common.Address `json:"whitelist"`
}

// Token returns the state of a minted token.
func (r *Registry) Token(id *uint256.Int) (TokenView, error) {
	if err := checkID(id); err != nil {
		return TokenView{}, err
	}
	owner, err := r.ledger.OwnerOf(id)
	if err != nil {
		return TokenView{}, err
	}
	approved, _ := r.ledger.GetApproved(id)
	rec := r.records[*id]

	view := TokenView{
		ID:              id.Clone(),
		Owner:           owner,
		Approved:        approved,
		NonTransferable: rec.nonTransferable,
		NonBurnable:     rec.nonBurnable,
		Dependencies:    r.deps.Items(*id),
		LockedFrom:      r.lockedFrom.Items(*id),
		Whitelist:       r.Whitelist(id),
	}
	if !rec.lockedTo.IsZero() {
		view.LockedTo = refPtr(rec.lockedTo)
	}
	sort.Slice(view.Whitelist, func(i, j int) bool {
		return bytes.Compare(view.Whitelist[i][:], view.Whitelist[j][:]) < 0
	})
	return view, nil
}

// Snapshot returns every minted token in ascending id order.
func (r *Registry) Snapshot() []TokenView {
	ids := r.ledger.Tokens()
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Lt(&ids[j])
	})
	views := make([]TokenView, 0, len(ids))
	for i := range ids {
		view, err := r.Token(&ids[i])
		if err != nil {
			continue
		}
		views = append(views, view)
	}
	return views
}

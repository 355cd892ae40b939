package lockable

import (
	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"
)

// EventKind names a notification emitted by a registry.
type EventKind string

const (
	EventMinted             EventKind = "minted"
	EventTransferred        EventKind = "transferred"
	EventBurned             EventKind = "burned"
	EventDependencyAdded    EventKind = "dependency_added"
	EventDependencyRemoved  EventKind = "dependency_removed"
	EventLocked             EventKind = "locked"
	EventUnlocked           EventKind = "unlocked"
	EventLockedTokenAdded   EventKind = "locked_token_added"
	EventLockedTokenRemoved EventKind = "locked_token_removed"
	EventFlagsChanged       EventKind = "flags_changed"
	EventWhitelistChanged   EventKind = "whitelist_changed"
)

// Event is a notification for off-protocol observers. Events are published only once the
// top-level call that produced them has committed.
type Event struct {
	Kind     EventKind       `json:"kind"`
	Registry common.Address  `json:"registry"`
	Token    *uint256.Int    `json:"token"`
	Ref      *tokenref.Ref   `json:"ref,omitempty"`
	From     *common.Address `json:"from,omitempty"`
	To       *common.Address `json:"to,omitempty"`
	Flags    *Flags          `json:"flags,omitempty"`
	Tx       uint64          `json:"tx"`
}

// Flags are the local transferability and burnability switches of a token.
type Flags struct {
	NonTransferable bool `json:"nonTransferable"`
	NonBurnable     bool `json:"nonBurnable"`
}

// SubscribeEvents delivers committed events to ch until the subscription is closed.
func (r *Registry) SubscribeEvents(ch chan<- Event) event.Subscription {
	return r.feed.Subscribe(ch)
}

func (r *Registry) emit(tx *chain.Tx, ev Event) {
	ev.Registry = r.addr
	ev.Tx = tx.ID()
	if ev.Token != nil {
		ev.Token = ev.Token.Clone()
	}
	tx.OnCommit(func() {
		r.feed.Send(ev)
	})
}

func refPtr(ref tokenref.Ref) *tokenref.Ref {
	return &ref
}

func addrPtr(addr common.Address) *common.Address {
	return &addr
}

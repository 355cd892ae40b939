package lockable

import (
	"errors"
	"fmt"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/ownership"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnauthorized = errors.New("lockable: caller is not authorized")

	ErrAlreadyLocked       = errors.New("lockable: token is already locked")
	ErrDuplicateDependency = errors.New("lockable: dependency already present")
	ErrDuplicateLocking    = errors.New("lockable: locked token already recorded")
	ErrDeadlockDetected    = errors.New("lockable: locking token is locked to this token")
	ErrTokenExists         = ownership.ErrTokenExists
	ErrIncorrectOwner      = ownership.ErrIncorrectOwner
	ErrRegistryExists      = errors.New("lockable: registry already registered")

	ErrNoSuchDependency = errors.New("lockable: no such dependency")
	ErrNotLocked        = errors.New("lockable: token is not locked")
	ErrNonexistentToken = ownership.ErrNonexistentToken
	ErrUnknownRegistry  = errors.New("lockable: unknown registry")

	ErrNonTransferable = errors.New("lockable: token is non-transferable")
	ErrNonBurnable     = errors.New("lockable: token is non-burnable")

	ErrZeroAddress   = ownership.ErrZeroAddress
	ErrSelfReference = errors.New("lockable: token cannot reference itself")
	ErrNilTokenID    = errors.New("lockable: token id is nil")
)

// Kind classifies protocol failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindStateConflict
	KindNotFound
	KindPolicy
	KindInvalidArgument
	KindResourceLimit
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindStateConflict:
		return "state_conflict"
	case KindNotFound:
		return "not_found"
	case KindPolicy:
		return "policy"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindResourceLimit:
		return "resource_limit"
	default:
		return "unknown"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrUnauthorized, KindAuthorization},
	{ErrAlreadyLocked, KindStateConflict},
	{ErrDuplicateDependency, KindStateConflict},
	{ErrDuplicateLocking, KindStateConflict},
	{ErrDeadlockDetected, KindStateConflict},
	{ErrTokenExists, KindStateConflict},
	{ErrIncorrectOwner, KindStateConflict},
	{ErrRegistryExists, KindStateConflict},
	{ErrNoSuchDependency, KindNotFound},
	{ErrNotLocked, KindNotFound},
	{ErrNonexistentToken, KindNotFound},
	{ErrUnknownRegistry, KindNotFound},
	{ErrNonTransferable, KindPolicy},
	{ErrNonBurnable, KindPolicy},
	{ErrZeroAddress, KindInvalidArgument},
	{ErrSelfReference, KindInvalidArgument},
	{ErrNilTokenID, KindInvalidArgument},
	{chain.ErrCallDepthExceeded, KindResourceLimit},
}

// KindOf returns the class of the first protocol sentinel err wraps.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// AuthorizationError reports which access check a caller failed.
type AuthorizationError struct {
	Op     string
	Caller common.Address
	Token  tokenref.Ref
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("lockable: %s on %s denied for %s: %s", e.Op, e.Token, e.Caller.Hex(), e.Reason)
}

func (e *AuthorizationError) Unwrap() error {
	return ErrUnauthorized
}

// PolicyError reports a transfer or burn refused by a transferability or burnability flag.
// Blocker names the token whose flag refused it: the token itself, or the first dependency
// found to be restrictive.
type PolicyError struct {
	Err         error
	Token       tokenref.Ref
	Blocker     tokenref.Ref
	Destination *common.Address
}

func (e *PolicyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	by := "itself"
	if e.BlockedByDependency() {
		by = "dependency " + e.Blocker.String()
	}
	if e.Destination != nil {
		return fmt.Sprintf("%v: %s to %s (blocked by %s)", e.Err, e.Token, e.Destination.Hex(), by)
	}
	return fmt.Sprintf("%v: %s (blocked by %s)", e.Err, e.Token, by)
}

func (e *PolicyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BlockedByDependency reports whether a dependency, rather than the token's own flag,
// refused the operation.
func (e *PolicyError) BlockedByDependency() bool {
	return e.Blocker != e.Token
}

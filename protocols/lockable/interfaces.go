package lockable

import (
	"context"

	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenRegistry is the capability set a registry exposes to its peers. It is the only way
// one registry reads or changes another's state, and every implementation on the other side
// of it is treated as untrusted: it may fail, reenter, or answer falsely within the bounds
// of these signatures.
//
// The caller's identity is carried by ctx (see chain.Sender).
type TokenRegistry interface {
	// Address returns the registry's identity.
	Address() common.Address

	// OwnerOf returns the current owner of id.
	OwnerOf(ctx context.Context, id *uint256.Int) (common.Address, error)

	// IsTokenTransferable reports whether id and everything it depends on is transferable.
	IsTokenTransferable(ctx context.Context, id *uint256.Int) (bool, error)

	// IsTokenBurnable reports whether id and everything it depends on is burnable.
	IsTokenBurnable(ctx context.Context, id *uint256.Int) (bool, error)

	// IsTokenTransferableToAddress is the whitelist-aware variant of IsTokenTransferable.
	IsTokenTransferableToAddress(ctx context.Context, id *uint256.Int, dest common.Address) (bool, error)

	// IsLocked returns the token id is locked to, or the zero Ref.
	IsLocked(ctx context.Context, id *uint256.Int) (tokenref.Ref, error)

	// AddLockedToken records that fromID in fromRegistry is now locked to id.
	AddLockedToken(ctx context.Context, id *uint256.Int, fromRegistry common.Address, fromID *uint256.Int) error

	// Unlock releases the lock of id. Only the locking registry may call it.
	Unlock(ctx context.Context, id *uint256.Int) error

	// TransferFrom moves id from from to to.
	TransferFrom(ctx context.Context, from, to common.Address, id *uint256.Int) error

	// Burn destroys id.
	Burn(ctx context.Context, id *uint256.Int) error
}

// Resolver maps registry identities to their capability handles.
type Resolver interface {
	Resolve(addr common.Address) (TokenRegistry, error)
}

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Compile-time check that Registry implements TokenRegistry.
var _ TokenRegistry = (*Registry)(nil)

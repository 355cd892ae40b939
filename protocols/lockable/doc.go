// Package lockable implements token registries whose tokens can depend on, and be locked
// to, tokens hosted by other registries.
//
// # Dependencies
//
// A token that depends on another can only be transferred or burned while the token it
// depends on is transferable or burnable. The check recurses across registries through
// IsTokenTransferable, IsTokenBurnable and IsTokenTransferableToAddress. A per-token
// whitelist exempts destinations from the token's own non-transferable flag, never from
// a dependency's.
//
// # Locks
//
// A token locked to another moves and dies with it: transferring or burning the locking
// token cascades to every token locked to it, and a locked token answers only to its
// locking registry. The lock is a two-registry handshake:
//
//	Lock(A, B)            on A's registry: checks, sets A.lockedTo = B, then
//	  AddLockedToken(B, A)  on B's registry: records A in B.lockedFrom
//	RemoveLockedToken(B, A) on B's registry: drops A from B.lockedFrom, then
//	  Unlock(A)             on A's registry: clears A.lockedTo
//
// Only direct cycles (A locked to B, then B to A) are rejected.
//
// # Execution
//
// Registries run inside a chain.Host. Every top-level call is atomic across all
// registries it reaches; peers are reached through a Resolver and are always treated as
// untrusted.
package lockable

package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type frameKey struct{}

// frame is the per-call execution context: who is calling, how deep the call stack is,
// and which transaction (if any) collects undo records.
type frame struct {
	host   *Host
	tx     *Tx
	sender common.Address
	depth  int
}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

func frameFrom(ctx context.Context) (*frame, bool) {
	f, ok := ctx.Value(frameKey{}).(*frame)
	return f, ok && f != nil
}

// Sender returns the identity of the immediate caller, or the zero address outside a host call.
func Sender(ctx context.Context) common.Address {
	if f, ok := frameFrom(ctx); ok {
		return f.sender
	}
	return common.Address{}
}

// Depth returns the current nested call depth. Top-level calls run at depth 0.
func Depth(ctx context.Context) int {
	if f, ok := frameFrom(ctx); ok {
		return f.depth
	}
	return 0
}

// Call derives the context for an outbound call made by caller: the callee observes caller
// as its sender and runs one level deeper. It fails once the host's depth limit is reached.
func Call(ctx context.Context, caller common.Address) (context.Context, error) {
	f, ok := frameFrom(ctx)
	if !ok {
		return nil, ErrNoFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	depth := f.depth + 1
	if depth > f.host.maxDepth {
		return nil, ErrCallDepthExceeded
	}
	if f.tx != nil && depth > f.tx.maxDepth {
		f.tx.maxDepth = depth
	}
	return withFrame(ctx, &frame{host: f.host, tx: f.tx, sender: caller, depth: depth}), nil
}

// CurrentTx returns the transaction collecting mutations for this call.
// Read-only calls (Host.View) have no transaction and get ErrReadOnly.
func CurrentTx(ctx context.Context) (*Tx, error) {
	f, ok := frameFrom(ctx)
	if !ok {
		return nil, ErrNoFrame
	}
	if f.tx == nil {
		return nil, ErrReadOnly
	}
	return f.tx, nil
}

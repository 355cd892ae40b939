package chain

import "errors"

var (
	ErrNoFrame           = errors.New("chain: call made outside a host execution")
	ErrReadOnly          = errors.New("chain: mutation attempted in a read-only call")
	ErrNestedExecution   = errors.New("chain: execution already in progress on this context")
	ErrCallDepthExceeded = errors.New("chain: call depth exceeded")
	ErrZeroSender        = errors.New("chain: sender is the zero address")
)


package chain

// Tx collects the undo records and commit hooks of one top-level call.
//
// Every state mutation performed while the call runs, by any registry it reaches, registers
// its inverse with OnRevert. If the call fails the inverses run newest first, which restores
// the exact pre-call state. Commit hooks run only after the call succeeded, outside the host
// lock.
type Tx struct {
	id       uint64
	undo     []func()
	commit   []func()
	maxDepth int
}

// ID returns the sequence number the transaction commits under.
func (tx *Tx) ID() uint64 {
	return tx.id
}

// OnRevert registers the inverse of a mutation that has just been applied.
func (tx *Tx) OnRevert(undo func()) {
	tx.undo = append(tx.undo, undo)
}

// OnCommit registers a hook that runs once the transaction has committed.
func (tx *Tx) OnCommit(hook func()) {
	tx.commit = append(tx.commit, hook)
}

func (tx *Tx) revert() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.commit = nil
}

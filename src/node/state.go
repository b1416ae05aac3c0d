package node

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle of a node: Running or Shutdown.
type State uint32

const (
	// Running is the state of an initialised node.
	Running State = iota
	// Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// SyncState is the position of the node in the sync state machine.
type SyncState uint32

const (
	// Idle means no sync is outstanding.
	Idle SyncState = iota
	// AwaitingReply means a BlockchainRequest was sent and the node waits for
	// the BlockchainReply.
	AwaitingReply
	// Validating means a reply arrived and is being checked.
	Validating
)

// String ...
func (s SyncState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingReply:
		return "AwaitingReply"
	case Validating:
		return "Validating"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
	wg    sync.WaitGroup
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}

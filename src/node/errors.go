package node

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNoPeers is returned when an operation needs at least one peer.
	ErrNoPeers = errors.New("no peers")

	// ErrSyncInProgress is returned by Sync while another sync is pending.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNotLonger is the reason a valid chain is rejected under the longest
	// chain policy.
	ErrNotLonger = errors.New("received chain is not longer than the local chain")

	// ErrNodeShutdown is returned by operations attempted after Shutdown.
	ErrNodeShutdown = errors.New("node is shut down")
)

// PeerUnreachableError reports a message that could not be delivered.
type PeerUnreachableError struct {
	Peer string
	Err  error
}

func (e *PeerUnreachableError) Error() string {
	return fmt.Sprintf("peer %s unreachable: %v", e.Peer, e.Err)
}

// Unwrap ...
func (e *PeerUnreachableError) Unwrap() error {
	return e.Err
}

// IsPeerUnreachable ...
func IsPeerUnreachable(err error) bool {
	var pu *PeerUnreachableError
	return errors.As(err, &pu)
}

// BroadcastError lists the peers a broadcast could not reach. The other peers
// did receive the message.
type BroadcastError struct {
	Failed map[string]error
}

// Peers returns the unreachable peers, sorted.
func (e *BroadcastError) Peers() []string {
	res := make([]string, 0, len(e.Failed))
	for p := range e.Failed {
		res = append(res, p)
	}
	sort.Strings(res)
	return res
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast failed for %d peer(s): %s",
		len(e.Failed),
		strings.Join(e.Peers(), ", "))
}

// IsBroadcastError ...
func IsBroadcastError(err error) bool {
	var be *BroadcastError
	return errors.As(err, &be)
}

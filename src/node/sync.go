package node

import (
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/sirupsen/logrus"
)

// SyncStatus is the outcome of a sync.
type SyncStatus int

const (
	// Adopted means the peer's chain replaced the local one.
	Adopted SyncStatus = iota
	// Rejected means the reply was invalid or lost the fork choice.
	Rejected
	// TimedOut means no reply arrived within SyncTimeout.
	TimedOut
	// Failed means the request could not be sent.
	Failed
)

// String ...
func (s SyncStatus) String() string {
	switch s {
	case Adopted:
		return "Adopted"
	case Rejected:
		return "Rejected"
	case TimedOut:
		return "TimedOut"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// SyncResult reports how a sync ended. Length is the local chain length
// afterwards. Err holds the rejection reason or the send failure.
type SyncResult struct {
	Peer   string
	Status SyncStatus
	Length int
	Err    error
}

type pendingSync struct {
	peer     string
	resultCh chan SyncResult
	timer    *time.Timer
}

func (n *Node) getSyncState() SyncState {
	n.syncLock.Lock()
	defer n.syncLock.Unlock()
	return n.syncState
}

// Sync requests the chain of a random peer. The returned channel receives
// exactly one SyncResult. Only one sync runs at a time.
func (n *Node) Sync() (<-chan SyncResult, error) {
	if n.getState() == Shutdown {
		return nil, ErrNodeShutdown
	}

	peer, ok := n.selector.Next()
	if !ok {
		return nil, ErrNoPeers
	}

	n.syncLock.Lock()
	if n.syncState != Idle {
		n.syncLock.Unlock()
		return nil, ErrSyncInProgress
	}
	p := &pendingSync{
		peer:     peer,
		resultCh: make(chan SyncResult, 1),
	}
	n.pendingSync = p
	n.syncState = AwaitingReply
	p.timer = time.AfterFunc(n.conf.SyncTimeout, func() {
		n.timeoutSync(p)
	})
	n.syncLock.Unlock()

	atomic.AddUint64(&n.stats.syncRequests, 1)
	n.selector.UpdateLast(peer)

	n.logger.WithField("peer", peer).Debug("Sync requested")

	if err := n.Send(peer, &message.BlockchainRequest{}); err != nil {
		n.finishSync(p, SyncResult{Peer: peer, Status: Failed, Err: err})
	}

	return p.resultCh, nil
}

// timeoutSync ends p with TimedOut unless a reply is already being validated.
func (n *Node) timeoutSync(p *pendingSync) {
	n.syncLock.Lock()
	current := n.pendingSync == p && n.syncState == AwaitingReply
	n.syncLock.Unlock()

	if current {
		n.finishSync(p, SyncResult{Peer: p.peer, Status: TimedOut})
	}
}

// claimSync moves an outstanding sync to Validating. It returns nil when no
// sync awaits a reply.
func (n *Node) claimSync() *pendingSync {
	n.syncLock.Lock()
	defer n.syncLock.Unlock()

	if n.pendingSync == nil || n.syncState != AwaitingReply {
		return nil
	}
	n.syncState = Validating
	return n.pendingSync
}

// finishSync delivers res for p and returns the state machine to Idle. It is a
// no-op if p is no longer the pending sync.
func (n *Node) finishSync(p *pendingSync, res SyncResult) {
	n.syncLock.Lock()
	if n.pendingSync != p {
		n.syncLock.Unlock()
		return
	}
	p.timer.Stop()
	n.pendingSync = nil
	n.syncState = Idle
	n.syncLock.Unlock()

	if res.Length == 0 {
		n.chainLock.Lock()
		if n.chain != nil {
			res.Length = n.chain.Len()
		}
		n.chainLock.Unlock()
	}

	switch res.Status {
	case Adopted:
		atomic.AddUint64(&n.stats.syncAdopted, 1)
	case TimedOut, Failed:
		atomic.AddUint64(&n.stats.syncErrors, 1)
	}

	n.logger.WithFields(logrus.Fields{
		"peer":   res.Peer,
		"status": res.Status.String(),
		"length": res.Length,
		"error":  res.Err,
	}).Debug("Sync done")

	n.observer.OnSync(res)
	p.resultCh <- res
}

func (n *Node) abortSync() {
	n.syncLock.Lock()
	p := n.pendingSync
	n.syncLock.Unlock()

	if p != nil {
		n.finishSync(p, SyncResult{Peer: p.peer, Status: Failed, Err: ErrNodeShutdown})
	}
}

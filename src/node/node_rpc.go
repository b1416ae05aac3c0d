package node

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/murmur/src/block"
	"github.com/mosaicnetworks/murmur/src/chain"
	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/net"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// processRPC dispatches an inbound message to the matching handler and
// answers the transport once done.
func (n *Node) processRPC(rpc net.RPC) {
	m := rpc.Message

	n.logger.WithFields(logrus.Fields{
		"sender": m.Sender,
		"type":   m.Payload.Type(),
	}).Debug("Processing RPC")

	err := m.Payload.Accept(m.Sender, n)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"sender": m.Sender,
			"type":   m.Payload.Type(),
			"error":  err,
		}).Warn("Processing RPC")
	}

	rpc.Respond(err)
}

// HandleChat implements message.Handler. Chat messages only reach the
// observer.
func (n *Node) HandleChat(sender string, p *message.Chat) error {
	n.logger.WithFields(logrus.Fields{
		"sender":  sender,
		"message": p.Message,
	}).Info("Chat")

	n.observer.OnChat(sender, p.Message)
	return nil
}

// HandlePeerDiscovery implements message.Handler. The sender becomes a peer
// and receives our peer list.
func (n *Node) HandlePeerDiscovery(sender string, p *message.PeerDiscovery) error {
	n.AddPeer(sender)

	return n.Send(sender, &message.PeerGossip{Peers: n.peers.Addresses()})
}

// HandlePeerGossip implements message.Handler.
func (n *Node) HandlePeerGossip(sender string, p *message.PeerGossip) error {
	added := n.peers.Merge(p.Peers, n.localAddr)

	if len(added) > 0 {
		n.logger.WithFields(logrus.Fields{
			"sender": sender,
			"added":  added,
		}).Debug("Peers learnt from gossip")
	}
	return nil
}

// HandleBlockchainRequest implements message.Handler. It replies with a
// snapshot of the chain taken under the lock and sent after release.
func (n *Node) HandleBlockchainRequest(sender string, p *message.BlockchainRequest) error {
	blocks := n.Blocks()

	return n.Send(sender, &message.BlockchainReply{Chain: blocks})
}

// HandleBlockchainReply implements message.Handler. A reply that validates
// replaces the local chain according to the sync policy. It also completes an
// outstanding Sync.
func (n *Node) HandleBlockchainReply(sender string, p *message.BlockchainReply) error {
	pending := n.claimSync()

	adopted, err := n.applyChain(sender, p.Chain)

	if pending != nil {
		res := SyncResult{Peer: sender, Status: Rejected, Err: err}
		if adopted {
			res.Status = Adopted
		}
		n.finishSync(pending, res)
	}

	if err == ErrNotLonger {
		return nil
	}
	return err
}

// applyChain validates blocks and applies the fork choice.
func (n *Node) applyChain(sender string, blocks []*block.Block) (bool, error) {
	n.chainLock.Lock()
	defer n.chainLock.Unlock()

	if err := chain.Validate(blocks, n.chain.Difficulty()); err != nil {
		n.logger.WithFields(logrus.Fields{
			"sender": sender,
			"length": len(blocks),
			"error":  err,
		}).Warn("Received chain is invalid")
		return false, err
	}

	if n.conf.SyncPolicy != config.SyncReplace && len(blocks) <= n.chain.Len() {
		n.logger.WithFields(logrus.Fields{
			"sender": sender,
			"length": len(blocks),
			"local":  n.chain.Len(),
		}).Debug("Received chain is not longer")
		return false, ErrNotLonger
	}

	if err := n.chain.Replace(blocks); err != nil {
		return false, err
	}

	if err := n.store.Reset(n.chain.Blocks()); err != nil {
		n.logger.WithError(err).Error("Persisting chain")
	}

	// Mark adopted blocks so that late relays of them are skipped.
	for _, b := range blocks {
		n.seen.SetDefault(b.Hash, struct{}{})
	}

	n.logger.WithFields(logrus.Fields{
		"sender": sender,
		"length": len(blocks),
		"tail":   blocks[len(blocks)-1].Hash,
	}).Info("Chain replaced")

	return true, nil
}

// HandleBlockchainTx implements message.Handler. A block is appended at most
// once; when accepted it is persisted and relayed to every peer but the
// sender. A block further ahead than our tail makes us ask the sender for its
// chain.
func (n *Node) HandleBlockchainTx(sender string, p *message.BlockchainTx) error {
	b := p.Block
	if b == nil {
		return fmt.Errorf("BlockchainTx without block")
	}

	if err := n.seen.Add(b.Hash, struct{}{}, cache.DefaultExpiration); err != nil {
		n.logger.WithFields(logrus.Fields{
			"sender": sender,
			"hash":   b.Hash,
		}).Debug("Block already seen")
		return nil
	}

	if err := n.appendBlock(b); err != nil {
		n.seen.Delete(b.Hash)
		atomic.AddUint64(&n.stats.blocksRejected, 1)

		n.logger.WithFields(logrus.Fields{
			"sender": sender,
			"index":  b.Index,
			"hash":   b.Hash,
			"error":  err,
		}).Warn("Block rejected")

		if chain.IsChain(err, chain.LinkageMismatch) && b.Index > n.LatestBlock().Index {
			n.goFunc(func() {
				if err := n.Send(sender, &message.BlockchainRequest{}); err != nil {
					n.logger.WithError(err).Debug("Requesting chain from block sender")
				}
			})
		}
		return err
	}

	atomic.AddUint64(&n.stats.blocksReceived, 1)

	n.logger.WithFields(logrus.Fields{
		"sender": sender,
		"index":  b.Index,
		"hash":   b.Hash,
		"body":   block.Body(b.Data),
	}).Info("Block added")

	n.observer.OnBlock(sender, b)

	n.goFunc(func() {
		start := time.Now()
		err := n.yellExcept(&message.BlockchainTx{Block: b}, sender)
		n.logger.WithFields(logrus.Fields{
			"hash":     b.Hash,
			"duration": time.Since(start).Nanoseconds(),
			"error":    err,
		}).Debug("Block relayed")
		n.logStats()
	})

	return nil
}

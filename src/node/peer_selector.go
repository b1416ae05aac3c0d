package node

import (
	"math/rand"
	"sync"

	"github.com/mosaicnetworks/murmur/src/peers"
)

// PeerSelector defines and interface for Peer Selectors
type PeerSelector interface {
	Peers() *peers.PeerSet
	UpdateLast(peer string)
	Next() (string, bool)
}

// RandomPeerSelector picks sync targets at random, avoiding the last one used
// when there is a choice.
type RandomPeerSelector struct {
	peers *peers.PeerSet
	self  string

	lock sync.Mutex
	last string
}

// NewRandomPeerSelector is a factory method that returns a new instance of
// RandomPeerSelector
func NewRandomPeerSelector(peerSet *peers.PeerSet, self string) *RandomPeerSelector {
	return &RandomPeerSelector{
		peers: peerSet,
		self:  self,
	}
}

// Peers returns the underlying PeerSet.
func (ps *RandomPeerSelector) Peers() *peers.PeerSet {
	return ps.peers
}

// UpdateLast sets the last peer
func (ps *RandomPeerSelector) UpdateLast(peer string) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.last = peer
}

// Next returns the next peer, or false if there are no peers other than self.
func (ps *RandomPeerSelector) Next() (string, bool) {
	selectable := exclude(ps.peers.Addresses(), ps.self)

	if len(selectable) == 0 {
		return "", false
	}

	if len(selectable) > 1 {
		ps.lock.Lock()
		last := ps.last
		ps.lock.Unlock()
		selectable = exclude(selectable, last)
	}

	return selectable[rand.Intn(len(selectable))], true
}

func exclude(addrs []string, addr string) []string {
	res := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a != addr {
			res = append(res, a)
		}
	}
	return res
}

package peers

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// PeerSet is a deduplicated set of peer addresses.
type PeerSet struct {
	sync.RWMutex
	byAddr map[string]struct{}
	sorted []string
}

// NewPeerSet creates a PeerSet from addrs. Empty and duplicate addresses are
// skipped.
func NewPeerSet(addrs []string) *PeerSet {
	ps := &PeerSet{
		byAddr: make(map[string]struct{}),
	}
	for _, a := range addrs {
		ps.addRaw(a)
	}
	ps.internalSort()
	return ps
}

// addRaw is not protected by the mutex.
func (ps *PeerSet) addRaw(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	if _, ok := ps.byAddr[addr]; ok {
		return false
	}
	ps.byAddr[addr] = struct{}{}
	return true
}

func (ps *PeerSet) internalSort() {
	res := make([]string, 0, len(ps.byAddr))
	for a := range ps.byAddr {
		res = append(res, a)
	}
	sort.Strings(res)
	ps.sorted = res
}

// Add inserts addr and reports whether it was new.
func (ps *PeerSet) Add(addr string) bool {
	ps.Lock()
	defer ps.Unlock()

	if !ps.addRaw(addr) {
		return false
	}
	ps.internalSort()
	return true
}

// Merge inserts every address except those listed in exclude, and returns the
// ones that were new.
func (ps *PeerSet) Merge(addrs []string, exclude ...string) []string {
	ps.Lock()
	defer ps.Unlock()

	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}

	added := []string{}
	for _, a := range addrs {
		if _, ok := skip[strings.TrimSpace(a)]; ok {
			continue
		}
		if ps.addRaw(a) {
			added = append(added, strings.TrimSpace(a))
		}
	}
	if len(added) > 0 {
		ps.internalSort()
	}
	return added
}

// Remove deletes addr and reports whether it was present.
func (ps *PeerSet) Remove(addr string) bool {
	ps.Lock()
	defer ps.Unlock()

	if _, ok := ps.byAddr[addr]; !ok {
		return false
	}
	delete(ps.byAddr, addr)
	ps.internalSort()
	return true
}

// Contains ...
func (ps *PeerSet) Contains(addr string) bool {
	ps.RLock()
	defer ps.RUnlock()

	_, ok := ps.byAddr[addr]
	return ok
}

// Len ...
func (ps *PeerSet) Len() int {
	ps.RLock()
	defer ps.RUnlock()

	return len(ps.byAddr)
}

// Addresses returns a sorted snapshot of the set.
func (ps *PeerSet) Addresses() []string {
	ps.RLock()
	defer ps.RUnlock()

	res := make([]string, len(ps.sorted))
	copy(res, ps.sorted)
	return res
}

// Random picks an address uniformly among those not in exclude. It returns
// false when no candidate is left.
func (ps *PeerSet) Random(exclude ...string) (string, bool) {
	candidates := ps.Addresses()

	if len(exclude) > 0 {
		skip := make(map[string]struct{}, len(exclude))
		for _, e := range exclude {
			skip[e] = struct{}{}
		}
		filtered := candidates[:0]
		for _, c := range candidates {
			if _, ok := skip[c]; !ok {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	if len(candidates) == 0 {
		return "", false
	}
	return candidates[rand.Intn(len(candidates))], true
}

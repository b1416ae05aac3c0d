package chain

import (
	"strconv"
	"sync"

	"github.com/mosaicnetworks/murmur/src/block"
)

// InmemStore keeps blocks in memory.
type InmemStore struct {
	sync.RWMutex
	blocks []*block.Block
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{}
}

// GetBlock implements Store.
func (s *InmemStore) GetBlock(index uint64) (*block.Block, error) {
	s.RLock()
	defer s.RUnlock()

	if index >= uint64(len(s.blocks)) || s.blocks[index] == nil {
		return nil, NewChainErr("Block", KeyNotFound, strconv.FormatUint(index, 10))
	}
	return s.blocks[index], nil
}

// SetBlock implements Store. Setting an index past the end extends the
// sequence, leaving nil gaps.
func (s *InmemStore) SetBlock(b *block.Block) error {
	s.Lock()
	defer s.Unlock()

	for uint64(len(s.blocks)) <= b.Index {
		s.blocks = append(s.blocks, nil)
	}
	s.blocks[b.Index] = b
	return nil
}

// LastBlockIndex implements Store.
func (s *InmemStore) LastBlockIndex() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.blocks) - 1
}

// Blocks implements Store.
func (s *InmemStore) Blocks() ([]*block.Block, error) {
	s.RLock()
	defer s.RUnlock()

	res := make([]*block.Block, 0, len(s.blocks))
	for i, b := range s.blocks {
		if b == nil {
			return nil, NewChainErr("Block", KeyNotFound, strconv.Itoa(i))
		}
		res = append(res, b)
	}
	return res, nil
}

// Reset implements Store.
func (s *InmemStore) Reset(blocks []*block.Block) error {
	s.Lock()
	defer s.Unlock()

	s.blocks = make([]*block.Block, len(blocks))
	copy(s.blocks, blocks)
	return nil
}

// Close implements Store.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements Store.
func (s *InmemStore) StorePath() string {
	return ""
}

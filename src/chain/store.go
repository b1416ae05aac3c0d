package chain

import "github.com/mosaicnetworks/murmur/src/block"

// Store is an interface for durable block backends. Stores do not validate;
// the node only writes blocks the Chain accepted.
type Store interface {
	// GetBlock returns a block by index.
	GetBlock(index uint64) (*block.Block, error)
	// SetBlock stores a block under its index.
	SetBlock(*block.Block) error
	// LastBlockIndex returns the index of the last stored block, or -1.
	LastBlockIndex() int
	// Blocks returns every stored block in index order.
	Blocks() ([]*block.Block, error)
	// Reset replaces the whole content with blocks.
	Reset(blocks []*block.Block) error
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}

// LoadFromStore rebuilds and validates a chain from a store. It returns an
// EmptyChain error when the store holds no block.
func LoadFromStore(s Store, difficulty int) (*Chain, error) {
	blocks, err := s.Blocks()
	if err != nil {
		return nil, err
	}
	return FromBlocks(blocks, difficulty)
}

// Package chain holds the validated, ordered sequence of blocks kept by a
// node.
//
// A Chain is never empty and starts with a genesis block. Every block extends
// its predecessor (index + 1, prev_hash = predecessor hash), hashes to its
// stored hash and meets the chain difficulty. Chain is not safe for concurrent
// use; the node guards it with its own lock.
package chain

import (
	"encoding/json"
	"strconv"

	"github.com/mosaicnetworks/murmur/src/block"
)

// Chain is the local copy of the ledger.
type Chain struct {
	blocks     []*block.Block
	difficulty int
}

// NewChain starts a chain from a genesis block.
func NewChain(genesis *block.Block, difficulty int) (*Chain, error) {
	if err := checkGenesis(genesis, difficulty); err != nil {
		return nil, err
	}
	return &Chain{
		blocks:     []*block.Block{genesis},
		difficulty: difficulty,
	}, nil
}

// FromBlocks builds a chain from an arbitrary sequence, validating it fully.
func FromBlocks(blocks []*block.Block, difficulty int) (*Chain, error) {
	if err := Validate(blocks, difficulty); err != nil {
		return nil, err
	}
	c := &Chain{
		blocks:     make([]*block.Block, len(blocks)),
		difficulty: difficulty,
	}
	copy(c.blocks, blocks)
	return c, nil
}

// Difficulty returns the number of leading zeros required of every block.
func (c *Chain) Difficulty() int {
	return c.difficulty
}

// AddBlock appends b if it extends the tail, hashes correctly and meets the
// difficulty. On failure the chain is unchanged.
func (c *Chain) AddBlock(b *block.Block) error {
	if err := checkSuccessor(c.LatestBlock(), b, c.difficulty); err != nil {
		return err
	}
	c.blocks = append(c.blocks, b)
	return nil
}

// LatestBlock returns the tail.
func (c *Chain) LatestBlock() *block.Block {
	return c.blocks[len(c.blocks)-1]
}

// Len returns the number of blocks, genesis included.
func (c *Chain) Len() int {
	return len(c.blocks)
}

// Blocks returns a copy of the block slice.
func (c *Chain) Blocks() []*block.Block {
	res := make([]*block.Block, len(c.blocks))
	copy(res, c.blocks)
	return res
}

// Block returns the block at index i.
func (c *Chain) Block(i uint64) (*block.Block, error) {
	if i >= uint64(len(c.blocks)) {
		return nil, NewChainErr("Block", KeyNotFound, strconv.FormatUint(i, 10))
	}
	return c.blocks[i], nil
}

// Replace validates blocks and swaps them in. On failure the chain is
// unchanged.
func (c *Chain) Replace(blocks []*block.Block) error {
	if err := Validate(blocks, c.difficulty); err != nil {
		return err
	}
	nb := make([]*block.Block, len(blocks))
	copy(nb, blocks)
	c.blocks = nb
	return nil
}

// ToJSON encodes the chain as a JSON array of blocks.
func (c *Chain) ToJSON(pretty bool) (string, error) {
	var (
		raw []byte
		err error
	)
	if pretty {
		raw, err = json.MarshalIndent(c.blocks, "", "  ")
	} else {
		raw, err = json.Marshal(c.blocks)
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Validate checks the full chain invariant on an arbitrary sequence.
func Validate(blocks []*block.Block, difficulty int) error {
	if len(blocks) == 0 {
		return NewChainErr("Chain", EmptyChain, "")
	}
	if err := checkGenesis(blocks[0], difficulty); err != nil {
		return err
	}
	for i := 1; i < len(blocks); i++ {
		if err := checkSuccessor(blocks[i-1], blocks[i], difficulty); err != nil {
			return err
		}
	}
	return nil
}

func checkGenesis(g *block.Block, difficulty int) error {
	if g == nil || !g.IsGenesis() {
		return NewChainErr("Block", BadGenesis, "0")
	}
	if !block.MeetsDifficulty(g.Hash, difficulty) {
		return NewChainErr("Block", ProofOfWorkUnmet, "0")
	}
	return nil
}

func checkSuccessor(prev, b *block.Block, difficulty int) error {
	if b == nil {
		return NewChainErr("Block", LinkageMismatch, "nil")
	}

	key := strconv.FormatUint(b.Index, 10)

	if b.Index != prev.Index+1 || b.PrevHash != prev.Hash {
		return NewChainErr("Block", LinkageMismatch, key)
	}
	if b.HashBlock() != b.Hash {
		return NewChainErr("Block", HashMismatch, key)
	}
	if !block.MeetsDifficulty(b.Hash, difficulty) {
		return NewChainErr("Block", ProofOfWorkUnmet, key)
	}
	return nil
}

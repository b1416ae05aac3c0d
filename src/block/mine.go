package block

import (
	"context"
)

// DefaultDifficulty is the number of leading '0' hex characters a block hash
// needs unless configured otherwise.
const DefaultDifficulty = 5

// GenesisTimestamp is the fixed timestamp of the genesis block.
const GenesisTimestamp uint64 = 0

// GenesisData is the payload of the genesis block.
const GenesisData = Text("genesis")

// ctxCheckInterval is the number of nonces tried between context checks.
const ctxCheckInterval = 4096

// Mine searches nonces upwards from the current one until the hash has
// difficulty leading zeros. It returns ctx.Err() if ctx is cancelled first,
// leaving the block with the last nonce tried.
func (b *Block) Mine(ctx context.Context, difficulty int) error {
	data := canonical(b.Data)

	b.Hash = b.hashWith(data)

	for i := 1; !MeetsDifficulty(b.Hash, difficulty); i++ {
		if i%ctxCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		b.Nonce++
		b.Hash = b.hashWith(data)
	}

	return nil
}

// LeadingZeros counts the leading '0' characters of hash.
func LeadingZeros(hash string) int {
	n := 0
	for n < len(hash) && hash[n] == '0' {
		n++
	}
	return n
}

// MeetsDifficulty reports whether hash has at least difficulty leading zeros.
func MeetsDifficulty(hash string, difficulty int) bool {
	return LeadingZeros(hash) >= difficulty
}

// Genesis mines the genesis block at difficulty. Every node using the same
// difficulty derives the same block.
func Genesis(ctx context.Context, difficulty int) (*Block, error) {
	g := NewAt(0, GenesisTimestamp, GenesisData, "")
	if err := g.Mine(ctx, difficulty); err != nil {
		return nil, err
	}
	return g, nil
}

// IsGenesis reports whether b has the shape of a genesis block: index 0, no
// predecessor and a hash matching its content.
func (b *Block) IsGenesis() bool {
	return b.Index == 0 && b.PrevHash == "" && b.Hash == b.HashBlock()
}

package block

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/mosaicnetworks/murmur/src/crypto"
)

// ErrClock is returned when the wall clock reads before the unix epoch.
var ErrClock = errors.New("system clock is before the unix epoch")

// now is replaced in tests.
var now = time.Now

// Block is a hash-linked, proof-of-work sealed unit of the ledger.
type Block struct {
	Index     uint64
	Timestamp uint64
	Nonce     uint64
	Data      Data
	PrevHash  string
	Hash      string
	Signature string
}

// New creates a block stamped with the current time, nonce 0 and its hash
// computed. It does not mine.
func New(index uint64, data Data, prevHash string) (*Block, error) {
	secs := now().Unix()
	if secs < 0 {
		return nil, ErrClock
	}
	return NewAt(index, uint64(secs), data, prevHash), nil
}

// NewAt is New with an explicit timestamp.
func NewAt(index, timestamp uint64, data Data, prevHash string) *Block {
	b := &Block{
		Index:     index,
		Timestamp: timestamp,
		Data:      data,
		PrevHash:  prevHash,
	}
	b.Hash = b.HashBlock()
	return b
}

// Next creates the successor of previous carrying data.
func Next(previous *Block, data Data) (*Block, error) {
	return New(previous.Index+1, data, previous.Hash)
}

// HashBlock computes the hash of the block from its current fields.
func (b *Block) HashBlock() string {
	return b.hashWith(canonical(b.Data))
}

func (b *Block) hashWith(data []byte) string {
	return crypto.SHA256Hex(
		[]byte(strconv.FormatUint(b.Index, 10)),
		[]byte(strconv.FormatUint(b.Timestamp, 10)),
		[]byte(strconv.FormatUint(b.Nonce, 10)),
		data,
		[]byte(b.PrevHash),
	)
}

func canonical(d Data) []byte {
	if d == nil {
		return nil
	}
	return d.Canonical()
}

// Ref returns a reference to b, usable as the Reply of a Post.
func (b *Block) Ref() *BlockRef {
	return &BlockRef{Index: b.Index, Hash: b.Hash}
}

type blockJSON struct {
	Index     uint64          `json:"index"`
	Timestamp uint64          `json:"timestamp"`
	Nonce     uint64          `json:"nonce"`
	Data      json.RawMessage `json:"data"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
	Signature string          `json:"signature,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (b *Block) MarshalJSON() ([]byte, error) {
	data := json.RawMessage("null")
	if b.Data != nil {
		raw, err := json.Marshal(b.Data)
		if err != nil {
			return nil, err
		}
		data = raw
	}

	return json.Marshal(blockJSON{
		Index:     b.Index,
		Timestamp: b.Timestamp,
		Nonce:     b.Nonce,
		Data:      data,
		PrevHash:  b.PrevHash,
		Hash:      b.Hash,
		Signature: b.Signature,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Block) UnmarshalJSON(raw []byte) error {
	var w blockJSON
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}

	data, err := unmarshalData(w.Data)
	if err != nil {
		return err
	}

	*b = Block{
		Index:     w.Index,
		Timestamp: w.Timestamp,
		Nonce:     w.Nonce,
		Data:      data,
		PrevHash:  w.PrevHash,
		Hash:      w.Hash,
		Signature: w.Signature,
	}

	return nil
}

// Marshal returns the JSON encoding of the block.
func (b *Block) Marshal() ([]byte, error) {
	bf := bytes.NewBuffer([]byte{})
	enc := json.NewEncoder(bf)
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return bytes.TrimRight(bf.Bytes(), "\n"), nil
}

// Unmarshal decodes the output of Marshal into b.
func (b *Block) Unmarshal(data []byte) error {
	return json.Unmarshal(data, b)
}

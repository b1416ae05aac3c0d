package block

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ugorji/go/codec"
)

// Data is the opaque payload of a Block. It is either a Text or a Post.
type Data interface {
	// Canonical returns the bytes that enter the block hash.
	Canonical() []byte
	isData()
}

// Text is a bare string payload. Its JSON form is a JSON string and its
// canonical form is the string itself.
type Text string

// Canonical implements Data.
func (t Text) Canonical() []byte {
	return []byte(t)
}

func (Text) isData() {}

// BlockRef points at another block, by index and hash.
type BlockRef struct {
	Index uint64 `json:"index" codec:"index"`
	Hash  string `json:"hash" codec:"hash"`
}

// Post is a user submitted payload, optionally replying to an earlier block.
type Post struct {
	Body  string
	Reply *BlockRef
}

// postType is the tag carried by the JSON form of a Post.
const postType = "Post"

type postWire struct {
	Type  string    `json:"type" codec:"type"`
	Body  string    `json:"body" codec:"body"`
	Reply *BlockRef `json:"reply" codec:"reply"`
}

func (p Post) wire() postWire {
	return postWire{Type: postType, Body: p.Body, Reply: p.Reply}
}

// Canonical implements Data with the canonical JSON encoding of the Post.
func (p Post) Canonical() []byte {
	var out []byte
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoderBytes(&out, jh)
	if err := enc.Encode(p.wire()); err != nil {
		// only reachable on a codec bug; the body still pins the hash
		return []byte(p.Body)
	}
	return out
}

func (Post) isData() {}

// MarshalJSON encodes {"type":"Post","body":...,"reply":...}.
func (p Post) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Post) UnmarshalJSON(raw []byte) error {
	var w postWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	if w.Type != postType {
		return fmt.Errorf("unknown data type %q", w.Type)
	}
	p.Body = w.Body
	p.Reply = w.Reply
	return nil
}

// unmarshalData decodes the JSON form of a Data value. null yields nil.
func unmarshalData(raw json.RawMessage) (Data, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return Text(s), nil
	case '{':
		var p Post
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, err
		}
		return p, nil
	}

	return nil, fmt.Errorf("invalid block data: %s", trimmed)
}

// Body returns a human readable form of d.
func Body(d Data) string {
	switch v := d.(type) {
	case Text:
		return string(v)
	case Post:
		if v.Reply != nil {
			return fmt.Sprintf("%s (reply to #%d)", v.Body, v.Reply.Index)
		}
		return v.Body
	}
	return ""
}

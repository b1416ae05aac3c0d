// Package message defines the envelope exchanged between murmur nodes and its
// wire codec.
//
// A Message is encoded as one JSON object per newline terminated frame:
//
//	{"sender":"<addr>","payload":{"type":"<Variant>",...fields}}
//
// The payload is a tagged variant; see Payload for the closed set.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message is the envelope of every exchange. Sender is the listen address of
// the originating node, so replies can be routed back to it.
type Message struct {
	Sender  string
	Payload Payload
}

// New ...
func New(sender string, payload Payload) *Message {
	return &Message{
		Sender:  sender,
		Payload: payload,
	}
}

// DecodeError reports a frame that is not a valid Message.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("message decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("message decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a *DecodeError.
func IsDecodeError(err error) bool {
	_, ok := err.(*DecodeError)
	return ok
}

type wireMessage struct {
	Sender  *string         `json:"sender"`
	Payload json.RawMessage `json:"payload"`
}

type wireTag struct {
	Type *string `json:"type"`
}

// MarshalJSON implements json.Marshaler.
func (m *Message) MarshalJSON() ([]byte, error) {
	if m.Payload == nil {
		return nil, fmt.Errorf("message without payload")
	}

	payload, err := marshalPayload(m.Payload)
	if err != nil {
		return nil, err
	}

	sender := m.Sender
	return json.Marshal(wireMessage{
		Sender:  &sender,
		Payload: payload,
	})
}

// marshalPayload encodes the variant fields with the type tag in front.
func marshalPayload(p Payload) ([]byte, error) {
	fields, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(p.Type())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if inner := bytes.TrimSpace(fields[1 : len(fields)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Errors are *DecodeError.
func (m *Message) UnmarshalJSON(raw []byte) error {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return &DecodeError{Reason: "invalid envelope", Err: err}
	}
	if w.Sender == nil {
		return &DecodeError{Reason: "missing sender"}
	}
	if len(w.Payload) == 0 || bytes.Equal(w.Payload, []byte("null")) {
		return &DecodeError{Reason: "missing payload"}
	}

	var tag wireTag
	if err := json.Unmarshal(w.Payload, &tag); err != nil {
		return &DecodeError{Reason: "invalid payload", Err: err}
	}
	if tag.Type == nil {
		return &DecodeError{Reason: "missing payload type"}
	}

	payload, ok := newPayload(*tag.Type)
	if !ok {
		return &DecodeError{Reason: fmt.Sprintf("unknown payload type %q", *tag.Type)}
	}
	if err := json.Unmarshal(w.Payload, payload); err != nil {
		return &DecodeError{Reason: fmt.Sprintf("invalid %s payload", *tag.Type), Err: err}
	}
	if tx, ok := payload.(*BlockchainTx); ok && tx.Block == nil {
		return &DecodeError{Reason: "BlockchainTx without block"}
	}

	m.Sender = *w.Sender
	m.Payload = payload
	return nil
}

// Encode returns the wire frame of m, newline included.
func Encode(m *Message) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}

// Decode parses one frame. Surrounding whitespace, including the trailing
// newline, is ignored. Any failure is a *DecodeError.
func Decode(frame []byte) (*Message, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return nil, &DecodeError{Reason: "empty frame"}
	}

	m := new(Message)
	if err := json.Unmarshal(frame, m); err != nil {
		if de, ok := err.(*DecodeError); ok {
			return nil, de
		}
		return nil, &DecodeError{Reason: "invalid frame", Err: err}
	}
	return m, nil
}

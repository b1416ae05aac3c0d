package net

import (
	"time"

	"github.com/mosaicnetworks/murmur/src/message"
)

// Transport provides an interface for network transports to allow a node to
// exchange messages with other nodes.
type Transport interface {

	// Listen starts accepting inbound messages. It blocks until Close.
	Listen()

	// Consumer returns a channel that can be used to consume and respond to
	// inbound messages.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Send delivers one message to target. It returns once the frame is
	// written; there is no application level acknowledgement.
	Send(target string, m *message.Message) error

	// Close permanently closes a transport, stopping any associated goroutines
	// and freeing other resources.
	Close() error
}

// Options tunes a NetworkTransport.
type Options struct {
	// MaxPool is the number of idle outbound connections kept per target.
	MaxPool int
	// Timeout is applied to dials and writes.
	Timeout time.Duration
	// DialRetries is the number of extra dial attempts, with exponential
	// backoff starting at DialBackoff.
	DialRetries uint64
	DialBackoff time.Duration
	// RateLimit caps the inbound messages per second per connection. Zero
	// means unlimited.
	RateLimit float64
	RateBurst int
	// MaxFrameSize bounds the length of an inbound frame. Longer frames break
	// the framing and close the connection.
	MaxFrameSize int
}

// DefaultOptions ...
func DefaultOptions() Options {
	return Options{
		MaxPool:      2,
		Timeout:      time.Second,
		DialRetries:  2,
		DialBackoff:  100 * time.Millisecond,
		RateLimit:    0,
		RateBurst:    50,
		MaxFrameSize: 32 << 20,
	}
}

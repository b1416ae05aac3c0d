package net

import "github.com/mosaicnetworks/murmur/src/message"

// RPC wraps an inbound Message. The consumer must call Respond once it is done
// with the message; the transport reads the next frame of the same connection
// only after that.
type RPC struct {
	Message  *message.Message
	RespChan chan<- error
}

// Respond reports the outcome of processing the message.
func (r *RPC) Respond(err error) {
	r.RespChan <- err
}

// Package net implements the transports murmur nodes use to exchange
// messages.
//
// There are two implementations of the Transport interface:
//
// - TCP: a NetworkTransport over plain TCP. Nodes listen on a bind address and
// announce an advertise address, which other nodes use both to reach them and
// as the sender of their messages.
//
// - Inmem: an in-memory transport used for testing.
//
// Messages are newline delimited JSON frames (see the message package). The
// transport does not answer messages; a node replies by sending a new message
// to the sender's address.
package net

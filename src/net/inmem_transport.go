package net

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/murmur/src/message"
)

// NewInmemAddr returns a new in-memory addr with a random UUID.
func NewInmemAddr() string {
	return uuid.New().String()
}

// InmemTransport implements the Transport interface, to allow murmur nodes to
// be tested in-memory without going over a network. Messages go through the
// wire codec, and each sender-target pair behaves like one connection: its
// messages are consumed one at a time, in order.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	peers      map[string]*InmemTransport
	pipes      map[string]*inmemPipe
	timeout    time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

type inmemPipe struct {
	queue chan *message.Message
	done  chan struct{}
}

// NewInmemTransport is used to initialize a new transport and generates a
// random local address if none is specified
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		pipes:      make(map[string]*inmemPipe),
		timeout:    time.Second,
		shutdownCh: make(chan struct{}),
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// IsShutdown ...
func (i *InmemTransport) IsShutdown() bool {
	select {
	case <-i.shutdownCh:
		return true
	default:
		return false
	}
}

// Send implements the Transport interface.
func (i *InmemTransport) Send(target string, m *message.Message) error {
	if i.IsShutdown() {
		return ErrTransportShutdown
	}

	i.Lock()
	peer, ok := i.peers[target]
	if !ok || peer.IsShutdown() {
		i.Unlock()
		return fmt.Errorf("failed to connect to peer: %v", target)
	}
	pipe, ok := i.pipes[target]
	if !ok {
		pipe = &inmemPipe{
			queue: make(chan *message.Message, 64),
			done:  make(chan struct{}),
		}
		i.pipes[target] = pipe
		go i.runPipe(peer, pipe)
	}
	i.Unlock()

	// Round trip through the codec so that nodes never share memory.
	frame, err := message.Encode(m)
	if err != nil {
		return err
	}
	copied, err := message.Decode(frame)
	if err != nil {
		return err
	}

	select {
	case pipe.queue <- copied:
		return nil
	case <-pipe.done:
		return fmt.Errorf("failed to connect to peer: %v", target)
	case <-time.After(i.timeout):
		return fmt.Errorf("command timed out")
	}
}

func (i *InmemTransport) runPipe(peer *InmemTransport, pipe *inmemPipe) {
	for {
		var m *message.Message
		select {
		case m = <-pipe.queue:
		case <-pipe.done:
			return
		case <-i.shutdownCh:
			return
		}

		respCh := make(chan error, 1)
		select {
		case peer.consumerCh <- RPC{Message: m, RespChan: respCh}:
		case <-pipe.done:
			return
		case <-peer.shutdownCh:
			return
		}

		select {
		case <-respCh:
		case <-pipe.done:
			return
		case <-peer.shutdownCh:
			return
		}
	}
}

// Connect is used to connect this transport to another transport for a given
// peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
	if pipe, ok := i.pipes[peer]; ok {
		close(pipe.done)
		delete(i.pipes, peer)
	}
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	for _, pipe := range i.pipes {
		close(pipe.done)
	}
	i.peers = make(map[string]*InmemTransport)
	i.pipes = make(map[string]*inmemPipe)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.shutdownOnce.Do(func() {
		close(i.shutdownCh)
	})
	i.DisconnectAll()
	return nil
}

// Listen blocks until the transport is closed; there is nothing to accept.
func (i *InmemTransport) Listen() {
	<-i.shutdownCh
}

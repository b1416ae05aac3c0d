package net

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const bufSize = 64 * 1024

// liveCheckWait bounds the read used to tell whether a pooled connection was
// closed by its remote end.
const liveCheckWait = time.Millisecond

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrFrameTooLarge is returned when an inbound frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")
)

/*
NetworkTransport exchanges murmur messages with remote nodes over an
underlying stream layer, such as plain TCP.

Each message is one JSON object followed by a newline. Messages are one-way:
nothing is written back on an inbound connection. Frames of one inbound
connection are handed to the consumer one at a time, in order; separate
connections are served concurrently.

Outbound connections are pooled per target and reused.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	connPool     map[string][]*netConn
	connPoolLock sync.Mutex

	inbound     map[net.Conn]struct{}
	inboundLock sync.Mutex

	consumeCh chan RPC

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc

	stream StreamLayer
	opts   Options
}

type netConn struct {
	target string
	conn   net.Conn
	w      *bufio.Writer
}

// Release closes the underlying connection
func (n *netConn) Release() error {
	return n.conn.Close()
}

// alive reports whether the remote end still holds the connection open.
// Nothing is ever written back on an outbound connection, so a read that does
// not time out means EOF, a reset or unexpected data, and the connection is
// unusable.
func (n *netConn) alive() bool {
	if err := n.conn.SetReadDeadline(time.Now().Add(liveCheckWait)); err != nil {
		return false
	}
	defer n.conn.SetReadDeadline(time.Time{})

	var b [1]byte
	_, err := n.conn.Read(b[:])
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}

// NewNetworkTransport creates a new network transport with the given stream
// layer.
func NewNetworkTransport(
	stream StreamLayer,
	opts Options,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = DefaultOptions().MaxFrameSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &NetworkTransport{
		connPool:   make(map[string][]*netConn),
		inbound:    make(map[net.Conn]struct{}),
		consumeCh:  make(chan RPC),
		logger:     logger,
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		stream:     stream,
		opts:       opts,
	}
}

// Close is used to stop the network transport.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.cancel()
		n.stream.Close()

		n.connPoolLock.Lock()
		for target, conns := range n.connPool {
			for _, c := range conns {
				c.Release()
			}
			delete(n.connPool, target)
		}
		n.connPoolLock.Unlock()

		// Remote pooled connections see EOF as soon as Close returns.
		n.inboundLock.Lock()
		for c := range n.inbound {
			c.Close()
			delete(n.inbound, c)
		}
		n.inboundLock.Unlock()

		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// getPooledConn is used to grab a pooled connection. Connections closed by
// the remote end are released and skipped.
func (n *NetworkTransport) getPooledConn(target string) *netConn {
	for {
		conn := n.popConn(target)
		if conn == nil {
			return nil
		}
		if conn.alive() {
			return conn
		}

		n.logger.WithField("target", target).Debug("Dropping closed pooled connection")
		conn.Release()
	}
}

func (n *NetworkTransport) popConn(target string) *netConn {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	conns, ok := n.connPool[target]
	if !ok || len(conns) == 0 {
		return nil
	}

	var conn *netConn
	num := len(conns)
	conn, conns[num-1] = conns[num-1], nil
	n.connPool[target] = conns[:num-1]
	return conn
}

// dial opens a new connection to target, retrying with exponential backoff.
func (n *NetworkTransport) dial(target string) (*netConn, error) {
	var conn net.Conn

	op := func() error {
		c, err := n.stream.Dial(target, n.opts.Timeout)
		if err != nil {
			n.logger.WithFields(logrus.Fields{
				"target": target,
				"error":  err,
			}).Debug("dial failed")
			return err
		}
		conn = c
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	if n.opts.DialBackoff > 0 {
		eb.InitialInterval = n.opts.DialBackoff
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, n.opts.DialRetries), n.ctx)

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}

	return &netConn{
		target: target,
		conn:   conn,
		w:      bufio.NewWriterSize(conn, bufSize),
	}, nil
}

// returnConn returns a connection back to the pool.
func (n *NetworkTransport) returnConn(conn *netConn) {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	key := conn.target
	conns := n.connPool[key]

	if !n.IsShutdown() && len(conns) < n.opts.MaxPool {
		n.connPool[key] = append(conns, conn)
	} else {
		conn.Release()
	}
}

// Send implements the Transport interface. A pooled connection that fails to
// take the write is discarded and the frame is written once more on a fresh
// connection.
func (n *NetworkTransport) Send(target string, m *message.Message) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}

	frame, err := message.Encode(m)
	if err != nil {
		return err
	}

	if conn := n.getPooledConn(target); conn != nil {
		if err := n.writeFrame(conn, frame); err == nil {
			n.returnConn(conn)
			return nil
		}
	}

	conn, err := n.dial(target)
	if err != nil {
		return err
	}

	if err := n.writeFrame(conn, frame); err != nil {
		return err
	}

	n.returnConn(conn)
	return nil
}

// writeFrame releases conn on failure.
func (n *NetworkTransport) writeFrame(conn *netConn, frame []byte) error {
	if n.opts.Timeout > 0 {
		conn.conn.SetWriteDeadline(time.Now().Add(n.opts.Timeout))
	}

	if _, err := conn.w.Write(frame); err != nil {
		conn.Release()
		return err
	}

	if err := conn.w.Flush(); err != nil {
		conn.Release()
		return err
	}

	return nil
}

// Listen opens the stream and handles incoming connections.
func (n *NetworkTransport) Listen() {
	for {
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		if !n.trackConn(conn) {
			conn.Close()
			return
		}

		go n.handleConn(conn)
	}
}

// trackConn registers an inbound connection so that Close can end it. It
// returns false once the transport is shut down.
func (n *NetworkTransport) trackConn(conn net.Conn) bool {
	n.inboundLock.Lock()
	defer n.inboundLock.Unlock()

	if n.IsShutdown() {
		return false
	}
	n.inbound[conn] = struct{}{}
	return true
}

func (n *NetworkTransport) untrackConn(conn net.Conn) {
	n.inboundLock.Lock()
	defer n.inboundLock.Unlock()

	delete(n.inbound, conn)
}

// handleConn is used to handle an inbound connection for its lifespan.
func (n *NetworkTransport) handleConn(conn net.Conn) {
	defer func() {
		n.untrackConn(conn)
		conn.Close()
	}()

	r := bufio.NewReaderSize(conn, bufSize)

	limit := rate.Inf
	if n.opts.RateLimit > 0 {
		limit = rate.Limit(n.opts.RateLimit)
	}
	burst := n.opts.RateBurst
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	for {
		if err := n.handleFrame(r, limiter); err != nil {
			switch {
			case err == io.EOF, n.IsShutdown():
			case err == ErrFrameTooLarge:
				n.logger.WithField("from", conn.RemoteAddr()).Warn("Dropping connection: frame too large")
			default:
				n.logger.WithField("error", err).Debug("Inbound connection closed")
			}
			return
		}
	}
}

// handleFrame reads and dispatches a single frame. Frames that do not decode
// are logged and skipped; only stream errors end the connection.
func (n *NetworkTransport) handleFrame(r *bufio.Reader, limiter *rate.Limiter) error {
	frame, err := readFrame(r, n.opts.MaxFrameSize)
	if err != nil {
		return err
	}

	if err := limiter.Wait(n.ctx); err != nil {
		return ErrTransportShutdown
	}

	msg, err := message.Decode(frame)
	if err != nil {
		n.logger.WithField("error", err).Warn("Dropping undecodable message")
		return nil
	}

	respCh := make(chan error, 1)
	rpc := RPC{
		Message:  msg,
		RespChan: respCh,
	}

	select {
	case n.consumeCh <- rpc:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	select {
	case err := <-respCh:
		if err != nil {
			n.logger.WithFields(logrus.Fields{
				"type":   msg.Payload.Type(),
				"sender": msg.Sender,
				"error":  err,
			}).Debug("message rejected")
		}
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	return nil
}

// readFrame reads up to and including the next newline. A final frame without
// newline before EOF is returned as is.
func readFrame(r *bufio.Reader, max int) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(frame)+len(chunk) > max {
			return nil, ErrFrameTooLarge
		}
		frame = append(frame, chunk...)

		switch err {
		case nil:
			return frame, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(frame) > 0 {
				return frame, nil
			}
			return nil, io.EOF
		default:
			return nil, fmt.Errorf("reading frame: %v", err)
		}
	}
}

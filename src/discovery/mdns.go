// Package discovery finds other murmur nodes on the local network with
// multicast DNS service discovery.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"
)

const (
	mdnsDomain = "local."
	addrTXTKey = "addr="
)

// Node is the part of node.Node discovery feeds.
type Node interface {
	GetLocalAddr() string
	AddPeer(addr string) bool
	Connect(addr string) error
}

// MDNS announces the local node and connects to the nodes it finds.
type MDNS struct {
	service  string
	instance string
	interval time.Duration
	node     Node

	server *zeroconf.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *logrus.Entry
}

// NewMDNS prepares discovery under the DNS-SD service type service. instance
// names this node in the announcements; a random name is used when empty.
// Browsing happens every interval.
func NewMDNS(service, instance string, interval time.Duration, node Node, logger *logrus.Entry) *MDNS {
	if instance == "" {
		instance = "murmur-" + uuid.New().String()[:8]
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &MDNS{
		service:  service,
		instance: instance,
		interval: interval,
		node:     node,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
}

// Start registers the service and starts browsing in the background.
func (m *MDNS) Start() error {
	addr := m.node.GetLocalAddr()

	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("cannot announce %s: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("cannot announce %s: %v", addr, err)
	}

	server, err := zeroconf.Register(m.instance, m.service, mdnsDomain, port,
		[]string{addrTXTKey + addr}, nil)
	if err != nil {
		return err
	}
	m.server = server

	m.logger.WithFields(logrus.Fields{
		"instance": m.instance,
		"service":  m.service,
		"addr":     addr,
	}).Debug("mDNS service registered")

	m.wg.Add(1)
	go m.loop()

	return nil
}

// Stop withdraws the announcement and stops browsing.
func (m *MDNS) Stop() {
	m.cancel()
	m.wg.Wait()
	if m.server != nil {
		m.server.Shutdown()
	}
}

func (m *MDNS) loop() {
	defer m.wg.Done()

	for {
		if err := m.browse(); err != nil {
			m.logger.WithError(err).Warn("mDNS browse")
		}

		select {
		case <-time.After(m.interval):
		case <-m.ctx.Done():
			return
		}
	}
}

// browse runs one lookup round, bounded by the interval.
func (m *MDNS) browse() error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.interval)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				m.handleEntry(e)
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, m.service, mdnsDomain, entries); err != nil {
		return err
	}

	<-done
	return nil
}

func (m *MDNS) handleEntry(e *zeroconf.ServiceEntry) {
	if e.Instance == m.instance {
		return
	}

	addr, ok := entryAddr(e)
	if !ok || addr == m.node.GetLocalAddr() {
		return
	}

	if !m.node.AddPeer(addr) {
		return
	}

	m.logger.WithFields(logrus.Fields{
		"instance": e.Instance,
		"addr":     addr,
	}).Info("Discovered peer")

	if err := m.node.Connect(addr); err != nil {
		m.logger.WithError(err).WithField("addr", addr).Warn("Connecting to discovered peer")
	}
}

// entryAddr extracts the node address of an entry: the advertised address
// from the TXT record if present, otherwise the first IPv4 address and port.
func entryAddr(e *zeroconf.ServiceEntry) (string, bool) {
	for _, txt := range e.Text {
		if strings.HasPrefix(txt, addrTXTKey) {
			if a := strings.TrimPrefix(txt, addrTXTKey); a != "" {
				return a, true
			}
		}
	}

	if len(e.AddrIPv4) > 0 && e.Port > 0 {
		return net.JoinHostPort(e.AddrIPv4[0].String(), strconv.Itoa(e.Port)), true
	}

	return "", false
}

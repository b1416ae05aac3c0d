// Package murmur assembles a complete node from a config.Config: key, peers,
// store, transport, node, HTTP service, mDNS discovery and console.
package murmur

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"sync"

	"github.com/mosaicnetworks/murmur/src/chain"
	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/console"
	"github.com/mosaicnetworks/murmur/src/crypto/keys"
	"github.com/mosaicnetworks/murmur/src/discovery"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/mosaicnetworks/murmur/src/service"
	"github.com/sirupsen/logrus"
)

// Murmur is the engine that wires the components of a node.
type Murmur struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     chain.Store
	Peers     *peers.PeerSet
	Service   *service.Service
	Discovery *discovery.MDNS
	Console   *console.Console

	// Observer receives node events when the console is disabled.
	Observer node.Observer

	jsonPeers    *peers.JSONPeerSet
	shutdownOnce sync.Once
	logger       *logrus.Entry
}

// NewMurmur returns an engine for config. Call Init before Run.
func NewMurmur(config *config.Config) *Murmur {
	engine := &Murmur{
		Config: config,
		logger: config.Logger(),
	}

	return engine
}

func (m *Murmur) initKey() error {
	if m.Config.Key == nil {
		keyfile := keys.NewSimpleKeyfile(m.Config.Keyfile())

		privKey, created, err := keyfile.LoadOrCreate()
		if err != nil {
			m.logger.WithError(err).Error("Cannot load or create private key")
			return err
		}

		if created {
			m.logger.WithFields(logrus.Fields{
				"path":       keyfile.Path(),
				"public_key": keys.PublicKeyHex(&privKey.PublicKey),
			}).Info("Created a new key")
		}

		m.Config.Key = privKey
	}
	return nil
}

func (m *Murmur) initPeers() error {
	m.jsonPeers = peers.NewJSONPeerSet(m.Config.DataDir)

	if m.Peers != nil {
		return nil
	}

	ps, err := m.jsonPeers.PeerSet()
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		m.logger.WithField("path", m.jsonPeers.Path()).Debug("No peers file")
		ps = peers.NewPeerSet(nil)
	}

	m.Peers = ps

	return nil
}

func (m *Murmur) initStore() error {
	if !m.Config.Store {
		m.Store = chain.NewInmemStore()

		m.logger.Debug("created new in-mem store")
	} else {
		m.logger.WithField("path", m.Config.DatabaseDir).Debug("Attempting to load or create database")

		store, err := chain.LoadOrCreateBadgerStore(m.Config.DatabaseDir, m.logger.WithField("prefix", "badger"))
		if err != nil {
			return err
		}

		if store.NeedBootstrap() {
			m.logger.Debug("loaded badger store from existing database")
		} else {
			m.logger.Debug("created new badger store from fresh database")
		}

		m.Store = store
	}

	return nil
}

func (m *Murmur) initTransport() error {
	if m.Transport != nil {
		return nil
	}

	transport, err := net.NewTCPTransport(
		m.Config.BindAddr,
		m.Config.AdvertiseAddr,
		m.Config.TransportOptions(),
		m.logger.WithField("prefix", "transport"),
	)
	if err != nil {
		return err
	}

	m.Transport = transport

	return nil
}

func (m *Murmur) initConsole() {
	if !m.Config.NoConsole {
		m.Console = console.NewConsole(os.Stdin, os.Stdout, m.Config.ChainFile, m.logger.WithField("prefix", "console"))
	}
}

func (m *Murmur) initNode() error {
	var observer node.Observer = node.NopObserver{}
	if m.Console != nil {
		observer = m.Console
	} else if m.Observer != nil {
		observer = m.Observer
	}

	m.Node = node.NewNode(
		m.Config,
		keys.NewNodeKey(m.Config.Key),
		m.Peers,
		m.Store,
		m.Transport,
		observer,
	)

	if err := m.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (m *Murmur) initService() {
	if !m.Config.NoService {
		m.Service = service.NewService(m.Config.ServiceAddr, m.Node, m.logger.WithField("prefix", "service"))
	}
}

func (m *Murmur) initDiscovery() {
	if m.Config.MDNS {
		m.Discovery = discovery.NewMDNS(
			m.Config.MDNSService,
			m.Config.Moniker,
			m.Config.MDNSInterval,
			m.Node,
			m.logger.WithField("prefix", "mdns"),
		)
	}
}

// Init reads the data directory and builds every component. Peers and
// Transport may be set beforehand to override peers.json and the TCP
// transport.
func (m *Murmur) Init() error {
	if err := m.Config.Validate(); err != nil {
		m.logger.WithError(err).Error("Invalid configuration")
		return err
	}

	if err := m.initKey(); err != nil {
		return err
	}

	if err := m.initPeers(); err != nil {
		return err
	}

	if err := m.initStore(); err != nil {
		return err
	}

	if err := m.initTransport(); err != nil {
		return err
	}

	m.initConsole()

	if err := m.initNode(); err != nil {
		return err
	}

	m.initService()

	m.initDiscovery()

	return nil
}

// Run starts the optional components, connects to the known peers and runs
// the node until Shutdown. When the console is enabled, /exit shuts the
// engine down.
func (m *Murmur) Run() {
	if m.Service != nil {
		go m.Service.Serve()
	}

	if m.Discovery != nil {
		if err := m.Discovery.Start(); err != nil {
			m.logger.WithError(err).Error("Starting mDNS discovery")
		}
	}

	go m.connectPeers()

	if m.Console != nil {
		go func() {
			if err := m.Console.Run(context.Background(), m.Node); err != nil {
				m.logger.WithError(err).Error("Console")
			}
			m.Shutdown()
		}()
	}

	m.Node.Run()
}

// connectPeers introduces the node to the peers it starts with.
func (m *Murmur) connectPeers() {
	for _, p := range m.Node.Peers() {
		if err := m.Node.Connect(p); err != nil {
			m.logger.WithError(err).WithField("peer", p).Warn("Connecting to peer")
		}
	}
}

// Shutdown stops every component and writes the current peers to peers.json
// unless NoPeerFileOut is set.
func (m *Murmur) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Debug("Shutdown")

		if m.Discovery != nil {
			m.Discovery.Stop()
		}

		if m.Service != nil {
			m.Service.Shutdown()
		}

		if !m.Config.NoPeerFileOut && m.jsonPeers != nil {
			if err := m.jsonPeers.Write(m.Node.Peers()); err != nil {
				m.logger.WithError(err).Error("Writing peers file")
			}
		}

		m.Node.Shutdown()
	})
}

// Keygen writes a new private key to path and fails if the file already
// exists.
func Keygen(path string) (*ecdsa.PrivateKey, error) {
	keyfile := keys.NewSimpleKeyfile(path)

	if _, err := os.Stat(keyfile.Path()); err == nil {
		return nil, fmt.Errorf("Another key already lives under %s", keyfile.Path())
	}

	key, _, err := keyfile.LoadOrCreate()
	if err != nil {
		return nil, err
	}

	return key, nil
}

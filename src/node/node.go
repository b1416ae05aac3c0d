package node

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/murmur/src/block"
	"github.com/mosaicnetworks/murmur/src/chain"
	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/crypto/keys"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/miner"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/peers"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

type counters struct {
	blocksMined    uint64
	blocksReceived uint64
	blocksRejected uint64
	syncRequests   uint64
	syncAdopted    uint64
	syncErrors     uint64
}

// Node defines a murmur node
type Node struct {
	// first for 64-bit alignment of the atomic counters
	stats counters

	state

	conf   *config.Config
	logger *logrus.Entry

	localAddr string
	key       *keys.NodeKey

	peers    *peers.PeerSet
	selector *RandomPeerSelector

	chain     *chain.Chain
	chainLock sync.Mutex
	store     chain.Store

	trans net.Transport
	netCh <-chan net.RPC

	miner *miner.Miner
	seen  *cache.Cache

	observer Observer

	syncLock    sync.Mutex
	syncState   SyncState
	pendingSync *pendingSync

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	// runDone is closed when the Run loop exits. runLock orders the start of
	// Run against Shutdown.
	runLock sync.Mutex
	runDone chan struct{}

	controlTimer *ControlTimer

	start time.Time
}

// NewNode is a factory method that returns a Node instance. key may be nil, in
// which case mined blocks are not signed. The node's address is the
// transport's advertise address; it is removed from peerSet if present.
func NewNode(conf *config.Config,
	key *keys.NodeKey,
	peerSet *peers.PeerSet,
	store chain.Store,
	trans net.Transport,
	observer Observer,
) *Node {
	localAddr := trans.AdvertiseAddr()
	if localAddr == "" {
		localAddr = trans.LocalAddr()
	}

	if peerSet == nil {
		peerSet = peers.NewPeerSet(nil)
	}
	peerSet.Remove(localAddr)

	if store == nil {
		store = chain.NewInmemStore()
	}

	if observer == nil {
		observer = NopObserver{}
	}

	logger := conf.Logger().WithField("node", localAddr)

	ctx, cancel := context.WithCancel(context.Background())

	node := Node{
		conf:         conf,
		logger:       logger,
		localAddr:    localAddr,
		key:          key,
		peers:        peerSet,
		selector:     NewRandomPeerSelector(peerSet, localAddr),
		store:        store,
		trans:        trans,
		netCh:        trans.Consumer(),
		miner:        miner.New(conf.MinerWorkers, logger.WithField("prefix", "miner")),
		seen:         cache.New(conf.SeenCacheTTL, 2*conf.SeenCacheTTL),
		observer:     observer,
		ctx:          ctx,
		cancel:       cancel,
		shutdownCh:   make(chan struct{}),
		controlTimer: NewRandomControlTimer(),
		start:        time.Now(),
	}

	return &node
}

// Init loads or creates the chain. With Bootstrap set, the chain is read from
// the store, or from the chain file when the store is empty, and fully
// validated. Otherwise the node starts from the genesis block, which it mines
// at the configured difficulty.
func (n *Node) Init() error {
	c, fromStore, err := n.loadChain()
	if err != nil {
		return err
	}

	if !fromStore {
		if err := n.store.Reset(c.Blocks()); err != nil {
			return fmt.Errorf("failed to initialize store: %v", err)
		}
	}

	n.chainLock.Lock()
	n.chain = c
	n.chainLock.Unlock()

	n.logger.WithFields(logrus.Fields{
		"length":     c.Len(),
		"tail":       c.LatestBlock().Hash,
		"difficulty": c.Difficulty(),
		"peers":      n.peers.Len(),
	}).Debug("Init")

	return nil
}

func (n *Node) loadChain() (*chain.Chain, bool, error) {
	difficulty := n.conf.Difficulty

	if n.conf.Bootstrap {
		if n.store.LastBlockIndex() >= 0 {
			n.logger.WithField("path", n.store.StorePath()).Debug("Bootstrap from store")
			c, err := chain.LoadFromStore(n.store, difficulty)
			if err != nil {
				return nil, false, fmt.Errorf("failed to bootstrap from store: %v", err)
			}
			return c, true, nil
		}

		if n.conf.ChainFile != "" {
			if _, err := os.Stat(n.conf.ChainFile); err == nil {
				n.logger.WithField("path", n.conf.ChainFile).Debug("Bootstrap from file")
				c, err := chain.LoadFromFile(n.conf.ChainFile, difficulty)
				if err != nil {
					return nil, false, fmt.Errorf("failed to bootstrap from file: %v", err)
				}
				return c, false, nil
			}
		}

		n.logger.Warn("Nothing to bootstrap from, starting from genesis")
	}

	start := time.Now()
	genesis, err := block.Genesis(n.ctx, difficulty)
	if err != nil {
		return nil, false, err
	}
	n.logger.WithFields(logrus.Fields{
		"hash":     genesis.Hash,
		"nonce":    genesis.Nonce,
		"duration": time.Since(start).Nanoseconds(),
	}).Debug("Genesis mined")

	c, err := chain.NewChain(genesis, difficulty)
	return c, false, err
}

// RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")

	go n.Run()
}

// Run starts the transport listener and dispatches inbound messages until
// Shutdown. Each message is handled on its own goroutine; the transport
// delivers the next message of a connection only after the previous one was
// answered, so handling is sequential per connection.
func (n *Node) Run() {
	n.runLock.Lock()
	if n.getState() == Shutdown || n.runDone != nil {
		n.runLock.Unlock()
		return
	}
	done := make(chan struct{})
	n.runDone = done
	n.runLock.Unlock()

	defer close(done)

	go n.trans.Listen()

	go n.controlTimer.Run(n.conf.SyncInterval)

	for {
		select {
		case rpc := <-n.netCh:
			n.goFunc(func() {
				n.processRPC(rpc)
			})
		case <-n.controlTimer.tickCh:
			n.autoSync()
			select {
			case n.controlTimer.resetCh <- n.conf.SyncInterval:
			case <-n.shutdownCh:
				return
			}
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) autoSync() {
	if n.peers.Len() == 0 {
		return
	}
	if _, err := n.Sync(); err != nil && err != ErrSyncInProgress {
		n.logger.WithError(err).Debug("Periodic sync")
	}
}

// Shutdown stops the dispatcher and waits for its loop to exit, cancels
// mining, closes the transport, waits for running handlers and finally closes
// the store. It is safe to call more
// than once.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.runLock.Lock()
		n.setState(Shutdown)
		runDone := n.runDone
		n.runLock.Unlock()

		close(n.shutdownCh)
		n.cancel()

		// No handler may be started once waitRoutines is reached.
		if runDone != nil {
			<-runDone
		}

		n.miner.Close()

		n.controlTimer.Shutdown()

		// Handlers blocked on the transport are released by Close.
		n.trans.Close()

		n.waitRoutines()

		n.abortSync()

		if err := n.store.Close(); err != nil {
			n.logger.WithError(err).Error("Closing store")
		}
	})
}

// GetLocalAddr returns the address this node uses as sender.
func (n *Node) GetLocalAddr() string {
	return n.localAddr
}

// AddPeer adds addr to the peer set and reports whether it was new. The
// node's own address and empty addresses are ignored.
func (n *Node) AddPeer(addr string) bool {
	if addr == "" || addr == n.localAddr {
		return false
	}
	added := n.peers.Add(addr)
	if added {
		n.logger.WithField("peer", addr).Debug("Peer added")
	}
	return added
}

// GetRandomPeer returns a peer chosen uniformly at random.
func (n *Node) GetRandomPeer() (string, bool) {
	return n.peers.Random(n.localAddr)
}

// Peers returns a sorted snapshot of the peer set.
func (n *Node) Peers() []string {
	return n.peers.Addresses()
}

// Send wraps payload in a Message from this node and delivers it to peer.
// Delivery failures are returned as *PeerUnreachableError.
func (n *Node) Send(peer string, payload message.Payload) error {
	if n.getState() == Shutdown {
		return ErrNodeShutdown
	}

	m := message.New(n.localAddr, payload)

	if err := n.trans.Send(peer, m); err != nil {
		n.logger.WithFields(logrus.Fields{
			"peer":  peer,
			"type":  payload.Type(),
			"error": err,
		}).Debug("Send failed")
		return &PeerUnreachableError{Peer: peer, Err: err}
	}

	return nil
}

// Yell sends payload to every known peer concurrently. It returns a
// *BroadcastError naming the unreachable peers, if any.
func (n *Node) Yell(payload message.Payload) error {
	return n.yellExcept(payload)
}

func (n *Node) yellExcept(payload message.Payload, skip ...string) error {
	targets := n.peers.Addresses()
	for _, s := range skip {
		targets = exclude(targets, s)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = make(map[string]error)
	)

	for _, t := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			if err := n.Send(target, payload); err != nil {
				mu.Lock()
				failed[target] = err
				mu.Unlock()
			}
		}(t)
	}

	wg.Wait()

	if len(failed) > 0 {
		return &BroadcastError{Failed: failed}
	}
	return nil
}

// Connect adds addr as a peer and asks it for its peers and its chain.
func (n *Node) Connect(addr string) error {
	if addr == "" || addr == n.localAddr {
		return fmt.Errorf("cannot connect to %q", addr)
	}

	n.AddPeer(addr)

	if err := n.Send(addr, &message.PeerDiscovery{}); err != nil {
		return err
	}

	return n.Send(addr, &message.BlockchainRequest{})
}

// SubmitTx appends a new block carrying text. The block is mined on the miner
// pool without holding the chain lock, signed with the node key, appended and
// broadcast. If the chain moved while mining, the append fails with a
// LinkageMismatch and nothing is broadcast. When only the broadcast fails,
// the block is returned along with a *BroadcastError.
func (n *Node) SubmitTx(ctx context.Context, text string) (*block.Block, error) {
	if n.getState() == Shutdown {
		return nil, ErrNodeShutdown
	}

	n.chainLock.Lock()
	tail := n.chain.LatestBlock()
	difficulty := n.chain.Difficulty()
	n.chainLock.Unlock()

	b, err := block.Next(tail, block.Post{Body: text})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-n.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := n.miner.Mine(ctx, b, difficulty); err != nil {
		return nil, err
	}

	if n.key != nil {
		if err := b.Sign(n.key); err != nil {
			return nil, err
		}
	}

	if err := n.appendBlock(b); err != nil {
		n.logger.WithError(err).WithField("index", b.Index).Warn("Mined block rejected")
		return nil, err
	}

	atomic.AddUint64(&n.stats.blocksMined, 1)
	n.seen.SetDefault(b.Hash, struct{}{})

	n.logger.WithFields(logrus.Fields{
		"index": b.Index,
		"hash":  b.Hash,
		"nonce": b.Nonce,
	}).Info("Block added")

	n.observer.OnBlock(n.localAddr, b)

	if err := n.Yell(&message.BlockchainTx{Block: b}); err != nil {
		return b, err
	}

	return b, nil
}

// appendBlock adds b to the chain and persists it, under the chain lock.
func (n *Node) appendBlock(b *block.Block) error {
	n.chainLock.Lock()
	defer n.chainLock.Unlock()

	if err := n.chain.AddBlock(b); err != nil {
		return err
	}

	if err := n.store.SetBlock(b); err != nil {
		n.logger.WithError(err).WithField("index", b.Index).Error("Persisting block")
	}

	return nil
}

// ChainJSON returns the chain as a JSON array, indented if pretty is set.
func (n *Node) ChainJSON(pretty bool) (string, error) {
	n.chainLock.Lock()
	defer n.chainLock.Unlock()

	return n.chain.ToJSON(pretty)
}

// SaveChain writes the chain to path as JSON.
func (n *Node) SaveChain(path string) error {
	n.chainLock.Lock()
	defer n.chainLock.Unlock()

	return n.chain.SaveToFile(path)
}

// Blocks returns a snapshot of the chain.
func (n *Node) Blocks() []*block.Block {
	n.chainLock.Lock()
	defer n.chainLock.Unlock()

	return n.chain.Blocks()
}

// GetBlock returns the block at index i.
func (n *Node) GetBlock(i uint64) (*block.Block, error) {
	n.chainLock.Lock()
	defer n.chainLock.Unlock()

	return n.chain.Block(i)
}

// LatestBlock returns the tail of the chain.
func (n *Node) LatestBlock() *block.Block {
	n.chainLock.Lock()
	defer n.chainLock.Unlock()

	return n.chain.LatestBlock()
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	n.chainLock.Lock()
	length := n.chain.Len()
	tail := n.chain.LatestBlock()
	n.chainLock.Unlock()

	pub := ""
	if n.key != nil {
		pub = keys.PublicKeyHex(n.key.Public())
	}

	uptime := time.Since(n.start)

	u := func(v *uint64) string {
		return strconv.FormatUint(atomic.LoadUint64(v), 10)
	}

	s := map[string]string{
		"addr":             n.localAddr,
		"public_key":       pub,
		"moniker":          n.conf.Moniker,
		"state":            n.getState().String(),
		"sync_state":       n.getSyncState().String(),
		"chain_length":     strconv.Itoa(length),
		"last_block_index": strconv.FormatUint(tail.Index, 10),
		"last_block_hash":  tail.Hash,
		"difficulty":       strconv.Itoa(n.conf.Difficulty),
		"num_peers":        strconv.Itoa(n.peers.Len()),
		"blocks_mined":     u(&n.stats.blocksMined),
		"blocks_received":  u(&n.stats.blocksReceived),
		"blocks_rejected":  u(&n.stats.blocksRejected),
		"sync_requests":    u(&n.stats.syncRequests),
		"sync_adopted":     u(&n.stats.syncAdopted),
		"sync_errors":      u(&n.stats.syncErrors),
		"uptime":           uptime.Truncate(time.Second).String(),
	}
	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	n.logger.WithFields(logrus.Fields{
		"chain_length":    stats["chain_length"],
		"num_peers":       stats["num_peers"],
		"blocks_mined":    stats["blocks_mined"],
		"blocks_received": stats["blocks_received"],
		"sync_adopted":    stats["sync_adopted"],
	}).Debug("Stats")
}

// Package console implements the interactive command line of a murmur node.
//
// Commands are read line by line:
//
//  /connect <IP:PORT> - Manually connect to a peer
//  /send <MESSAGE> - Broadcast a message to all peers
//  /peers - List connected peers
//  /sync - Sync the blockchain
//  /chain - List the blockchain contents
//  /tx <MESSAGE> - Add a blockchain transaction
//  /save - Save the blockchain to disk
//  /exit - Exit the program
//
// The Console is also a node.Observer and prints inbound chat messages,
// received blocks and sync outcomes.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mosaicnetworks/murmur/src/block"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/sirupsen/logrus"
)

// Node is the part of node.Node the console drives.
type Node interface {
	GetLocalAddr() string
	Connect(addr string) error
	Peers() []string
	Yell(payload message.Payload) error
	Sync() (<-chan node.SyncResult, error)
	SubmitTx(ctx context.Context, text string) (*block.Block, error)
	ChainJSON(pretty bool) (string, error)
	SaveChain(path string) error
}

var helpLines = []string{
	"Commands:",
	"  /connect <IP:PORT> - Manually connect to a peer",
	"  /send <MESSAGE> - Broadcast a message to all peers",
	"  /peers - List connected peers",
	"  /sync - Sync the blockchain",
	"  /chain - List the blockchain contents",
	"  /tx <MESSAGE> - Add a blockchain transaction",
	"  /save - Save the blockchain to disk",
	"  /exit - Exit the program",
}

// Console reads commands from in and writes to out.
type Console struct {
	in        io.Reader
	out       io.Writer
	outLock   sync.Mutex
	chainFile string
	localAddr string
	logger    *logrus.Entry
}

// NewConsole returns a Console. /save writes the chain to chainFile.
func NewConsole(in io.Reader, out io.Writer, chainFile string, logger *logrus.Entry) *Console {
	return &Console{
		in:        in,
		out:       out,
		chainFile: chainFile,
		logger:    logger,
	}
}

// Run executes commands against n until /exit, the end of the input or the
// cancellation of ctx.
func (c *Console) Run(ctx context.Context, n Node) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.outLock.Lock()
	c.localAddr = n.GetLocalAddr()
	c.outLock.Unlock()

	c.println("murmur node listening on " + n.GetLocalAddr() + ". Type /help for commands.")

	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case line := <-lines:
			if c.Execute(ctx, n, line) {
				return nil
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// Execute runs a single command line and reports whether it was /exit.
func (c *Console) Execute(ctx context.Context, n Node, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	args := fields[1:]

	switch fields[0] {
	case "/send":
		c.send(n, strings.Join(args, " "))
	case "/connect":
		if len(args) != 1 {
			c.println("Usage: /connect <IP:PORT>")
			return false
		}
		c.connect(n, args[0])
	case "/peers":
		c.peers(n)
	case "/sync":
		c.sync(n)
	case "/tx":
		c.tx(ctx, n, strings.Join(args, " "))
	case "/chain":
		c.chain(n)
	case "/save":
		c.save(n)
	case "/exit":
		return true
	default:
		c.help()
	}

	return false
}

func (c *Console) send(n Node, text string) {
	if text == "" {
		c.println("Usage: /send <MESSAGE>")
		return
	}

	if len(n.Peers()) == 0 {
		c.println("No connected peers.")
		return
	}

	if err := n.Yell(&message.Chat{Message: text}); err != nil {
		c.reportBroadcast(err)
	}
}

func (c *Console) connect(n Node, addr string) {
	if err := n.Connect(addr); err != nil {
		c.printf("Failed to connect to %s: %v\n", addr, err)
		return
	}
	c.printf("Connected to %s\n", addr)
}

func (c *Console) peers(n Node) {
	peers := n.Peers()
	if len(peers) == 0 {
		c.println("No connected peers.")
		return
	}

	c.println("Connected peers:")
	for _, p := range peers {
		c.printf("- %s\n", p)
	}
}

func (c *Console) sync(n Node) {
	_, err := n.Sync()
	switch err {
	case nil:
		c.println("requesting blockchain sync")
	case node.ErrNoPeers:
		c.println("No connected peers.")
	case node.ErrSyncInProgress:
		c.println("Sync already in progress.")
	default:
		c.printf("Sync failed: %v\n", err)
	}
}

func (c *Console) tx(ctx context.Context, n Node, text string) {
	if text == "" {
		c.println("Usage: /tx <MESSAGE>")
		return
	}

	c.println("mining new block")

	b, err := n.SubmitTx(ctx, text)
	if b == nil {
		c.printf("Transaction rejected: %v\n", err)
		return
	}

	c.printf("mined new block #%d %s\n", b.Index, b.Hash)

	if err != nil {
		c.reportBroadcast(err)
	}
}

func (c *Console) chain(n Node) {
	js, err := n.ChainJSON(true)
	if err != nil {
		c.printf("Cannot encode blockchain: %v\n", err)
		return
	}
	c.println(js)
}

func (c *Console) save(n Node) {
	if err := n.SaveChain(c.chainFile); err != nil {
		c.printf("Failed to save blockchain: %v\n", err)
		return
	}
	c.println("Saved blockchain to disk.")
}

func (c *Console) help() {
	for _, l := range helpLines {
		c.println(l)
	}
}

func (c *Console) reportBroadcast(err error) {
	if be, ok := err.(*node.BroadcastError); ok {
		c.printf("Could not reach: %s\n", strings.Join(be.Peers(), ", "))
		return
	}
	c.printf("Broadcast failed: %v\n", err)
}

// OnChat implements node.Observer.
func (c *Console) OnChat(sender string, text string) {
	c.printf("%s: %s\n", sender, text)
}

// OnBlock implements node.Observer. Blocks mined locally are reported by /tx.
func (c *Console) OnBlock(sender string, b *block.Block) {
	c.outLock.Lock()
	local := c.localAddr
	c.outLock.Unlock()

	if sender == local {
		return
	}
	c.printf("new block #%d from %s: %s\n", b.Index, sender, block.Body(b.Data))
}

// OnSync implements node.Observer.
func (c *Console) OnSync(res node.SyncResult) {
	switch res.Status {
	case node.Adopted:
		c.printf("synced with %s: %d blocks\n", res.Peer, res.Length)
	case node.Rejected:
		c.printf("kept local chain (%d blocks): %v\n", res.Length, res.Err)
	case node.TimedOut:
		c.printf("sync with %s timed out\n", res.Peer)
	default:
		c.printf("sync with %s failed: %v\n", res.Peer, res.Err)
	}
}

func (c *Console) println(s string) {
	c.printf("%s\n", s)
}

func (c *Console) printf(format string, args ...interface{}) {
	c.outLock.Lock()
	defer c.outLock.Unlock()

	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.logger.WithError(err).Debug("Writing to console")
	}
}

package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mosaicnetworks/murmur/src/block"
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	peers     []string
	yelled    []message.Payload
	yellErr   error
	connected []string
	syncErr   error
	txErr     error
	txBlock   *block.Block
	saved     string
}

func (f *fakeNode) GetLocalAddr() string { return "127.0.0.1:1337" }

func (f *fakeNode) Connect(addr string) error {
	f.connected = append(f.connected, addr)
	return nil
}

func (f *fakeNode) Peers() []string { return f.peers }

func (f *fakeNode) Yell(p message.Payload) error {
	f.yelled = append(f.yelled, p)
	return f.yellErr
}

func (f *fakeNode) Sync() (<-chan node.SyncResult, error) {
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return make(chan node.SyncResult, 1), nil
}

func (f *fakeNode) SubmitTx(ctx context.Context, text string) (*block.Block, error) {
	return f.txBlock, f.txErr
}

func (f *fakeNode) ChainJSON(pretty bool) (string, error) {
	return `[{"index":0}]`, nil
}

func (f *fakeNode) SaveChain(path string) error {
	f.saved = path
	return nil
}

func newTestConsole(t *testing.T, in string) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	c := NewConsole(strings.NewReader(in), out, "blockchain.json", common.NewTestEntry(t, logrus.ErrorLevel, "console"))
	return c, out
}

func run(t *testing.T, f *fakeNode, line string) string {
	c, out := newTestConsole(t, "")
	c.Execute(context.Background(), f, line)
	return out.String()
}

func TestHelp(t *testing.T) {
	out := run(t, &fakeNode{}, "/whatever")
	assert.True(t, strings.HasPrefix(out, "Commands:\n"))
	for _, cmd := range []string{"/connect", "/send", "/peers", "/sync", "/chain", "/tx", "/save", "/exit"} {
		assert.Contains(t, out, cmd)
	}

	assert.Empty(t, run(t, &fakeNode{}, "   "))
}

func TestPeers(t *testing.T) {
	assert.Equal(t, "No connected peers.\n", run(t, &fakeNode{}, "/peers"))
	assert.Equal(t, "Connected peers:\n- a:1\n- b:2\n",
		run(t, &fakeNode{peers: []string{"a:1", "b:2"}}, "/peers"))
}

func TestSend(t *testing.T) {
	f := &fakeNode{peers: []string{"a:1"}}
	assert.Empty(t, run(t, f, "/send hello   world"))
	require.Len(t, f.yelled, 1)
	assert.Equal(t, &message.Chat{Message: "hello world"}, f.yelled[0])

	f.yellErr = &node.BroadcastError{Failed: map[string]error{"a:1": errors.New("down")}}
	assert.Equal(t, "Could not reach: a:1\n", run(t, f, "/send again"))

	assert.Equal(t, "No connected peers.\n", run(t, &fakeNode{}, "/send hello"))
	assert.Equal(t, "Usage: /send <MESSAGE>\n", run(t, f, "/send"))
}

func TestConnect(t *testing.T) {
	f := &fakeNode{}
	assert.Equal(t, "Connected to 10.0.0.1:1337\n", run(t, f, "/connect 10.0.0.1:1337"))
	assert.Equal(t, []string{"10.0.0.1:1337"}, f.connected)
	assert.Equal(t, "Usage: /connect <IP:PORT>\n", run(t, f, "/connect"))
}

func TestSync(t *testing.T) {
	assert.Equal(t, "requesting blockchain sync\n", run(t, &fakeNode{}, "/sync"))
	assert.Equal(t, "No connected peers.\n", run(t, &fakeNode{syncErr: node.ErrNoPeers}, "/sync"))
	assert.Equal(t, "Sync already in progress.\n", run(t, &fakeNode{syncErr: node.ErrSyncInProgress}, "/sync"))
}

func TestTx(t *testing.T) {
	b := block.NewAt(1, 10, block.Post{Body: "hi"}, "abc")

	out := run(t, &fakeNode{txBlock: b}, "/tx hi")
	assert.Equal(t, "mining new block\nmined new block #1 "+b.Hash+"\n", out)

	out = run(t, &fakeNode{txErr: errors.New("linkage")}, "/tx hi")
	assert.Equal(t, "mining new block\nTransaction rejected: linkage\n", out)

	assert.Equal(t, "Usage: /tx <MESSAGE>\n", run(t, &fakeNode{}, "/tx"))
}

func TestChainAndSave(t *testing.T) {
	f := &fakeNode{}
	assert.Equal(t, "[{\"index\":0}]\n", run(t, f, "/chain"))
	assert.Equal(t, "Saved blockchain to disk.\n", run(t, f, "/save"))
	assert.Equal(t, "blockchain.json", f.saved)
}

func TestRunStopsOnExit(t *testing.T) {
	f := &fakeNode{}
	c, out := newTestConsole(t, "/peers\n/exit\n/peers\n")

	require.NoError(t, c.Run(context.Background(), f))
	assert.Equal(t, 1, strings.Count(out.String(), "No connected peers."))
}

func TestRunStopsOnEOF(t *testing.T) {
	c, _ := newTestConsole(t, "/peers\n")
	assert.NoError(t, c.Run(context.Background(), &fakeNode{}))
}

func TestObserver(t *testing.T) {
	c, out := newTestConsole(t, "")
	c.localAddr = "me"

	c.OnChat("a:1", "hello")
	c.OnBlock("me", block.NewAt(1, 1, block.Text("x"), ""))
	c.OnBlock("a:1", block.NewAt(2, 1, block.Post{Body: "post"}, ""))
	c.OnSync(node.SyncResult{Peer: "a:1", Status: node.Adopted, Length: 3})
	c.OnSync(node.SyncResult{Peer: "a:1", Status: node.TimedOut})

	assert.Equal(t, "a:1: hello\n"+
		"new block #2 from a:1: post\n"+
		"synced with a:1: 3 blocks\n"+
		"sync with a:1 timed out\n", out.String())
}

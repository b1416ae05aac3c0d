package murmur

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/crypto/keys"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngineConfig(t *testing.T, dir string) *config.Config {
	conf := config.NewTestConfig(t, logrus.ErrorLevel)
	conf.SetDataDir(dir)
	conf.NoConsole = true
	conf.NoService = true
	return conf
}

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "murmur-engine")
	require.NoError(t, err)
	return dir
}

func TestInitCreatesKey(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	conf := testEngineConfig(t, dir)
	conf.BindAddr = "127.0.0.1:0"

	engine := NewMurmur(conf)
	require.NoError(t, engine.Init())
	defer engine.Shutdown()

	key, err := keys.NewSimpleKeyfile(conf.Keyfile()).ReadKey()
	require.NoError(t, err)
	assert.Equal(t, 0, conf.Key.D.Cmp(key.D))

	assert.Equal(t, 0, engine.Peers.Len())
	assert.Len(t, engine.Node.Blocks(), 1)
}

func TestInitWithStore(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	conf := testEngineConfig(t, dir)
	conf.BindAddr = "127.0.0.1:0"
	conf.Store = true

	engine := NewMurmur(conf)
	require.NoError(t, engine.Init())
	engine.Shutdown()

	_, err := os.Stat(filepath.Join(dir, config.DefaultBadgerFile))
	assert.NoError(t, err)
}

func TestPeersFile(t *testing.T) {
	dirA := tempDir(t)
	defer os.RemoveAll(dirA)
	dirB := tempDir(t)
	defer os.RemoveAll(dirB)

	addrA, transA := net.NewInmemTransport("")
	addrB, transB := net.NewInmemTransport("")
	transA.Connect(addrB, transB)
	transB.Connect(addrA, transA)

	// B starts with A in its peers.json
	require.NoError(t, peers.NewJSONPeerSet(dirB).Write([]string{addrA}))

	a := NewMurmur(testEngineConfig(t, dirA))
	a.Transport = transA
	require.NoError(t, a.Init())
	go a.Run()

	b := NewMurmur(testEngineConfig(t, dirB))
	b.Transport = transB
	require.NoError(t, b.Init())
	go b.Run()

	// B connects to A on startup, A learns about B
	deadline := time.Now().Add(5 * time.Second)
	for !contains(a.Node.Peers(), addrB) {
		if time.Now().After(deadline) {
			t.Fatalf("A did not learn about B")
		}
		time.Sleep(10 * time.Millisecond)
	}

	a.Shutdown()
	b.Shutdown()

	written, err := peers.NewJSONPeerSet(dirA).PeerSet()
	require.NoError(t, err)
	assert.Equal(t, []string{addrB}, written.Addresses())
}

func TestKeygen(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, config.DefaultKeyfile)

	key, err := Keygen(path)
	require.NoError(t, err)
	assert.NotNil(t, key)

	_, err = Keygen(path)
	assert.Error(t, err)
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}

func TestInitRejectsUnknownSyncPolicy(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	conf := testEngineConfig(t, dir)
	conf.BindAddr = "127.0.0.1:0"
	conf.SyncPolicy = "newest"

	engine := NewMurmur(conf)
	require.Error(t, engine.Init())

	assert.Nil(t, engine.Node)
	_, err := os.Stat(conf.Keyfile())
	assert.True(t, os.IsNotExist(err), "no key should be written for a rejected config")
}

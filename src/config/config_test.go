package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := NewDefaultConfig()

	assert.Equal(t, DefaultBindAddr, c.BindAddr)
	assert.Equal(t, 5, c.Difficulty)
	assert.Equal(t, SyncLongest, c.SyncPolicy)
	assert.Equal(t, filepath.Join(c.DataDir, DefaultBadgerFile), c.DatabaseDir)
	assert.Equal(t, filepath.Join(c.DataDir, DefaultChainFile), c.ChainFile)
}

func TestSetDataDir(t *testing.T) {
	c := NewDefaultConfig()
	c.SetDataDir("/tmp/node1")

	assert.Equal(t, "/tmp/node1", c.DataDir)
	assert.Equal(t, "/tmp/node1/badger_db", c.DatabaseDir)
	assert.Equal(t, "/tmp/node1/blockchain.json", c.ChainFile)
	assert.Equal(t, "/tmp/node1/priv_key", c.Keyfile())

	// explicit values are kept
	c = NewDefaultConfig()
	c.DatabaseDir = "/data/db"
	c.SetDataDir("/tmp/node2")
	assert.Equal(t, "/data/db", c.DatabaseDir)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, LogLevel("info"))
	assert.Equal(t, logrus.ErrorLevel, LogLevel("error"))
	assert.Equal(t, logrus.DebugLevel, LogLevel("nonsense"))
}

func TestLogFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "murmur-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	c := NewDefaultConfig()
	c.LogLevel = "info"
	c.LogFile = filepath.Join(dir, "murmur.log")

	logger := c.Logger()
	logger.Logger.Out = ioutil.Discard
	logger.WithField("k", "v").Info("written to file")

	raw, err := ioutil.ReadFile(c.LogFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "written to file"), string(raw))
}

func TestTransportOptions(t *testing.T) {
	c := NewDefaultConfig()
	c.MaxPool = 7
	c.RateLimit = 10

	opts := c.TransportOptions()
	assert.Equal(t, 7, opts.MaxPool)
	assert.Equal(t, DefaultTCPTimeout, opts.Timeout)
	assert.Equal(t, uint64(DefaultDialRetries), opts.DialRetries)
	assert.Equal(t, 10.0, opts.RateLimit)
	assert.True(t, opts.MaxFrameSize > 0)
}

func TestValidateSyncPolicy(t *testing.T) {
	c := NewDefaultConfig()
	assert.NoError(t, c.Validate())

	c.SyncPolicy = SyncReplace
	assert.NoError(t, c.Validate())

	c.SyncPolicy = "longset"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "longset")
}

package config

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/block"
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultChainFile is the default name of the JSON chain snapshot written
	// by the save command.
	DefaultChainFile = "blockchain.json"
)

// Sync policies.
const (
	// SyncLongest adopts a received chain only if it is valid and strictly
	// longer than the local one.
	SyncLongest = "longest"
	// SyncReplace adopts any valid received chain.
	SyncReplace = "replace"
)

// Default configuration values.
const (
	DefaultLogLevel      = "debug"
	DefaultBindAddr      = "127.0.0.1:1337"
	DefaultServiceAddr   = "127.0.0.1:8000"
	DefaultTCPTimeout    = 1000 * time.Millisecond
	DefaultDialRetries   = 2
	DefaultMaxPool       = 2
	DefaultRateLimit     = 0
	DefaultRateBurst     = 50
	DefaultDifficulty    = block.DefaultDifficulty
	DefaultMinerWorkers  = 1
	DefaultSyncPolicy    = SyncLongest
	DefaultSyncTimeout   = 10 * time.Second
	DefaultSyncInterval  = 0
	DefaultSeenCacheTTL  = 10 * time.Minute
	DefaultStore         = false
	DefaultMDNS          = false
	DefaultMDNSService   = "_murmur._tcp"
	DefaultMDNSInterval  = 30 * time.Second
	DefaultNoService     = false
	DefaultNoConsole     = false
	DefaultNoPeerFileOut = false
)

// Config contains all the configuration properties of a murmur node.
type Config struct {
	// DataDir is the top-level directory containing murmur configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry in JSON.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node listens for
	// messages.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is the address announced to other nodes, and used as the
	// sender of every message, when BindAddr is not reachable as is.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// NoConsole disables the interactive console on stdin.
	NoConsole bool `mapstructure:"no-console"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout applies to dials and writes.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// DialRetries is the number of extra attempts, with exponential backoff,
	// when a peer cannot be dialled.
	DialRetries uint64 `mapstructure:"dial-retries"`

	// RateLimit caps inbound messages per second on each connection. Zero
	// disables the limit.
	RateLimit float64 `mapstructure:"rate-limit"`

	// RateBurst is the burst allowed above RateLimit.
	RateBurst int `mapstructure:"rate-burst"`

	// Difficulty is the number of leading zero hex characters required of
	// every block hash, genesis included. All the nodes of a network must
	// agree on it.
	Difficulty int `mapstructure:"difficulty"`

	// MinerWorkers is the number of concurrent mining jobs.
	MinerWorkers int `mapstructure:"miner-workers"`

	// SyncPolicy decides whether a received valid chain replaces the local
	// one: "longest" or "replace".
	SyncPolicy string `mapstructure:"sync-policy"`

	// SyncTimeout bounds the wait for a BlockchainReply after a sync request.
	SyncTimeout time.Duration `mapstructure:"sync-timeout"`

	// SyncInterval, when positive, makes the node request the chain of a
	// random peer periodically.
	SyncInterval time.Duration `mapstructure:"sync-interval"`

	// SeenCacheTTL is how long a relayed block hash is remembered.
	SeenCacheTTL time.Duration `mapstructure:"seen-ttl"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Bootstrap loads the chain from the database, or from ChainFile when
	// Store is not set, instead of starting from genesis.
	Bootstrap bool `mapstructure:"bootstrap"`

	// ChainFile is the path of the JSON chain snapshot.
	ChainFile string `mapstructure:"chain-file"`

	// NoPeerFileOut stops the node from rewriting peers.json on shutdown.
	NoPeerFileOut bool `mapstructure:"no-peers-out"`

	// MDNS enables discovery of other nodes on the local network.
	MDNS bool `mapstructure:"mdns"`

	// MDNSService is the DNS-SD service type announced and browsed.
	MDNSService string `mapstructure:"mdns-service"`

	// MDNSInterval is the pause between two browse rounds.
	MDNSInterval time.Duration `mapstructure:"mdns-interval"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Key is the private key used to sign mined blocks.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:       DefaultDataDir(),
		LogLevel:      DefaultLogLevel,
		BindAddr:      DefaultBindAddr,
		ServiceAddr:   DefaultServiceAddr,
		NoService:     DefaultNoService,
		NoConsole:     DefaultNoConsole,
		MaxPool:       DefaultMaxPool,
		TCPTimeout:    DefaultTCPTimeout,
		DialRetries:   DefaultDialRetries,
		RateLimit:     DefaultRateLimit,
		RateBurst:     DefaultRateBurst,
		Difficulty:    DefaultDifficulty,
		MinerWorkers:  DefaultMinerWorkers,
		SyncPolicy:    DefaultSyncPolicy,
		SyncTimeout:   DefaultSyncTimeout,
		SyncInterval:  DefaultSyncInterval,
		SeenCacheTTL:  DefaultSeenCacheTTL,
		Store:         DefaultStore,
		DatabaseDir:   DefaultDatabaseDir(),
		ChainFile:     DefaultChainFilePath(),
		NoPeerFileOut: DefaultNoPeerFileOut,
		MDNS:          DefaultMDNS,
		MDNSService:   DefaultMDNSService,
		MDNSInterval:  DefaultMDNSInterval,
	}

	return config
}

// NewTestConfig returns a config object with default values, a low difficulty
// and a special logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.Difficulty = 1
	config.SyncTimeout = 2 * time.Second
	config.DialRetries = 0
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level murmur directory, and moves the database
// directory and chain file along when they still hold their default values.
func (c *Config) SetDataDir(dataDir string) {
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
	if c.ChainFile == DefaultChainFilePath() {
		c.ChainFile = filepath.Join(dataDir, DefaultChainFile)
	}
	c.DataDir = dataDir
}

// Validate reports settings the node cannot run with.
func (c *Config) Validate() error {
	switch c.SyncPolicy {
	case SyncLongest, SyncReplace:
	default:
		return fmt.Errorf("unknown sync-policy %q: use %q or %q", c.SyncPolicy, SyncLongest, SyncReplace)
	}
	return nil
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// TransportOptions returns the network transport settings of the config.
func (c *Config) TransportOptions() net.Options {
	opts := net.DefaultOptions()
	opts.MaxPool = c.MaxPool
	opts.Timeout = c.TCPTimeout
	opts.DialRetries = c.DialRetries
	opts.RateLimit = c.RateLimit
	opts.RateBurst = c.RateBurst
	return opts
}

// Logger returns a formatted logrus Entry, with prefix set to "murmur".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "murmur")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultChainFilePath returns the default path of the JSON chain snapshot.
func DefaultChainFilePath() string {
	return filepath.Join(DefaultDataDir(), DefaultChainFile)
}

// DefaultDataDir return the default directory name for top-level murmur
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Murmur")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Murmur")
		} else {
			return filepath.Join(home, ".murmur")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

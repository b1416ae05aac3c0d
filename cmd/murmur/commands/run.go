package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/murmur/src/murmur"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a Murmur node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runMurmur,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMurmur(cmd *cobra.Command, args []string) error {
	engine := murmur.NewMurmur(&_config.Murmur)

	if err := engine.Init(); err != nil {
		_config.Murmur.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		if _, ok := <-sigCh; ok {
			engine.Shutdown()
		}
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	c := &_config.Murmur

	cmd.Flags().String("datadir", c.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", c.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", c.LogFile, "Also write JSON logs to this file")
	cmd.Flags().String("moniker", c.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", c.BindAddr, "Listen IP:Port for murmur node")
	cmd.Flags().StringP("advertise", "a", c.AdvertiseAddr, "Advertise IP:Port for murmur node")
	cmd.Flags().DurationP("timeout", "t", c.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", c.MaxPool, "Connection pool size max")
	cmd.Flags().Uint64("dial-retries", c.DialRetries, "Extra dial attempts with exponential backoff")
	cmd.Flags().Float64("rate-limit", c.RateLimit, "Inbound messages per second per connection (0 disables)")
	cmd.Flags().Int("rate-burst", c.RateBurst, "Burst allowed above rate-limit")
	cmd.Flags().Bool("no-peers-out", c.NoPeerFileOut, "Do not rewrite peers.json on shutdown")

	// Discovery
	cmd.Flags().Bool("mdns", c.MDNS, "Discover peers on the local network")
	cmd.Flags().String("mdns-service", c.MDNSService, "mDNS service type")
	cmd.Flags().Duration("mdns-interval", c.MDNSInterval, "Time between mDNS browse rounds")

	// Service and console
	cmd.Flags().Bool("no-service", c.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", c.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-console", c.NoConsole, "Disable the interactive console")

	// Store
	cmd.Flags().Bool("store", c.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", c.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Bool("bootstrap", c.Bootstrap, "Load the chain from the database or the chain file")
	cmd.Flags().String("chain-file", c.ChainFile, "JSON file used by /save and bootstrap")

	// Chain
	cmd.Flags().Int("difficulty", c.Difficulty, "Leading zero hex characters required in block hashes")
	cmd.Flags().Int("miner-workers", c.MinerWorkers, "Concurrent mining jobs")
	cmd.Flags().String("sync-policy", c.SyncPolicy, "longest or replace")
	cmd.Flags().Duration("sync-timeout", c.SyncTimeout, "Time to wait for a sync reply")
	cmd.Flags().Duration("sync-interval", c.SyncInterval, "Time between automatic syncs (0 disables)")
	cmd.Flags().Duration("seen-ttl", c.SeenCacheTTL, "How long relayed block hashes are remembered")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	configFile, err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db or --chain-file, this
	// moves them inside the new datadir
	_config.Murmur.SetDataDir(_config.Murmur.DataDir)

	if err := _config.Murmur.Validate(); err != nil {
		return err
	}

	logFields := logrus.Fields{
		"murmur.DataDir":       _config.Murmur.DataDir,
		"murmur.BindAddr":      _config.Murmur.BindAddr,
		"murmur.AdvertiseAddr": _config.Murmur.AdvertiseAddr,
		"murmur.ServiceAddr":   _config.Murmur.ServiceAddr,
		"murmur.NoService":     _config.Murmur.NoService,
		"murmur.NoConsole":     _config.Murmur.NoConsole,
		"murmur.MaxPool":       _config.Murmur.MaxPool,
		"murmur.TCPTimeout":    _config.Murmur.TCPTimeout,
		"murmur.Store":         _config.Murmur.Store,
		"murmur.ChainFile":     _config.Murmur.ChainFile,
		"murmur.LogLevel":      _config.Murmur.LogLevel,
		"murmur.Moniker":       _config.Murmur.Moniker,
		"murmur.Difficulty":    _config.Murmur.Difficulty,
		"murmur.SyncPolicy":    _config.Murmur.SyncPolicy,
		"murmur.SyncTimeout":   _config.Murmur.SyncTimeout,
		"murmur.SyncInterval":  _config.Murmur.SyncInterval,
		"murmur.MDNS":          _config.Murmur.MDNS,
	}

	if _config.Murmur.Store {
		logFields["murmur.DatabaseDir"] = _config.Murmur.DatabaseDir
		logFields["murmur.Bootstrap"] = _config.Murmur.Bootstrap
	}

	if configFile != "" {
		logFields["ConfigFile"] = configFile
	}

	_config.Murmur.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper. The logger is only built
// once both passes are done, so that a log level from the file applies.
func bindFlagsLoadViper(cmd *cobra.Command) (string, error) {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return "", err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return "", err
	}

	// look for config file in [datadir]/murmur.toml (.json, .yaml also work)
	viper.SetConfigName("murmur")               // name of config file (without extension)
	viper.AddConfigPath(_config.Murmur.DataDir) // search root directory

	// If a config file is found, read it in.
	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return "", nil
	} else if err != nil {
		return "", err
	}

	// second unmarshal to read from config file
	return viper.ConfigFileUsed(), viper.Unmarshal(_config)
}

// Package config defines the configuration for a murmur node.
//
// Whether murmur is started from Go code or from the command line, it uses the
// Config object defined in this package to store and forward configuration
// options. On top of these options, murmur relies on a data directory,
// defined by Config.DataDir, where it expects to find or create a few files:
//
//  priv_key // a plain text file containing the raw private key (cf. murmur keygen).
//  peers.json // (optional) a JSON list of peer addresses to connect to at startup.
//  blockchain.json // (optional) a JSON snapshot of the chain, written by the save command.
//  badger_db/ // (with --store) the block database.
//  murmur.toml // (optional) configuration file read by the run command.
package config

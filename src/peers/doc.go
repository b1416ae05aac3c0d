// Package peers manages the addresses of the nodes a murmur node talks to.
//
// A peer is identified by the host:port address its transport listens on.
// The PeerSet is a deduplicated collection of such addresses, safe for
// concurrent use, from which callers take snapshots before sending.
//
// Upon starting up, a node looks for a peers.json file in its data directory
// and connects to the addresses it lists. The file is rewritten with the
// current peer set when the node shuts down.
package peers

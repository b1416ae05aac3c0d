// Package node implements the reactive component of a murmur node.
//
// A Node owns the local chain, the set of known peers and a transport. It
// answers inbound messages, mines blocks for submitted transactions and
// synchronises its chain with other nodes.
//
// Messaging
//
// Nodes exchange JSON messages over point-to-point connections. Send delivers
// a message to a single peer, Yell delivers it to every known peer
// concurrently and reports the peers it could not reach. Inbound messages are
// dispatched by variant through the message.Handler interface, which Node
// implements. Messages from one connection are handled one at a time and in
// order; messages from different connections are handled concurrently.
//
// Chain
//
// The chain lives behind a single lock. The lock is held while validating or
// mutating the chain and never while mining or sending: handlers take a
// snapshot under the lock and send it after release. Accepted blocks are
// persisted to a chain.Store.
//
// Sync
//
// Sync asks a random peer for its chain. The node then waits for the
// BlockchainReply (AwaitingReply), validates it (Validating) and returns to
// Idle with one of Adopted, Rejected or TimedOut. With the "longest" policy a
// valid chain is adopted only when it is strictly longer than the local one;
// with "replace" any valid chain is adopted.
//
// Transactions
//
// SubmitTx turns a piece of text into a block appended to the tip of the
// chain. Mining runs on a dedicated worker pool and is cancelled by Shutdown.
// The mined block is signed with the node key and broadcast in a BlockchainTx
// message. Nodes relay the blocks they accept to their own peers, remembering
// recent block hashes so that each block is applied and relayed once.
package node

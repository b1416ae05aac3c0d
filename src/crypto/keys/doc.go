// Package keys manages the key-pair a murmur node uses to sign the blocks it
// mines.
//
// Keys live on the secp256k1 curve. The private key is stored as a raw hex
// dump of its D value in the priv_key file of the node's data directory, and
// block signatures are the hex encoding of the fixed-width concatenation r||s
// computed over the decoded block hash.
package keys

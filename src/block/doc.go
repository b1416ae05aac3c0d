// Package block implements the unit of the murmur ledger.
//
// A Block is sealed by its Hash, the lowercase hex SHA256 digest of
//
//	decimal(Index) || decimal(Timestamp) || decimal(Nonce) || canonical(Data) || PrevHash
//
// and carries proof-of-work: Mine increments the Nonce until the Hash starts
// with the requested number of '0' hex characters. Blocks link to their
// predecessor through PrevHash; the first block of every chain is the
// deterministic Genesis block.
//
// The hash does not cover the Signature, which a miner may add afterwards
// with its node key.
package block

// Package crypto provides the hashing helpers used to seal blocks.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// SHA256Hex returns the lowercase hex SHA256 digest of the concatenation of
// parts.
func SHA256Hex(parts ...[]byte) string {
	hasher := sha256.New()
	for _, p := range parts {
		hasher.Write(p)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

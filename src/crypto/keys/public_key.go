package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"fmt"
)

// ToPublicKey parses the uncompressed form of a point on Curve().
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey outputs the uncompressed form of pub.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// PublicKeyHex returns the 0X-prefixed uppercase hex of FromPublicKey. This is
// the form printed by the keygen command and reported in node stats.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return fmt.Sprintf("0X%X", FromPublicKey(pub))
}

// ParsePublicKeyHex is the inverse of PublicKeyHex. The 0X prefix is optional.
func ParsePublicKeyHex(s string) (*ecdsa.PublicKey, error) {
	if len(s) > 2 && (s[:2] == "0X" || s[:2] == "0x") {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	pub := ToPublicKey(raw)
	if pub == nil {
		return nil, fmt.Errorf("invalid public key")
	}
	return pub, nil
}

package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Sign signs digest with priv.
func Sign(priv *ecdsa.PrivateKey, digest []byte) (r, s *big.Int, err error) {
	return ecdsa.Sign(rand.Reader, priv, digest)
}

// Verify reports whether r and s form a valid signature of digest by the
// owner of pub.
func Verify(pub *ecdsa.PublicKey, digest []byte, r, s *big.Int) bool {
	return ecdsa.Verify(pub, digest, r, s)
}

// EncodeSignature returns the hex encoding of r||s, each padded to the curve
// byte size.
func EncodeSignature(r, s *big.Int) string {
	size := Curve().Params().BitSize / 8
	buf := make([]byte, 0, 2*size)
	buf = append(buf, paddedBigBytes(r, size)...)
	buf = append(buf, paddedBigBytes(s, size)...)
	return hex.EncodeToString(buf)
}

// DecodeSignature parses a signature produced by EncodeSignature.
func DecodeSignature(sig string) (r, s *big.Int, err error) {
	raw, err := hex.DecodeString(sig)
	if err != nil {
		return nil, nil, err
	}
	size := Curve().Params().BitSize / 8
	if len(raw) != 2*size {
		return nil, nil, fmt.Errorf("wrong signature length: got %d bytes, want %d", len(raw), 2*size)
	}
	r = new(big.Int).SetBytes(raw[:size])
	s = new(big.Int).SetBytes(raw[size:])
	return r, s, nil
}

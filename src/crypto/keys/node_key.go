package keys

import (
	"crypto/ecdsa"
	"fmt"
)

// NodeKey signs block digests with a node's private key. It satisfies the
// block.Signer and block.Verifier interfaces.
type NodeKey struct {
	priv *ecdsa.PrivateKey
}

// NewNodeKey wraps priv.
func NewNodeKey(priv *ecdsa.PrivateKey) *NodeKey {
	return &NodeKey{priv: priv}
}

// Sign returns the encoded signature of digest.
func (k *NodeKey) Sign(digest []byte) (string, error) {
	r, s, err := Sign(k.priv, digest)
	if err != nil {
		return "", err
	}
	return EncodeSignature(r, s), nil
}

// Verify checks sig against digest using the public half of the key.
func (k *NodeKey) Verify(digest []byte, sig string) (bool, error) {
	return PublicVerifier{Pub: &k.priv.PublicKey}.Verify(digest, sig)
}

// Public returns the public key.
func (k *NodeKey) Public() *ecdsa.PublicKey {
	return &k.priv.PublicKey
}

// PublicVerifier verifies signatures with a bare public key.
type PublicVerifier struct {
	Pub *ecdsa.PublicKey
}

// Verify implements block.Verifier.
func (v PublicVerifier) Verify(digest []byte, sig string) (bool, error) {
	if v.Pub == nil {
		return false, fmt.Errorf("nil public key")
	}
	r, s, err := DecodeSignature(sig)
	if err != nil {
		return false, err
	}
	return Verify(v.Pub, digest, r, s), nil
}

package block

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrUnsigned is returned by Verify on a block without signature.
var ErrUnsigned = errors.New("block is not signed")

// Signer produces a signature over a digest.
type Signer interface {
	Sign(digest []byte) (string, error)
}

// Verifier checks a signature over a digest.
type Verifier interface {
	Verify(digest []byte, sig string) (bool, error)
}

func (b *Block) digest() ([]byte, error) {
	d, err := hex.DecodeString(b.Hash)
	if err != nil {
		return nil, fmt.Errorf("decoding block hash: %v", err)
	}
	return d, nil
}

// Sign signs the decoded hash and stores the signature. Signing does not
// change the hash, so sign after mining.
func (b *Block) Sign(signer Signer) error {
	d, err := b.digest()
	if err != nil {
		return err
	}

	sig, err := signer.Sign(d)
	if err != nil {
		return err
	}

	b.Signature = sig
	return nil
}

// Verify checks the signature against the decoded hash.
func (b *Block) Verify(verifier Verifier) (bool, error) {
	if b.Signature == "" {
		return false, ErrUnsigned
	}

	d, err := b.digest()
	if err != nil {
		return false, err
	}

	return verifier.Verify(d, b.Signature)
}

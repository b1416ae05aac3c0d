package chain

import "fmt"

// ChainErrType enumerates the reasons a block or chain is rejected.
type ChainErrType uint32

const (
	// LinkageMismatch means a block does not extend the tail: wrong index or
	// prev_hash.
	LinkageMismatch ChainErrType = iota
	// HashMismatch means the stored hash differs from the recomputed one.
	HashMismatch
	// ProofOfWorkUnmet means the hash lacks the required leading zeros.
	ProofOfWorkUnmet
	// EmptyChain means a sequence without blocks.
	EmptyChain
	// BadGenesis means the first block is not a valid genesis block.
	BadGenesis
	// KeyNotFound means a lookup for a missing block.
	KeyNotFound
)

// ChainErr is the error returned by chain validation and store lookups.
type ChainErr struct {
	dataType string
	errType  ChainErrType
	key      string
}

// NewChainErr ...
func NewChainErr(dataType string, errType ChainErrType, key string) ChainErr {
	return ChainErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Type returns the kind of the error.
func (e ChainErr) Type() ChainErrType {
	return e.errType
}

// Error ...
func (e ChainErr) Error() string {
	m := ""
	switch e.errType {
	case LinkageMismatch:
		m = "Linkage Mismatch"
	case HashMismatch:
		m = "Hash Mismatch"
	case ProofOfWorkUnmet:
		m = "Proof Of Work Unmet"
	case EmptyChain:
		m = "Empty Chain"
	case BadGenesis:
		m = "Bad Genesis"
	case KeyNotFound:
		m = "Not Found"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsChain checks that an error is a ChainErr of the given kind.
func IsChain(err error, t ChainErrType) bool {
	chainErr, ok := err.(ChainErr)
	return ok && chainErr.errType == t
}

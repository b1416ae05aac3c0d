package chain

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/murmur/src/block"
	"github.com/sirupsen/logrus"
)

const blockPrefix = "block_"

// BadgerStore persists blocks in a badger database. Lookups go through an
// InmemStore mirror loaded at open time.
type BadgerStore struct {
	sync.Mutex
	inmemStore    *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
}

// NewBadgerStore opens the database in path, creating it if needed, and loads
// its blocks into memory.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		opts = opts.WithLogger(logger.WithField("ns", "badger"))
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(),
		db:         handle,
		path:       path,
	}

	blocks, err := store.dbBlocks()
	if err != nil {
		handle.Close()
		return nil, err
	}

	if len(blocks) > 0 {
		store.needBootstrap = true
		if err := store.inmemStore.Reset(blocks); err != nil {
			handle.Close()
			return nil, err
		}
	}

	return store, nil
}

// LoadBadgerStore opens an existing database. It fails if path does not
// exist.
func LoadBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return NewBadgerStore(path, logger)
}

// LoadOrCreateBadgerStore opens the database in path or creates a fresh one.
func LoadOrCreateBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	store, err := LoadBadgerStore(path, logger)
	if err != nil {
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, err
		}
		return NewBadgerStore(path, logger)
	}
	return store, nil
}

func blockKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", blockPrefix, index))
}

// GetBlock implements Store.
func (s *BadgerStore) GetBlock(index uint64) (*block.Block, error) {
	b, err := s.inmemStore.GetBlock(index)
	if err != nil {
		b, err = s.dbGetBlock(index)
	}
	return b, mapError(err, "Block", strconv.FormatUint(index, 10))
}

// SetBlock implements Store.
func (s *BadgerStore) SetBlock(b *block.Block) error {
	s.Lock()
	defer s.Unlock()

	if err := s.inmemStore.SetBlock(b); err != nil {
		return err
	}
	return s.dbSetBlocks([]*block.Block{b})
}

// LastBlockIndex implements Store.
func (s *BadgerStore) LastBlockIndex() int {
	return s.inmemStore.LastBlockIndex()
}

// Blocks implements Store.
func (s *BadgerStore) Blocks() ([]*block.Block, error) {
	return s.inmemStore.Blocks()
}

// Reset implements Store. Stale blocks past the new tail are deleted.
func (s *BadgerStore) Reset(blocks []*block.Block) error {
	s.Lock()
	defer s.Unlock()

	last := s.inmemStore.LastBlockIndex()

	if err := s.dbDeleteFrom(uint64(len(blocks)), last); err != nil {
		return err
	}
	if err := s.dbSetBlocks(blocks); err != nil {
		return err
	}
	return s.inmemStore.Reset(blocks)
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements Store.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// NeedBootstrap reports whether the database held blocks when it was opened.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
// DB Methods

func (s *BadgerStore) dbGetBlock(index uint64) (*block.Block, error) {
	var blockBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(index))
		if err != nil {
			return err
		}
		blockBytes, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	b := new(block.Block)
	if err := b.Unmarshal(blockBytes); err != nil {
		return nil, err
	}
	return b, nil
}

// dbSetBlocks writes blocks, splitting the work over several transactions
// when one grows too big.
func (s *BadgerStore) dbSetBlocks(blocks []*block.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	tx := s.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for _, b := range blocks {
		val, err := b.Marshal()
		if err != nil {
			return err
		}

		err = tx.Set(blockKey(b.Index), val)
		if err == badger.ErrTxnTooBig {
			if err := tx.Commit(); err != nil {
				return err
			}
			tx = s.db.NewTransaction(true)
			err = tx.Set(blockKey(b.Index), val)
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *BadgerStore) dbDeleteFrom(from uint64, last int) error {
	if last < 0 || from > uint64(last) {
		return nil
	}

	tx := s.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for i := from; i <= uint64(last); i++ {
		err := tx.Delete(blockKey(i))
		if err == badger.ErrTxnTooBig {
			if err := tx.Commit(); err != nil {
				return err
			}
			tx = s.db.NewTransaction(true)
			err = tx.Delete(blockKey(i))
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *BadgerStore) dbBlocks() ([]*block.Block, error) {
	res := []*block.Block{}
	prefix := []byte(blockPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			b := new(block.Block)
			if err := b.Unmarshal(v); err != nil {
				return err
			}

			if b.Index != uint64(len(res)) {
				return fmt.Errorf("block store has a gap at index %d", len(res))
			}
			res = append(res, b)
		}
		return nil
	})

	return res, err
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil && isDBKeyNotFound(err) {
		return NewChainErr(name, KeyNotFound, key)
	}
	return err
}

package chain

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/lamarck/src/common"
	"github.com/mosaicnetworks/lamarck/src/validators"
)

const (
	blockPrefix     = "block"
	blockHashPrefix = "blockhash"
	validatorPrefix = "validator"
)

// BadgerStore is a write-through Store backed by a badger database. Every
// mutation goes to the wrapped InmemStore first and is then persisted, so
// reads are served from memory and the database only matters for bootstrap.
type BadgerStore struct {
	inmemStore    *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
}

// NewBadgerStore creates a brand new Store with a new database.
func NewBadgerStore(validatorSet *validators.Set, path string) (*BadgerStore, error) {
	inmemStore := NewInmemStore(validatorSet)
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	store := &BadgerStore{
		inmemStore: inmemStore,
		db:         handle,
		path:       path,
	}
	if validatorSet != nil {
		for _, v := range validatorSet.Validators {
			if err := store.dbSetValidator(v); err != nil {
				return nil, err
			}
		}
	}
	return store, nil
}

// LoadBadgerStore creates a Store from an existing database.
func LoadBadgerStore(path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	store := &BadgerStore{
		db:            handle,
		path:          path,
		needBootstrap: true,
	}

	validatorSet, err := store.dbGetValidatorSet()
	if err != nil {
		return nil, err
	}

	inmemStore := NewInmemStore(validatorSet)

	// replay the ledger into the InmemStore, in index order
	blocks, err := store.dbBlocks()
	if err != nil {
		return nil, err
	}
	for _, block := range blocks {
		if err := inmemStore.SetBlock(block); err != nil {
			return nil, err
		}
	}

	store.inmemStore = inmemStore

	return store, nil
}

// LoadOrCreateBadgerStore attempts to load an existing database and falls back
// to creating a new one.
func LoadOrCreateBadgerStore(validatorSet *validators.Set, path string) (*BadgerStore, error) {
	store, err := LoadBadgerStore(path)

	if err != nil {
		store, err = NewBadgerStore(validatorSet, path)

		if err != nil {
			return nil, err
		}
	}

	return store, nil
}

//==============================================================================
//Keys

func blockKey(index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d", blockPrefix, index))
}

func blockHashKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", blockHashPrefix, hash))
}

func validatorKey(id string) []byte {
	return []byte(fmt.Sprintf("%s_%s", validatorPrefix, id))
}

//==============================================================================
//Implement the Store interface

// GetBlock implements the Store interface.
func (s *BadgerStore) GetBlock(hash string) (*Block, error) {
	res, err := s.inmemStore.GetBlock(hash)
	if err != nil {
		res, err = s.dbGetBlockByHash(hash)
	}
	return res, mapError(err, "Block", hash)
}

// GetBlockByIndex implements the Store interface.
func (s *BadgerStore) GetBlockByIndex(index int) (*Block, error) {
	res, err := s.inmemStore.GetBlockByIndex(index)
	if err != nil {
		res, err = s.dbGetBlock(index)
	}
	return res, mapError(err, "Block", string(blockKey(index)))
}

// SetBlock implements the Store interface.
func (s *BadgerStore) SetBlock(block *Block) error {
	if err := s.inmemStore.SetBlock(block); err != nil {
		return err
	}
	return s.dbSetBlock(block)
}

// LastBlockIndex implements the Store interface.
func (s *BadgerStore) LastBlockIndex() int {
	return s.inmemStore.LastBlockIndex()
}

// Blocks implements the Store interface.
func (s *BadgerStore) Blocks() []*Block {
	return s.inmemStore.Blocks()
}

// GetValidatorSet implements the Store interface.
func (s *BadgerStore) GetValidatorSet() (*validators.Set, error) {
	return s.inmemStore.GetValidatorSet()
}

// AddValidator implements the Store interface.
func (s *BadgerStore) AddValidator(v *validators.Validator) error {
	if err := s.inmemStore.AddValidator(v); err != nil {
		return err
	}
	return s.dbSetValidator(v)
}

// NeedBootstrap implements the Store interface.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

//==============================================================================
//DB Methods

func (s *BadgerStore) dbGetBlock(index int) (*Block, error) {
	var blockBytes []byte
	key := blockKey(index)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			blockBytes = append([]byte{}, val...)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	block := new(Block)
	if err := block.Unmarshal(blockBytes); err != nil {
		return nil, err
	}

	return block, nil
}

func (s *BadgerStore) dbGetBlockByHash(hash string) (*Block, error) {
	var indexBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockHashKey(hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			indexBytes = append([]byte{}, val...)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	index, err := strconv.Atoi(string(indexBytes))
	if err != nil {
		return nil, err
	}

	return s.dbGetBlock(index)
}

func (s *BadgerStore) dbSetBlock(block *Block) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	val, err := block.Marshal()
	if err != nil {
		return err
	}

	//insert [index] => [block bytes]
	if err := tx.Set(blockKey(block.Index), val); err != nil {
		return err
	}

	//insert [hash] => [index]
	if err := tx.Set(blockHashKey(block.Hash), []byte(strconv.Itoa(block.Index))); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *BadgerStore) dbBlocks() ([]*Block, error) {
	res := []*Block{}

	for index := 0; ; index++ {
		block, err := s.dbGetBlock(index)
		if err != nil {
			break
		}
		res = append(res, block)
	}

	return res, nil
}

func (s *BadgerStore) dbGetValidatorSet() (*validators.Set, error) {
	vals := []*validators.Validator{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(validatorPrefix)

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := string(item.Key())
			id := k[len(validatorPrefix)+1:]

			var moniker string
			err := item.Value(func(val []byte) error {
				moniker = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			vals = append(vals, validators.NewValidator(id, moniker))
		}

		return nil
	})

	return validators.NewSet(vals), err
}

func (s *BadgerStore) dbSetValidator(v *validators.Validator) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	//insert [validator_id] => [moniker]
	if err := tx.Set(validatorKey(v.ID), []byte(v.Moniker)); err != nil {
		return err
	}

	return tx.Commit()
}

func mapError(err error, name, key string) error {
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}

package chain

import (
	"strconv"

	cm "github.com/mosaicnetworks/lamarck/src/common"
	"github.com/mosaicnetworks/lamarck/src/validators"
)

// InmemStore implements the Store interface with plain in-memory collections.
// The ledger is append-only and nothing is ever evicted, so memory use grows
// with the number of blocks; compaction is left to deployments that need it.
// The InmemStore itself is not synchronized; the Chain serializes access.
type InmemStore struct {
	blocks       []*Block
	blocksByHash map[string]*Block
	validatorSet *validators.Set
}

// NewInmemStore creates an InmemStore seeded with an initial validator set.
func NewInmemStore(validatorSet *validators.Set) *InmemStore {
	if validatorSet == nil {
		validatorSet = validators.NewSet([]*validators.Validator{})
	}

	store := &InmemStore{
		blocks:       []*Block{},
		blocksByHash: make(map[string]*Block),
		validatorSet: validatorSet,
	}
	return store
}

// GetBlock implements the Store interface.
func (s *InmemStore) GetBlock(hash string) (*Block, error) {
	block, ok := s.blocksByHash[hash]
	if !ok {
		return nil, cm.NewStoreErr("Block", cm.KeyNotFound, hash)
	}
	return block, nil
}

// GetBlockByIndex implements the Store interface.
func (s *InmemStore) GetBlockByIndex(index int) (*Block, error) {
	if index < 0 || index >= len(s.blocks) {
		return nil, cm.NewStoreErr("Block", cm.KeyNotFound, strconv.Itoa(index))
	}
	return s.blocks[index], nil
}

// SetBlock implements the Store interface.
func (s *InmemStore) SetBlock(block *Block) error {
	if existing, ok := s.blocksByHash[block.Hash]; ok {
		// update in place
		s.blocks[existing.Index] = block
		s.blocksByHash[block.Hash] = block
		return nil
	}

	if block.Index != len(s.blocks) {
		return cm.NewStoreErr("Block", cm.SkippedIndex, strconv.Itoa(block.Index))
	}

	s.blocks = append(s.blocks, block)
	s.blocksByHash[block.Hash] = block

	return nil
}

// LastBlockIndex implements the Store interface.
func (s *InmemStore) LastBlockIndex() int {
	return len(s.blocks) - 1
}

// Blocks implements the Store interface.
func (s *InmemStore) Blocks() []*Block {
	res := make([]*Block, len(s.blocks))
	copy(res, s.blocks)
	return res
}

// GetValidatorSet implements the Store interface.
func (s *InmemStore) GetValidatorSet() (*validators.Set, error) {
	if s.validatorSet == nil {
		return nil, cm.NewStoreErr("ValidatorSet", cm.NoValidatorSet, "")
	}
	return s.validatorSet, nil
}

// AddValidator implements the Store interface.
func (s *InmemStore) AddValidator(v *validators.Validator) error {
	s.validatorSet = s.validatorSet.WithNewValidator(v)
	return nil
}

// NeedBootstrap implements the Store interface.
func (s *InmemStore) NeedBootstrap() bool {
	return false
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

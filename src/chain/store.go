package chain

import "github.com/mosaicnetworks/lamarck/src/validators"

// Store is an interface for ledger backends.
type Store interface {
	// GetBlock returns a block by hash.
	GetBlock(hash string) (*Block, error)
	// GetBlockByIndex returns a block by ledger position.
	GetBlockByIndex(index int) (*Block, error)
	// SetBlock inserts or updates a block. Blocks are appended in index order;
	// updates rewrite a block whose votes or status changed.
	SetBlock(*Block) error
	// LastBlockIndex returns the index of the last block, or -1 when the
	// ledger is empty.
	LastBlockIndex() int
	// Blocks returns every block in ledger order.
	Blocks() []*Block
	// GetValidatorSet returns the registered validator identities.
	GetValidatorSet() (*validators.Set, error)
	// AddValidator registers a validator identity; idempotent.
	AddValidator(*validators.Validator) error
	// NeedBootstrap says whether the store was loaded from an existing
	// database.
	NeedBootstrap() bool
	// StorePath returns the filepath of the underlying database.
	StorePath() string
	// Close closes the underlying database.
	Close() error
}

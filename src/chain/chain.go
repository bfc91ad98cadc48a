package chain

import (
	"fmt"
	"sync"

	"github.com/mosaicnetworks/lamarck/src/validators"
	"github.com/sirupsen/logrus"
)

// CommitCallback is called exactly once per block, at the pending to validated
// transition, with a copy of the block that reached quorum.
type CommitCallback func(Block) error

// Chain manages the append-only ledger and the validator quorum for a single
// node's view. All mutating operations take the chain mutex, which gives the
// atomicity the ledger needs: appends always see the true predecessor, and the
// count-then-flip quorum transition cannot be run twice for the same block.
type Chain struct {
	sync.Mutex

	store          Store
	minValidators  int
	commitCallback CommitCallback
	logger         *logrus.Entry
}

// NewChain instantiates a Chain over a Store. minValidators is the quorum
// threshold: the number of distinct validator identities required to flip a
// block from pending to validated. commitCallback may be nil.
func NewChain(store Store, minValidators int, commitCallback CommitCallback, logger *logrus.Entry) *Chain {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Chain{
		store:          store,
		minValidators:  minValidators,
		commitCallback: commitCallback,
		logger:         logger.WithField("prefix", "chain"),
	}
}

// MinValidators returns the quorum threshold.
func (c *Chain) MinValidators() int {
	return c.minValidators
}

// RegisterValidator adds an identity to the validator registry. Registering an
// identity that is already present is a no-op.
func (c *Chain) RegisterValidator(id string, moniker string) error {
	c.Lock()
	defer c.Unlock()

	return c.store.AddValidator(validators.NewValidator(id, moniker))
}

// KnownValidators returns the registered validator identities.
func (c *Chain) KnownValidators() []string {
	c.Lock()
	defer c.Unlock()

	set, err := c.store.GetValidatorSet()
	if err != nil {
		return []string{}
	}
	return set.IDs()
}

// ValidatorSet returns the registry snapshot.
func (c *Chain) ValidatorSet() (*validators.Set, error) {
	c.Lock()
	defer c.Unlock()

	return c.store.GetValidatorSet()
}

// CreateBlock appends a new pending block carrying the change-set. The
// previous hash is taken from the last ledger entry, or the 64-zero genesis
// sentinel when the ledger is empty. It fails only when the change-set cannot
// be canonically serialized, or the store write fails; either way the ledger
// is left untouched.
func (c *Chain) CreateBlock(producerID string, changes ChangeSet) (*Block, error) {
	c.Lock()
	defer c.Unlock()

	prevHash := GenesisHash
	index := c.store.LastBlockIndex() + 1

	if index > 0 {
		lastBlock, err := c.store.GetBlockByIndex(index - 1)
		if err != nil {
			return nil, err
		}
		prevHash = lastBlock.Hash
	}

	block, err := NewBlock(index, producerID, changes, prevHash)
	if err != nil {
		return nil, fmt.Errorf("serializing changes: %v", err)
	}

	if err := c.store.SetBlock(block); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"index":    block.Index,
		"hash":     block.Hash,
		"producer": producerID,
	}).Debug("Created block")

	return block, nil
}

// ValidateBlock records a validation vote on a block. It returns true exactly
// once per block: the instant the vote brings the distinct-validator count to
// the quorum threshold. Any other outcome returns false with a VoteErr
// explaining why (unknown block, rejected block, quorum already reached) or
// nil when the vote was recorded without reaching quorum. Voting twice with
// the same identity on a pending block is absorbed by set semantics.
func (c *Chain) ValidateBlock(hash string, validatorID string) (bool, error) {
	c.Lock()

	block, err := c.store.GetBlock(hash)
	if err != nil {
		c.Unlock()
		return false, NewVoteErr(hash, UnknownBlock)
	}

	switch block.Status {
	case Rejected:
		c.Unlock()
		return false, NewVoteErr(hash, BlockRejected)
	case Validated:
		c.Unlock()
		return false, NewVoteErr(hash, AlreadyValidated)
	}

	added := block.AddValidator(validatorID)

	reached := block.ValidatorCount() >= c.minValidators
	if reached {
		block.Status = Validated
	}

	if err := c.store.SetBlock(block); err != nil {
		// all-or-nothing: roll the in-memory mutation back
		if reached {
			block.Status = Pending
		}
		if added {
			block.RemoveValidator(validatorID)
		}
		c.Unlock()
		return false, err
	}

	c.logger.WithFields(logrus.Fields{
		"hash":       hash,
		"validator":  validatorID,
		"validators": block.ValidatorCount(),
		"status":     block.Status.String(),
	}).Debug("Validated block")

	if !reached {
		c.Unlock()
		return false, nil
	}

	// fire the commit callback outside the lock, with a copy, so the
	// application cannot re-enter the chain or mutate the ledger entry
	blockCopy := *block.Copy()
	callback := c.commitCallback
	c.Unlock()

	if callback != nil {
		if err := callback(blockCopy); err != nil {
			c.logger.WithError(err).Error("Commit callback failed")
		}
	}

	return true, nil
}

// RejectBlock marks a block rejected. Rejection is terminal: further votes on
// the block fail, and rejecting it again is a no-op. Rejecting a validated
// block is forbidden and returns a VoteErr with the AlreadyValidated code;
// the quorum transition already fired and silently unwinding it would leave
// no audit trail.
func (c *Chain) RejectBlock(hash string) error {
	c.Lock()
	defer c.Unlock()

	block, err := c.store.GetBlock(hash)
	if err != nil {
		return NewVoteErr(hash, UnknownBlock)
	}

	if block.Status == Validated {
		return NewVoteErr(hash, AlreadyValidated)
	}

	if block.Status == Rejected {
		return nil
	}

	block.Status = Rejected

	if err := c.store.SetBlock(block); err != nil {
		block.Status = Pending
		return err
	}

	c.logger.WithField("hash", hash).Debug("Rejected block")

	return nil
}

// GetBlock returns a copy of a block by hash. Copies insulate the caller from
// votes arriving after the lock is released; the ledger entry itself never
// leaves the chain.
func (c *Chain) GetBlock(hash string) (*Block, error) {
	c.Lock()
	defer c.Unlock()

	block, err := c.store.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	return block.Copy(), nil
}

// GetBlockByIndex returns a copy of a block by ledger position.
func (c *Chain) GetBlockByIndex(index int) (*Block, error) {
	c.Lock()
	defer c.Unlock()

	block, err := c.store.GetBlockByIndex(index)
	if err != nil {
		return nil, err
	}
	return block.Copy(), nil
}

// LastBlock returns a copy of the last block in the ledger, or an error when
// the ledger is empty.
func (c *Chain) LastBlock() (*Block, error) {
	c.Lock()
	defer c.Unlock()

	block, err := c.store.GetBlockByIndex(c.store.LastBlockIndex())
	if err != nil {
		return nil, err
	}
	return block.Copy(), nil
}

// LastBlockIndex returns the index of the last block, or -1 when the ledger
// is empty.
func (c *Chain) LastBlockIndex() int {
	c.Lock()
	defer c.Unlock()

	return c.store.LastBlockIndex()
}

// Blocks returns a copy of every block, in ledger order. The snapshot can be
// read or encoded without holding the chain lock.
func (c *Chain) Blocks() []*Block {
	c.Lock()
	defer c.Unlock()

	res := []*Block{}
	for _, block := range c.store.Blocks() {
		res = append(res, block.Copy())
	}
	return res
}

// PendingBlockHashes returns the hashes of pending blocks, in ledger order.
func (c *Chain) PendingBlockHashes() []string {
	c.Lock()
	defer c.Unlock()

	res := []string{}
	for _, block := range c.store.Blocks() {
		if block.Status == Pending {
			res = append(res, block.Hash)
		}
	}
	return res
}

// HasVoted says whether a validator has already voted on a block. Unknown
// blocks count as not voted.
func (c *Chain) HasVoted(hash string, validatorID string) bool {
	c.Lock()
	defer c.Unlock()

	block, err := c.store.GetBlock(hash)
	if err != nil {
		return false
	}
	return block.HasValidator(validatorID)
}

// ValidatedChanges returns the change-sets of validated blocks, in ledger
// order. Each call restarts the scan.
func (c *Chain) ValidatedChanges() []ChangeSet {
	return c.changesByStatus(Validated)
}

// PendingChanges returns the change-sets of pending blocks, in ledger order.
// Each call restarts the scan.
func (c *Chain) PendingChanges() []ChangeSet {
	return c.changesByStatus(Pending)
}

func (c *Chain) changesByStatus(status BlockStatus) []ChangeSet {
	c.Lock()
	defer c.Unlock()

	res := []ChangeSet{}
	for _, block := range c.store.Blocks() {
		if block.Status == status {
			res = append(res, block.Changes)
		}
	}
	return res
}

// StatusCounts returns the number of pending, validated, and rejected blocks.
func (c *Chain) StatusCounts() (pending int, validated int, rejected int) {
	c.Lock()
	defer c.Unlock()

	for _, block := range c.store.Blocks() {
		switch block.Status {
		case Pending:
			pending++
		case Validated:
			validated++
		case Rejected:
			rejected++
		}
	}
	return
}

// VerifyChain replays the whole ledger and checks it link by link: every
// block's hash must recompute to the stored value, and every block's
// prev_hash must equal the predecessor's hash (the genesis sentinel for the
// first block). The chain trusts its own hashes during normal operation, so
// this is the offline audit path.
func (c *Chain) VerifyChain() error {
	c.Lock()
	defer c.Unlock()

	prevHash := GenesisHash

	for _, block := range c.store.Blocks() {
		if block.PrevHash != prevHash {
			return fmt.Errorf("block %d: prev_hash %s does not match %s", block.Index, block.PrevHash, prevHash)
		}

		recomputed, err := block.RecomputeHash()
		if err != nil {
			return fmt.Errorf("block %d: %v", block.Index, err)
		}

		if recomputed != block.Hash {
			return fmt.Errorf("block %d: hash %s does not recompute, got %s", block.Index, block.Hash, recomputed)
		}

		prevHash = block.Hash
	}

	return nil
}

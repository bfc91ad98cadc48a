package chain

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/mosaicnetworks/lamarck/src/crypto"
)

// GenesisHash is the prev_hash sentinel of the first block in a ledger.
var GenesisHash = strings.Repeat("0", 64)

// BlockStatus is the lifecycle status of a Block: Pending, Validated, or
// Rejected.
type BlockStatus uint32

const (
	// Pending is the initial status of a block, before quorum is reached.
	Pending BlockStatus = iota
	// Validated means a quorum of distinct validators vouched for the block.
	Validated
	// Rejected is terminal; a rejected block can never be validated.
	Rejected
)

// String ...
func (s BlockStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Validated:
		return "validated"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MarshalText makes BlockStatus serialize as its string form in JSON.
func (s BlockStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText ...
func (s *BlockStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "validated":
		*s = Validated
	case "rejected":
		*s = Rejected
	default:
		*s = Pending
	}
	return nil
}

// Block is a record of a proposed change-set plus its position in a hash
// chain. Index, validator votes, and status are managed by the Chain; the
// other fields are set at creation and never change. The hash covers
// timestamp, producer, canonical change-set, and previous hash, so the whole
// ledger verifies by linear recomputation.
type Block struct {
	Index      int         `json:"index"`
	Timestamp  time.Time   `json:"timestamp"`
	ProducerID string      `json:"producer_id"`
	Changes    ChangeSet   `json:"changes"`
	PrevHash   string      `json:"prev_hash"`
	Hash       string      `json:"hash"`
	Validators []string    `json:"validators"`
	Status     BlockStatus `json:"status"`

	validatorSet map[string]bool
}

// NewBlock creates a Block and computes its hash. It returns an error only if
// the change-set cannot be canonically serialized.
func NewBlock(index int, producerID string, changes ChangeSet, prevHash string) (*Block, error) {
	block := &Block{
		Index:        index,
		Timestamp:    time.Now().UTC(),
		ProducerID:   producerID,
		Changes:      changes,
		PrevHash:     prevHash,
		Validators:   []string{},
		Status:       Pending,
		validatorSet: make(map[string]bool),
	}

	hash, err := block.digest()
	if err != nil {
		return nil, err
	}
	block.Hash = hash

	return block, nil
}

// digest computes the SHA256 hex digest over the concatenation of the
// RFC3339Nano timestamp, the producer id, the canonical change-set bytes, and
// the previous hash.
func (b *Block) digest() (string, error) {
	changeBytes, err := b.Changes.Marshal()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(b.Timestamp.UTC().Format(time.RFC3339Nano))
	buf.WriteString(b.ProducerID)
	buf.Write(changeBytes)
	buf.WriteString(b.PrevHash)

	return crypto.SHA256Hex(buf.Bytes()), nil
}

// RecomputeHash re-derives the digest from the block's current content. It is
// used by external auditors replaying the chain; the stored Hash field is
// computed once at creation and never overwritten.
func (b *Block) RecomputeHash() (string, error) {
	return b.digest()
}

// AddValidator records a validation vote. It returns false when the identity
// has already voted on this block, enforcing set semantics.
func (b *Block) AddValidator(id string) bool {
	if b.validatorSet == nil {
		b.validatorSet = make(map[string]bool)
		for _, v := range b.Validators {
			b.validatorSet[v] = true
		}
	}

	if b.validatorSet[id] {
		return false
	}

	b.validatorSet[id] = true
	b.Validators = append(b.Validators, id)
	sort.Strings(b.Validators)

	return true
}

// RemoveValidator undoes an AddValidator; used to roll back a vote when the
// store write fails.
func (b *Block) RemoveValidator(id string) {
	if b.validatorSet == nil || !b.validatorSet[id] {
		return
	}

	delete(b.validatorSet, id)

	validators := []string{}
	for _, v := range b.Validators {
		if v != id {
			validators = append(validators, v)
		}
	}
	b.Validators = validators
}

// HasValidator says whether an identity has already voted on this block.
func (b *Block) HasValidator(id string) bool {
	if b.validatorSet == nil {
		for _, v := range b.Validators {
			if v == id {
				return true
			}
		}
		return false
	}
	return b.validatorSet[id]
}

// ValidatorCount returns the number of distinct validators that voted on this
// block.
func (b *Block) ValidatorCount() int {
	return len(b.Validators)
}

// Copy returns a copy of the block that is safe to hold outside the chain
// lock: the Validators slice is duplicated, since votes append to it and
// re-sort it. The change-set is shared; it is never mutated after the block is
// created.
func (b *Block) Copy() *Block {
	blockCopy := *b
	blockCopy.Validators = append([]string{}, b.Validators...)
	blockCopy.validatorSet = nil
	return &blockCopy
}

// Marshal - json encoding of the block.
func (b *Block) Marshal() ([]byte, error) {
	bf := bytes.NewBuffer([]byte{})
	enc := json.NewEncoder(bf)
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return bf.Bytes(), nil
}

// Unmarshal ...
func (b *Block) Unmarshal(data []byte) error {
	bf := bytes.NewBuffer(data)
	dec := json.NewDecoder(bf)
	if err := dec.Decode(b); err != nil {
		return err
	}

	b.validatorSet = make(map[string]bool)
	for _, v := range b.Validators {
		b.validatorSet[v] = true
	}

	return nil
}

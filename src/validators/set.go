package validators

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/mosaicnetworks/lamarck/src/common"
	"github.com/mosaicnetworks/lamarck/src/crypto"
)

// Set is a registry of Validators.
type Set struct {
	Validators []*Validator          `json:"validators"`
	ByID       map[string]*Validator `json:"-"`

	//cached values
	hash []byte
	hex  string
}

/* Constructors */

// NewSet creates a new Set from a list of Validators.
func NewSet(validators []*Validator) *Set {
	set := &Set{
		ByID: make(map[string]*Validator),
	}

	for _, validator := range validators {
		set.ByID[validator.ID] = validator
	}

	set.Validators = validators

	return set
}

// WithNewValidator returns a new Set with a list of validators including the
// new one. Adding an identity that is already present is a no-op.
func (s *Set) WithNewValidator(validator *Validator) *Set {
	validators := s.Validators

	if _, ok := s.ByID[validator.ID]; !ok {
		validators = append(validators, validator)
	}

	return NewSet(validators)
}

// WithRemovedValidator returns a new Set with a list of validators excluding
// the provided identity.
func (s *Set) WithRemovedValidator(id string) *Set {
	validators := []*Validator{}
	for _, v := range s.Validators {
		if v.ID != id {
			validators = append(validators, v)
		}
	}
	return NewSet(validators)
}

/* ToSlice Methods */

// IDs returns the Set's slice of identities.
func (s *Set) IDs() []string {
	res := []string{}

	for _, validator := range s.Validators {
		res = append(res, validator.ID)
	}

	return res
}

/* Utilities */

// Contains says whether an identity belongs to the Set.
func (s *Set) Contains(id string) bool {
	_, ok := s.ByID[id]
	return ok
}

// Len returns the number of Validators in the Set.
func (s *Set) Len() int {
	return len(s.ByID)
}

// Hash uniquely identifies a Set. It is computed by hashing (SHA256) the
// sorted identities together, one by one.
func (s *Set) Hash() ([]byte, error) {
	if len(s.hash) == 0 {
		ids := s.IDs()
		sort.Strings(ids)

		hash := []byte{}
		for _, id := range ids {
			hash = crypto.SimpleHashFromTwoHashes(hash, []byte(id))
		}
		s.hash = hash
	}
	return s.hash, nil
}

// Hex is the hexadecimal representation of Hash.
func (s *Set) Hex() string {
	if len(s.hex) == 0 {
		hash, _ := s.Hash()
		s.hex = common.EncodeToString(hash)
	}
	return s.hex
}

// Marshal marshals the Set's validator list.
func (s *Set) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(s.Validators); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

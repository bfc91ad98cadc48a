package chain

import (
	"bytes"

	"github.com/mosaicnetworks/lamarck/src/crypto"
	"github.com/ugorji/go/codec"
)

// ChangeSet is an opaque key-value payload describing a unit of work produced
// by a node (ex. a summary of local model updates). The chain never interprets
// its content; it only requires a deterministic serialization for hashing.
type ChangeSet map[string]interface{}

// Marshal produces the canonical encoding of the ChangeSet. The codec's
// canonical JSON handle sorts map keys, so the same ChangeSet always
// serializes to the same bytes regardless of map iteration order.
func (cs ChangeSet) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(cs); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (cs *ChangeSet) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(cs); err != nil {
		return err
	}

	return nil
}

// Hash returns the SHA256 hash of the canonical encoding.
func (cs ChangeSet) Hash() ([]byte, error) {
	hashBytes, err := cs.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(hashBytes), nil
}

package validators

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"sync"
)

const jsonValidatorSetPath = "validators.json"

// JSONValidatorSet is used to provide validator persistence on disk in the
// form of a JSON file.
type JSONValidatorSet struct {
	l    sync.Mutex
	path string
}

// NewJSONValidatorSet creates a new JSONValidatorSet with reference to a base
// directory where the JSON file resides.
func NewJSONValidatorSet(base string) *JSONValidatorSet {
	path := filepath.Join(base, jsonValidatorSetPath)

	store := &JSONValidatorSet{
		path: path,
	}
	return store
}

// Set parses the underlying JSON file and returns the corresponding Set.
func (j *JSONValidatorSet) Set() (*Set, error) {
	j.l.Lock()
	defer j.l.Unlock()

	// Read the file
	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	// Check for no validators
	if len(buf) == 0 {
		return nil, nil
	}

	// Decode the validators
	var validators []*Validator
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&validators); err != nil {
		return nil, err
	}

	return NewSet(validators), nil
}

// Write persists a list of validators to a JSON file.
func (j *JSONValidatorSet) Write(validators []*Validator) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(validators); err != nil {
		return err
	}

	// Write out as JSON
	return ioutil.WriteFile(j.path, buf.Bytes(), 0755)
}

package evolution

import (
	"bytes"
	"encoding/json"
	"time"
)

// Required parameter keys of every proposal.
const (
	ParamThreshold     = "threshold"
	ParamTimeout       = "timeout"
	ParamMinValidators = "min_validators"
)

// Proposal is a candidate consensus-rule parameterization submitted by a
// node. FitnessScore is a caller-supplied quality signal, nominally in [0,1]:
// it ranks proposals for selection and drives the proposer's reputation.
// Justification is free text that must clear a minimum length and word count
// before the proposal is admitted.
type Proposal struct {
	NodeID        string             `json:"node_id"`
	Type          RuleType           `json:"rule_type"`
	Parameters    map[string]float64 `json:"parameters"`
	FitnessScore  float64            `json:"fitness_score"`
	Timestamp     time.Time          `json:"timestamp"`
	Justification string             `json:"justification"`
}

// Marshal - json encoding of the proposal.
func (p *Proposal) Marshal() ([]byte, error) {
	bf := bytes.NewBuffer([]byte{})
	enc := json.NewEncoder(bf)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bf.Bytes(), nil
}

// Unmarshal ...
func (p *Proposal) Unmarshal(data []byte) error {
	bf := bytes.NewBuffer(data)
	dec := json.NewDecoder(bf)
	if err := dec.Decode(p); err != nil {
		return err
	}
	return nil
}

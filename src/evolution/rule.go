package evolution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RuleType is a closed set of consensus-rule families.
type RuleType uint32

const (
	// Majority is a plain distinct-vote count rule.
	Majority RuleType = iota
	// Weighted weighs votes by a per-validator coefficient.
	Weighted
	// Reputation weighs votes by proposer reputation.
	Reputation
	// Evolutionary is the family of rules produced by blending proposals.
	Evolutionary
)

// String ...
func (r RuleType) String() string {
	switch r {
	case Majority:
		return "majority"
	case Weighted:
		return "weighted"
	case Reputation:
		return "reputation"
	case Evolutionary:
		return "evolutionary"
	default:
		return "unknown"
	}
}

// ParseRuleType converts a string into a RuleType, rejecting anything outside
// the closed set.
func ParseRuleType(s string) (RuleType, error) {
	switch s {
	case "majority":
		return Majority, nil
	case "weighted":
		return Weighted, nil
	case "reputation":
		return Reputation, nil
	case "evolutionary":
		return Evolutionary, nil
	default:
		return Majority, fmt.Errorf("unknown rule type %q", s)
	}
}

// MarshalText makes RuleType serialize as its string form in JSON.
func (r RuleType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText ...
func (r *RuleType) UnmarshalText(text []byte) error {
	parsed, err := ParseRuleType(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Rule is the currently installed consensus rule: a family plus its parameter
// mapping. It is replaced only through evolution.
type Rule struct {
	Type       RuleType           `json:"rule_type"`
	Parameters map[string]float64 `json:"parameters"`
}

// RuleRecord is the immutable audit record of an applied rule. One is
// appended to the history every time evolution occurs.
type RuleRecord struct {
	ID            string             `json:"id"`
	Type          RuleType           `json:"rule_type"`
	Parameters    map[string]float64 `json:"parameters"`
	Timestamp     time.Time          `json:"timestamp"`
	Contributors  []string           `json:"proposals_used"`
	FitnessMean   float64            `json:"fitness_mean"`
	FitnessStdDev float64            `json:"fitness_stddev"`
}

// Marshal - json encoding of the record.
func (r *RuleRecord) Marshal() ([]byte, error) {
	bf := bytes.NewBuffer([]byte{})
	enc := json.NewEncoder(bf)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bf.Bytes(), nil
}

// Unmarshal ...
func (r *RuleRecord) Unmarshal(data []byte) error {
	bf := bytes.NewBuffer(data)
	dec := json.NewDecoder(bf)
	if err := dec.Decode(r); err != nil {
		return err
	}
	return nil
}

package evolution

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/lamarck/src/common"
)

// longJustification clears the 100-character and 20-word gates.
const longJustification = "Raising the validation threshold and lowering the timeout has consistently " +
	"reduced the rate of stale pending blocks in our deployment, while keeping the " +
	"quorum reachable for the current validator population across several test runs."

func newTestEngine(t *testing.T) *Engine {
	engine, err := NewEngine(nil, nil, nil, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return engine
}

func newTestProposal(nodeID string, fitness float64) *Proposal {
	return &Proposal{
		NodeID: nodeID,
		Type:   Majority,
		Parameters: map[string]float64{
			ParamThreshold:     0.6,
			ParamTimeout:       30,
			ParamMinValidators: 3,
		},
		FitnessScore:  fitness,
		Timestamp:     time.Now().UTC(),
		Justification: longJustification,
	}
}

func TestProposeRule(t *testing.T) {
	engine := newTestEngine(t)

	if err := engine.ProposeRule(newTestProposal("node0", 0.8)); err != nil {
		t.Fatalf("err: %v", err)
	}

	if engine.PoolSize() != 1 {
		t.Fatalf("pool size should be 1, not %d", engine.PoolSize())
	}
}

func TestReputationUpdate(t *testing.T) {
	engine := newTestEngine(t)

	if _, known := engine.Reputation("node0"); known {
		t.Fatal("node0 should not have a reputation record yet")
	}

	if err := engine.ProposeRule(newTestProposal("node0", 1.0)); err != nil {
		t.Fatalf("err: %v", err)
	}

	// 0.7*0.5 + 0.3*1.0 = 0.65
	score, known := engine.Reputation("node0")
	if !known {
		t.Fatal("node0 should have a reputation record")
	}
	if math.Abs(score-0.65) > 1e-9 {
		t.Fatalf("reputation should be 0.65, not %v", score)
	}
}

func TestMissingParameters(t *testing.T) {
	engine := newTestEngine(t)

	proposal := newTestProposal("node0", 0.8)
	delete(proposal.Parameters, ParamTimeout)

	err := engine.ProposeRule(proposal)
	if !IsProposal(err, MissingParameters) {
		t.Fatalf("err should be MissingParameters, not %v", err)
	}

	if engine.PoolSize() != 0 {
		t.Fatalf("rejected proposal should not enter the pool; size is %d", engine.PoolSize())
	}

	if _, known := engine.Reputation("node0"); known {
		t.Fatal("rejected proposal should not create a reputation record")
	}
}

func TestThinJustification(t *testing.T) {
	engine := newTestEngine(t)

	cases := []struct {
		name          string
		justification string
	}{
		{"short", "too short"},
		{"few words", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proposal := newTestProposal("node0", 0.8)
			proposal.Justification = tc.justification

			err := engine.ProposeRule(proposal)
			if !IsProposal(err, ThinJustification) {
				t.Fatalf("err should be ThinJustification, not %v", err)
			}

			if engine.PoolSize() != 0 {
				t.Fatalf("rejected proposal should not enter the pool; size is %d", engine.PoolSize())
			}

			if _, known := engine.Reputation("node0"); known {
				t.Fatal("rejected proposal should not update reputation")
			}
		})
	}
}

func TestLowReputationGate(t *testing.T) {
	engine := newTestEngine(t)

	// drive node0's reputation below the floor with a string of zero-fitness
	// proposals: 0.5 -> 0.35 after one
	if err := engine.ProposeRule(newTestProposal("node0", 0)); err != nil {
		t.Fatalf("err: %v", err)
	}

	score, _ := engine.Reputation("node0")
	if score >= 0.5 {
		t.Fatalf("reputation should have dropped below 0.5, got %v", score)
	}

	err := engine.ProposeRule(newTestProposal("node0", 1.0))
	if !IsProposal(err, LowReputation) {
		t.Fatalf("err should be LowReputation, not %v", err)
	}

	// an unknown proposer is exempt from the gate
	if err := engine.ProposeRule(newTestProposal("node1", 1.0)); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestEvolutionTrigger(t *testing.T) {
	engine := newTestEngine(t)

	installed := []RuleRecord{}
	engine.installCallback = func(record RuleRecord) {
		installed = append(installed, record)
	}

	fitnesses := []float64{0.9, 0.8, 0.95, 0.3, 0.6}

	for i, fitness := range fitnesses {
		proposal := newTestProposal(fmt.Sprintf("node%d", i), fitness)
		// spread the threshold parameter so the blend is observable
		proposal.Parameters[ParamThreshold] = 0.1 * float64(i+1)

		if err := engine.ProposeRule(proposal); err != nil {
			t.Fatalf("proposal %d: %v", i, err)
		}
	}

	if engine.PoolSize() != 0 {
		t.Fatalf("pool should be cleared after evolution; size is %d", engine.PoolSize())
	}

	rule := engine.CurrentRule()
	if rule == nil {
		t.Fatal("an active rule should be installed")
	}

	if rule.Type != Evolutionary {
		t.Fatalf("rule type should be evolutionary, not %v", rule.Type)
	}

	// top 3 by fitness: node2 (0.95), node0 (0.9), node1 (0.8)
	// thresholds: 0.3, 0.1, 0.2 -> mean 0.2
	if math.Abs(rule.Parameters[ParamThreshold]-0.2) > 1e-9 {
		t.Fatalf("blended threshold should be 0.2, not %v", rule.Parameters[ParamThreshold])
	}

	history := engine.History()
	if len(history) != 1 {
		t.Fatalf("history should contain 1 record, not %d", len(history))
	}

	expectedContributors := []string{"node2", "node0", "node1"}
	if !reflect.DeepEqual(history[0].Contributors, expectedContributors) {
		t.Fatalf("contributors should be %v, not %v", expectedContributors, history[0].Contributors)
	}

	if len(installed) != 1 {
		t.Fatalf("install callback should fire once, fired %d times", len(installed))
	}
}

func TestNoEvolutionBelowThreshold(t *testing.T) {
	engine := newTestEngine(t)

	for i := 0; i < 4; i++ {
		if err := engine.ProposeRule(newTestProposal(fmt.Sprintf("node%d", i), 0.8)); err != nil {
			t.Fatalf("err: %v", err)
		}
	}

	if engine.CurrentRule() != nil {
		t.Fatal("no rule should be installed below the pool threshold")
	}

	if engine.PoolSize() != 4 {
		t.Fatalf("pool size should be 4, not %d", engine.PoolSize())
	}
}

func TestImprovementPolicyRefusal(t *testing.T) {
	engine := newTestEngine(t)

	engine.SetImprovementPolicy(func(candidate *Rule, current *Rule, selected []*Proposal) bool {
		return false
	})

	for i := 0; i < 6; i++ {
		if err := engine.ProposeRule(newTestProposal(fmt.Sprintf("node%d", i), 0.8)); err != nil {
			t.Fatalf("err: %v", err)
		}
	}

	if engine.CurrentRule() != nil {
		t.Fatal("refused candidate should not be installed")
	}

	// the pool is retained when the policy refuses
	if engine.PoolSize() != 6 {
		t.Fatalf("pool should be retained; size is %d", engine.PoolSize())
	}
}

func TestConcurrentProposals(t *testing.T) {
	engine := newTestEngine(t)

	done := make(chan struct{})
	for i := 0; i < 7; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			engine.ProposeRule(newTestProposal(fmt.Sprintf("node%d", id), 0.8))
		}(i)
	}
	for i := 0; i < 7; i++ {
		<-done
	}

	// 7 accepted proposals cross the threshold exactly once; 2 remain
	if len(engine.History()) != 1 {
		t.Fatalf("exactly one evolution should occur, got %d", len(engine.History()))
	}

	if engine.PoolSize() != 2 {
		t.Fatalf("pool size should be 2, not %d", engine.PoolSize())
	}
}

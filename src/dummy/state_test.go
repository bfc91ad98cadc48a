package dummy

import (
	"bytes"
	"testing"

	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/common"
	"github.com/mosaicnetworks/lamarck/src/node"
	"github.com/mosaicnetworks/lamarck/src/node/state"
)

func TestCommitHandler(t *testing.T) {
	s := NewState(common.NewTestLogger(t))

	learner := NewLearner("node0", 1)

	block0, err := chain.NewBlock(0, "node0", learner.Next(), chain.GenesisHash)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	resp, err := s.CommitHandler(*block0)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if len(resp.StateHash) == 0 {
		t.Fatal("state hash should not be empty")
	}

	block1, err := chain.NewBlock(1, "node0", learner.Next(), block0.Hash)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	resp2, err := s.CommitHandler(*block1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	// the state hash evolves with every commit
	if bytes.Equal(resp.StateHash, resp2.StateHash) {
		t.Fatal("state hash should change between commits")
	}

	if len(s.GetCommittedBlocks()) != 2 {
		t.Fatalf("2 blocks should be committed, not %d", len(s.GetCommittedBlocks()))
	}
}

func TestStateChangeHandler(t *testing.T) {
	s := NewState(common.NewTestLogger(t))

	if err := s.StateChangeHandler(state.Running); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := s.StateChangeHandler(state.Suspended); err != nil {
		t.Fatalf("err: %v", err)
	}

	states := s.GetNodeStates()
	if len(states) != 2 || states[1] != state.Suspended {
		t.Fatalf("node states should end with Suspended, got %v", states)
	}
}

func TestLearnerWithinLimits(t *testing.T) {
	learner := NewLearner("node0", 1)

	for i := 0; i < 10; i++ {
		if err := node.CheckChanges(learner.Next(), 1.0, 0.1); err != nil {
			t.Fatalf("learner changes should pass vetting: %v", err)
		}
	}

	if err := node.CheckChanges(learner.Oversized(), 1.0, 0.1); err == nil {
		t.Fatal("oversized changes should fail vetting")
	}
}

package chain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/mosaicnetworks/lamarck/src/common"
)

func newTestChain(t *testing.T, minValidators int) *Chain {
	store := NewInmemStore(nil)
	return NewChain(store, minValidators, nil, common.NewTestEntry(t))
}

func TestCreateBlock(t *testing.T) {
	c := newTestChain(t, 3)

	block, err := c.CreateBlock("node0", ChangeSet{"x": 1})
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if block.PrevHash != GenesisHash {
		t.Fatalf("first block's prev_hash should be the genesis sentinel, not %s", block.PrevHash)
	}

	block2, err := c.CreateBlock("node1", ChangeSet{"y": 2})
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if block2.PrevHash != block.Hash {
		t.Fatalf("prev_hash should be %s, not %s", block.Hash, block2.PrevHash)
	}

	last, err := c.LastBlock()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if last.Hash != block2.Hash {
		t.Fatalf("last block should be %s, not %s", block2.Hash, last.Hash)
	}
}

func TestLastBlockEmptyChain(t *testing.T) {
	c := newTestChain(t, 3)

	if _, err := c.LastBlock(); err == nil {
		t.Fatal("LastBlock on an empty chain should fail")
	}
}

// Mirrors the canonical three-validator scenario: the third distinct vote, and
// only the third, flips the block to validated.
func TestValidateBlockQuorum(t *testing.T) {
	c := newTestChain(t, 3)

	for i := 0; i < 3; i++ {
		c.RegisterValidator(fmt.Sprintf("n%d", i+1), "")
	}

	block, err := c.CreateBlock("n1", ChangeSet{"x": 1})
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if block.Status != Pending {
		t.Fatalf("status should be pending, not %v", block.Status)
	}

	ok, err := c.ValidateBlock(block.Hash, "n1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if ok {
		t.Fatal("first vote should not reach quorum")
	}

	ok, err = c.ValidateBlock(block.Hash, "n2")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if ok {
		t.Fatal("second vote should not reach quorum")
	}

	ok, err = c.ValidateBlock(block.Hash, "n3")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !ok {
		t.Fatal("third vote should reach quorum")
	}

	if block.Status != Validated {
		t.Fatalf("status should be validated, not %v", block.Status)
	}

	if !reflect.DeepEqual(block.Validators, []string{"n1", "n2", "n3"}) {
		t.Fatalf("validators should be [n1 n2 n3], not %v", block.Validators)
	}
}

func TestValidateBlockIdempotentVotes(t *testing.T) {
	c := newTestChain(t, 3)

	block, _ := c.CreateBlock("n1", ChangeSet{"x": 1})

	c.ValidateBlock(block.Hash, "n1")
	c.ValidateBlock(block.Hash, "n1")

	if block.ValidatorCount() != 1 {
		t.Fatalf("duplicate votes should count once; validator count is %d", block.ValidatorCount())
	}

	if block.Status != Pending {
		t.Fatalf("status should still be pending, not %v", block.Status)
	}
}

func TestValidateUnknownBlock(t *testing.T) {
	c := newTestChain(t, 3)

	ok, err := c.ValidateBlock("deadbeef", "n1")
	if ok {
		t.Fatal("voting on an unknown block should not reach quorum")
	}
	if !IsVote(err, UnknownBlock) {
		t.Fatalf("err should be UnknownBlock, not %v", err)
	}
}

func TestValidateAfterQuorum(t *testing.T) {
	c := newTestChain(t, 1)

	block, _ := c.CreateBlock("n1", ChangeSet{"x": 1})

	ok, err := c.ValidateBlock(block.Hash, "n1")
	if !ok || err != nil {
		t.Fatalf("vote should reach quorum; ok=%v err=%v", ok, err)
	}

	// further votes are safe no-ops
	ok, err = c.ValidateBlock(block.Hash, "n2")
	if ok {
		t.Fatal("quorum transition should not fire twice")
	}
	if !IsNormalVoteErr(err) {
		t.Fatalf("err should be a normal AlreadyValidated, not %v", err)
	}

	if block.Status != Validated {
		t.Fatalf("status should stay validated, not %v", block.Status)
	}

	if block.ValidatorCount() != 1 {
		t.Fatalf("post-quorum votes should not grow the validator set; count is %d", block.ValidatorCount())
	}
}

func TestRejectBlock(t *testing.T) {
	c := newTestChain(t, 3)

	block, _ := c.CreateBlock("n1", ChangeSet{"x": 1})

	if err := c.RejectBlock(block.Hash); err != nil {
		t.Fatalf("err: %v", err)
	}

	if block.Status != Rejected {
		t.Fatalf("status should be rejected, not %v", block.Status)
	}

	// rejection is terminal
	ok, err := c.ValidateBlock(block.Hash, "n1")
	if ok {
		t.Fatal("voting on a rejected block should fail")
	}
	if !IsVote(err, BlockRejected) {
		t.Fatalf("err should be BlockRejected, not %v", err)
	}

	// rejecting again is a no-op
	if err := c.RejectBlock(block.Hash); err != nil {
		t.Fatalf("err: %v", err)
	}
}

// The source system let a rejection silently un-validate a block that had
// already reached quorum. Here that transition is forbidden.
func TestRejectValidatedBlock(t *testing.T) {
	c := newTestChain(t, 1)

	block, _ := c.CreateBlock("n1", ChangeSet{"x": 1})
	c.ValidateBlock(block.Hash, "n1")

	err := c.RejectBlock(block.Hash)
	if !IsVote(err, AlreadyValidated) {
		t.Fatalf("rejecting a validated block should fail with AlreadyValidated, not %v", err)
	}

	if block.Status != Validated {
		t.Fatalf("status should stay validated, not %v", block.Status)
	}
}

func TestRejectUnknownBlock(t *testing.T) {
	c := newTestChain(t, 3)

	err := c.RejectBlock("deadbeef")
	if !IsVote(err, UnknownBlock) {
		t.Fatalf("err should be UnknownBlock, not %v", err)
	}
}

func TestChangesByStatus(t *testing.T) {
	c := newTestChain(t, 1)

	b0, _ := c.CreateBlock("n1", ChangeSet{"seq": 0})
	b1, _ := c.CreateBlock("n1", ChangeSet{"seq": 1})
	c.CreateBlock("n1", ChangeSet{"seq": 2})

	c.ValidateBlock(b0.Hash, "n1")
	c.RejectBlock(b1.Hash)

	validated := c.ValidatedChanges()
	if len(validated) != 1 || validated[0]["seq"] != 0 {
		t.Fatalf("validated changes should be [{seq:0}], not %v", validated)
	}

	pending := c.PendingChanges()
	if len(pending) != 1 || pending[0]["seq"] != 2 {
		t.Fatalf("pending changes should be [{seq:2}], not %v", pending)
	}

	p, v, r := c.StatusCounts()
	if p != 1 || v != 1 || r != 1 {
		t.Fatalf("status counts should be 1/1/1, not %d/%d/%d", p, v, r)
	}
}

func TestVerifyChain(t *testing.T) {
	c := newTestChain(t, 3)

	for i := 0; i < 5; i++ {
		if _, err := c.CreateBlock("n1", ChangeSet{"seq": i}); err != nil {
			t.Fatalf("err: %v", err)
		}
	}

	if err := c.VerifyChain(); err != nil {
		t.Fatalf("chain should verify: %v", err)
	}

	// tamper with a middle block
	block, _ := c.GetBlockByIndex(2)
	block.Changes["seq"] = 99

	if err := c.VerifyChain(); err == nil {
		t.Fatal("tampered chain should not verify")
	}
}

func TestCommitCallback(t *testing.T) {
	commits := []Block{}

	store := NewInmemStore(nil)
	c := NewChain(store, 2, func(block Block) error {
		commits = append(commits, block)
		return nil
	}, common.NewTestEntry(t))

	block, _ := c.CreateBlock("n1", ChangeSet{"x": 1})

	c.ValidateBlock(block.Hash, "n1")

	if len(commits) != 0 {
		t.Fatal("commit callback should not fire before quorum")
	}

	c.ValidateBlock(block.Hash, "n2")

	if len(commits) != 1 {
		t.Fatalf("commit callback should fire exactly once, fired %d times", len(commits))
	}

	if commits[0].Hash != block.Hash {
		t.Fatalf("committed block should be %s, not %s", block.Hash, commits[0].Hash)
	}

	// a third vote must not re-fire the callback
	c.ValidateBlock(block.Hash, "n3")

	if len(commits) != 1 {
		t.Fatalf("commit callback should still have fired once, fired %d times", len(commits))
	}
}

func TestConcurrentValidation(t *testing.T) {
	c := newTestChain(t, 3)

	block, _ := c.CreateBlock("n1", ChangeSet{"x": 1})

	quorums := 0
	var ql sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ok, _ := c.ValidateBlock(block.Hash, fmt.Sprintf("n%d", id))
			if ok {
				ql.Lock()
				quorums++
				ql.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if quorums != 1 {
		t.Fatalf("exactly one vote should observe the quorum transition, got %d", quorums)
	}

	if block.Status != Validated {
		t.Fatalf("status should be validated, not %v", block.Status)
	}
}

func TestBlockSnapshotIsolation(t *testing.T) {
	c := newTestChain(t, 2)

	block, _ := c.CreateBlock("n1", ChangeSet{"x": 1})

	snapshot := c.Blocks()

	c.ValidateBlock(block.Hash, "n1")
	c.ValidateBlock(block.Hash, "n2")

	// votes arriving after the snapshot was taken must not show through
	if snapshot[0].ValidatorCount() != 0 {
		t.Fatalf("snapshot should not see later votes; validator count is %d",
			snapshot[0].ValidatorCount())
	}
	if snapshot[0].Status != Pending {
		t.Fatalf("snapshot status should be pending, not %v", snapshot[0].Status)
	}

	// and the other direction: a mutated snapshot leaves the ledger alone
	got, err := c.GetBlock(block.Hash)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	got.AddValidator("intruder")

	fresh, _ := c.GetBlock(block.Hash)
	if fresh.HasValidator("intruder") {
		t.Fatal("mutating a snapshot should not touch the ledger")
	}
}

// Encoding a Blocks snapshot while votes are arriving must be safe; the
// service does exactly this on every /blocks request.
func TestConcurrentSnapshotEncoding(t *testing.T) {
	c := newTestChain(t, 1000)

	block, _ := c.CreateBlock("n1", ChangeSet{"x": 1})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c.ValidateBlock(block.Hash, fmt.Sprintf("n%d", i))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if _, err := json.Marshal(c.Blocks()); err != nil {
				t.Errorf("err: %v", err)
				return
			}
		}
	}()

	wg.Wait()
}

func TestConcurrentCreation(t *testing.T) {
	c := newTestChain(t, 3)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := c.CreateBlock(fmt.Sprintf("n%d", id), ChangeSet{"seq": id}); err != nil {
				t.Errorf("err: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if err := c.VerifyChain(); err != nil {
		t.Fatalf("chain should verify after concurrent creation: %v", err)
	}

	if got := len(c.Blocks()); got != 20 {
		t.Fatalf("ledger should contain 20 blocks, not %d", got)
	}
}

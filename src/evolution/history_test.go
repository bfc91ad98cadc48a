package evolution

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/lamarck/src/common"
)

func newTestRecord(seq int) *RuleRecord {
	return &RuleRecord{
		ID:   uuid.New().String(),
		Type: Evolutionary,
		Parameters: map[string]float64{
			ParamThreshold:     0.5 + 0.1*float64(seq),
			ParamTimeout:       30,
			ParamMinValidators: 3,
		},
		Timestamp:    time.Now().UTC(),
		Contributors: []string{"node0", "node1", "node2"},
		FitnessMean:  0.8,
	}
}

func TestHistoryLogRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "lamarck_history")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	log, err := NewHistoryLog(filepath.Join(dir, "evolution"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	records := []*RuleRecord{}
	for i := 0; i < 3; i++ {
		record := newTestRecord(i)
		if err := log.Append(record); err != nil {
			t.Fatalf("err: %v", err)
		}
		records = append(records, record)
	}

	// reopen and read back in append order
	log2, err := NewHistoryLog(filepath.Join(dir, "evolution"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	loaded, err := log2.Records()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if len(loaded) != 3 {
		t.Fatalf("should load 3 records, not %d", len(loaded))
	}

	for i, record := range loaded {
		if record.ID != records[i].ID {
			t.Fatalf("record %d id should be %s, not %s", i, records[i].ID, record.ID)
		}
	}

	// the sequence resumes, so a new append sorts after the old files
	extra := newTestRecord(3)
	if err := log2.Append(extra); err != nil {
		t.Fatalf("err: %v", err)
	}

	loaded, err = log2.Records()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if len(loaded) != 4 || loaded[3].ID != extra.ID {
		t.Fatalf("last record should be %s", extra.ID)
	}
}

func TestEngineBootstrapFromHistory(t *testing.T) {
	dir, err := ioutil.TempDir("", "lamarck_history")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	log, err := NewHistoryLog(filepath.Join(dir, "evolution"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	// first engine evolves once
	engine, err := NewEngine(nil, log, nil, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := engine.ProposeRule(newTestProposal(fmt.Sprintf("node%d", i), 0.8)); err != nil {
			t.Fatalf("err: %v", err)
		}
	}

	rule := engine.CurrentRule()
	if rule == nil {
		t.Fatal("an active rule should be installed")
	}

	// second engine bootstraps from the same directory
	engine2, err := NewEngine(nil, log, nil, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	rule2 := engine2.CurrentRule()
	if rule2 == nil {
		t.Fatal("bootstrapped engine should have an active rule")
	}

	if rule2.Parameters[ParamThreshold] != rule.Parameters[ParamThreshold] {
		t.Fatalf("bootstrapped threshold should be %v, not %v",
			rule.Parameters[ParamThreshold], rule2.Parameters[ParamThreshold])
	}

	if len(engine2.History()) != 1 {
		t.Fatalf("bootstrapped history should contain 1 record, not %d", len(engine2.History()))
	}
}

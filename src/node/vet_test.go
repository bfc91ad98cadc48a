package node

import (
	"testing"

	"github.com/mosaicnetworks/lamarck/src/chain"
)

func testChanges() chain.ChangeSet {
	return chain.ChangeSet{
		"node_id": "node0",
		"model_updates": map[string]interface{}{
			"weight_updates": map[string]interface{}{
				"layer_0": 0.4,
				"layer_1": -0.2,
			},
			"performance_metrics": map[string]interface{}{
				"loss":          0.5,
				"learning_rate": 0.01,
			},
		},
	}
}

func TestCheckChanges(t *testing.T) {
	if err := CheckChanges(testChanges(), 1.0, 0.1); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestCheckChangesOversizedWeight(t *testing.T) {
	changes := testChanges()
	updates := changes["model_updates"].(map[string]interface{})
	updates["weight_updates"].(map[string]interface{})["layer_0"] = 2.5

	err := CheckChanges(changes, 1.0, 0.1)
	if err == nil {
		t.Fatal("oversized weight update should be refused")
	}
	if !IsChangesErr(err) {
		t.Fatalf("refusal should be a ChangesErr, not %T", err)
	}
}

func TestCheckChangesRunawayLearningRate(t *testing.T) {
	changes := testChanges()
	updates := changes["model_updates"].(map[string]interface{})
	updates["performance_metrics"].(map[string]interface{})["learning_rate"] = 0.5

	if err := CheckChanges(changes, 1.0, 0.1); err == nil {
		t.Fatal("runaway learning rate should be refused")
	}
}

func TestCheckChangesNoModelUpdates(t *testing.T) {
	changes := chain.ChangeSet{"note": "no model updates here"}

	if err := CheckChanges(changes, 1.0, 0.1); err != nil {
		t.Fatalf("change-sets without model updates should pass: %v", err)
	}
}

func TestCheckChangesIntegerWeight(t *testing.T) {
	changes := testChanges()
	updates := changes["model_updates"].(map[string]interface{})
	updates["weight_updates"].(map[string]interface{})["layer_0"] = 2

	if err := CheckChanges(changes, 1.0, 0.1); err == nil {
		t.Fatal("integer weight updates should be vetted too")
	}
}

package dummy

import (
	"fmt"
	"math/rand"

	"github.com/mosaicnetworks/lamarck/src/chain"
)

// Learner generates synthetic training change-sets, shaped like the updates a
// real training loop would report: per-layer weight deltas and a set of
// performance metrics.
type Learner struct {
	nodeID string
	round  int
	rng    *rand.Rand
}

// NewLearner instantiates a Learner with a seeded random source, so test runs
// are reproducible.
func NewLearner(nodeID string, seed int64) *Learner {
	return &Learner{
		nodeID: nodeID,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Next returns the change-set for the next training round. All values stay
// within the node's vetting limits.
func (l *Learner) Next() chain.ChangeSet {
	l.round++

	weightUpdates := map[string]interface{}{}
	for i := 0; i < 3; i++ {
		// deltas in [-0.5, 0.5]
		weightUpdates[fmt.Sprintf("layer_%d", i)] = l.rng.Float64() - 0.5
	}

	return chain.ChangeSet{
		"node_id": l.nodeID,
		"round":   l.round,
		"model_updates": map[string]interface{}{
			"weight_updates": weightUpdates,
			"performance_metrics": map[string]interface{}{
				"loss":          2.0 / float64(l.round),
				"accuracy":      1.0 - 1.0/float64(l.round+1),
				"learning_rate": 0.01,
			},
		},
	}
}

// Oversized returns a change-set whose weight updates exceed any reasonable
// limit, for exercising producer-side vetting.
func (l *Learner) Oversized() chain.ChangeSet {
	changes := l.Next()

	updates := changes["model_updates"].(map[string]interface{})
	updates["weight_updates"] = map[string]interface{}{
		"layer_0": 1000.0,
	}

	return changes
}

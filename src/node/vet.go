package node

import (
	"fmt"

	"github.com/mosaicnetworks/lamarck/src/chain"
)

// ChangesErr qualifies a change-set refused by the vet.
type ChangesErr struct {
	Msg string
}

// Error implements the error interface.
func (e ChangesErr) Error() string {
	return e.Msg
}

// IsChangesErr says whether an error is a vet refusal, as opposed to a chain
// or store failure.
func IsChangesErr(err error) bool {
	_, ok := err.(ChangesErr)
	return ok
}

// CheckChanges vets a change-set before it is recorded in a block. Weight
// updates larger than maxWeightDelta, or a learning rate above
// maxLearningRate, are signs of a poisoning attempt or a diverging training
// run, and cause the whole change-set to be refused. Change-sets that carry no
// model updates pass.
func CheckChanges(changes chain.ChangeSet, maxWeightDelta float64, maxLearningRate float64) error {
	modelUpdates, ok := changes["model_updates"].(map[string]interface{})
	if !ok {
		return nil
	}

	if weightUpdates, ok := modelUpdates["weight_updates"].(map[string]interface{}); ok {
		for layer, value := range weightUpdates {
			delta, ok := toFloat(value)
			if !ok {
				return ChangesErr{Msg: fmt.Sprintf("weight update %s is not numeric", layer)}
			}
			if delta > maxWeightDelta {
				return ChangesErr{Msg: fmt.Sprintf("weight update %s is %v, above the %v limit",
					layer, delta, maxWeightDelta)}
			}
		}
	}

	if metrics, ok := modelUpdates["performance_metrics"].(map[string]interface{}); ok {
		if value, ok := metrics["learning_rate"]; ok {
			rate, ok := toFloat(value)
			if !ok {
				return ChangesErr{Msg: "learning rate is not numeric"}
			}
			if rate > maxLearningRate {
				return ChangesErr{Msg: fmt.Sprintf("learning rate is %v, above the %v limit",
					rate, maxLearningRate)}
			}
		}
	}

	return nil
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

package proxy

import (
	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/evolution"
	"github.com/mosaicnetworks/lamarck/src/node/state"
)

// ProxyHandler encapsulates callbacks to be called by the InmemProxy. This is
// the true contact surface between Lamarck and the Application. The
// application must implement these handlers to process validated blocks, rule
// changes, and node state changes.
type ProxyHandler interface {
	// CommitHandler is called when Lamarck validates a block. The returned
	// state hash is recorded in the node's stats.
	CommitHandler(block chain.Block) (response CommitResponse, err error)

	// RuleChangeHandler is called when the evolution engine installs a new
	// consensus rule.
	RuleChangeHandler(record evolution.RuleRecord) error

	// StateChangeHandler is called to notify that the node entered a certain
	// state.
	StateChangeHandler(state.State) error
}

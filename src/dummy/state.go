package dummy

import (
	"sync"

	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/crypto"
	"github.com/mosaicnetworks/lamarck/src/evolution"
	"github.com/mosaicnetworks/lamarck/src/node/state"
	"github.com/mosaicnetworks/lamarck/src/proxy"
	"github.com/sirupsen/logrus"
)

// State implements the ProxyHandler interface. It folds every validated block
// into a running state hash and keeps the blocks, rule changes, and node
// states it has seen, so tests can inspect what the node reported back.
type State struct {
	l          sync.Mutex
	stateHash  []byte
	blocks     []chain.Block
	rules      []evolution.RuleRecord
	nodeStates []state.State
	logger     *logrus.Logger
}

// NewState instantiates a State.
func NewState(logger *logrus.Logger) *State {
	return &State{
		stateHash: []byte{},
		logger:    logger,
	}
}

// CommitHandler folds the block's change-set hash into the state hash.
func (a *State) CommitHandler(block chain.Block) (proxy.CommitResponse, error) {
	a.logger.WithField("block", block.Index).Debug("CommitHandler")

	a.l.Lock()
	defer a.l.Unlock()

	changesHash, err := block.Changes.Hash()
	if err != nil {
		return proxy.CommitResponse{}, err
	}

	a.stateHash = crypto.SimpleHashFromTwoHashes(a.stateHash, changesHash)
	a.blocks = append(a.blocks, block)

	return proxy.CommitResponse{StateHash: a.stateHash}, nil
}

// RuleChangeHandler records the new rule.
func (a *State) RuleChangeHandler(record evolution.RuleRecord) error {
	a.logger.WithField("rule_type", record.Type.String()).Debug("RuleChangeHandler")

	a.l.Lock()
	defer a.l.Unlock()

	a.rules = append(a.rules, record)

	return nil
}

// StateChangeHandler records the node state.
func (a *State) StateChangeHandler(s state.State) error {
	a.logger.WithField("state", s.String()).Debug("StateChangeHandler")

	a.l.Lock()
	defer a.l.Unlock()

	a.nodeStates = append(a.nodeStates, s)

	return nil
}

// GetCommittedBlocks returns the blocks committed so far.
func (a *State) GetCommittedBlocks() []chain.Block {
	a.l.Lock()
	defer a.l.Unlock()

	res := make([]chain.Block, len(a.blocks))
	copy(res, a.blocks)
	return res
}

// GetRuleChanges returns the rule records received so far.
func (a *State) GetRuleChanges() []evolution.RuleRecord {
	a.l.Lock()
	defer a.l.Unlock()

	res := make([]evolution.RuleRecord, len(a.rules))
	copy(res, a.rules)
	return res
}

// GetNodeStates returns the node states received so far.
func (a *State) GetNodeStates() []state.State {
	a.l.Lock()
	defer a.l.Unlock()

	res := make([]state.State, len(a.nodeStates))
	copy(res, a.nodeStates)
	return res
}

// StateHash returns the current state hash.
func (a *State) StateHash() []byte {
	a.l.Lock()
	defer a.l.Unlock()

	res := make([]byte, len(a.stateHash))
	copy(res, a.stateHash)
	return res
}

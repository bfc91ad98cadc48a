package dummy

import (
	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/evolution"
	"github.com/mosaicnetworks/lamarck/src/proxy/inmem"
	"github.com/sirupsen/logrus"
)

// InmemDummyClient is an in-memory implementation of the dummy app. It
// actually implements the AppProxy interface, and can be passed in the Lamarck
// constructor directly
type InmemDummyClient struct {
	*inmem.InmemProxy
	state  *State
	logger *logrus.Logger
}

// NewInmemDummyClient instantiates an InmemDummyClient
func NewInmemDummyClient(logger *logrus.Logger) *InmemDummyClient {
	state := NewState(logger)

	proxy := inmem.NewInmemProxy(state, logger)

	client := &InmemDummyClient{
		InmemProxy: proxy,
		state:      state,
		logger:     logger,
	}

	return client
}

// SubmitChanges sends a change-set to the Lamarck node via the InmemProxy
func (c *InmemDummyClient) SubmitChanges(changes chain.ChangeSet) {
	c.InmemProxy.SubmitChanges(changes)
}

// SubmitProposal sends a rule proposal to the Lamarck node via the InmemProxy
func (c *InmemDummyClient) SubmitProposal(proposal evolution.Proposal) {
	c.InmemProxy.SubmitProposal(proposal)
}

// GetCommittedBlocks returns the state's list of committed blocks
func (c *InmemDummyClient) GetCommittedBlocks() []chain.Block {
	return c.state.GetCommittedBlocks()
}

// GetRuleChanges returns the state's list of rule changes
func (c *InmemDummyClient) GetRuleChanges() []evolution.RuleRecord {
	return c.state.GetRuleChanges()
}

// StateHash returns the state's current hash
func (c *InmemDummyClient) StateHash() []byte {
	return c.state.StateHash()
}

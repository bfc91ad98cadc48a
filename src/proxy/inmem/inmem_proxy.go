package inmem

import (
	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/evolution"
	"github.com/mosaicnetworks/lamarck/src/node/state"
	"github.com/mosaicnetworks/lamarck/src/proxy"
	"github.com/sirupsen/logrus"
)

// InmemProxy implements the AppProxy interface natively
type InmemProxy struct {
	handler          proxy.ProxyHandler
	submitCh         chan chain.ChangeSet
	submitProposalCh chan evolution.Proposal
	logger           *logrus.Logger
}

// NewInmemProxy instantiates an InmemProxy from a set of handlers.
// If no logger, a new one is created
func NewInmemProxy(handler proxy.ProxyHandler,
	logger *logrus.Logger) *InmemProxy {

	if logger == nil {
		logger = logrus.New()

		logger.Level = logrus.DebugLevel
	}

	return &InmemProxy{
		handler:          handler,
		submitCh:         make(chan chain.ChangeSet),
		submitProposalCh: make(chan evolution.Proposal),
		logger:           logger,
	}
}

/*******************************************************************************
* Submit                                                                       *
*******************************************************************************/

// SubmitChanges is called by the App to submit a change-set for recording in
// the ledger.
func (p *InmemProxy) SubmitChanges(changes chain.ChangeSet) {
	// copy the map, or the caller can mutate the change-set after it has been
	// hashed into a block
	c := make(chain.ChangeSet, len(changes))
	for k, v := range changes {
		c[k] = v
	}

	p.submitCh <- c
}

// SubmitProposal is called by the App to submit a consensus-rule proposal to
// the evolution engine.
func (p *InmemProxy) SubmitProposal(proposal evolution.Proposal) {
	p.submitProposalCh <- proposal
}

/*******************************************************************************
* Implement AppProxy Interface                                                 *
*******************************************************************************/

// SubmitCh returns the channel of change-sets
func (p *InmemProxy) SubmitCh() chan chain.ChangeSet {
	return p.submitCh
}

// SubmitProposalCh returns the channel of rule proposals
func (p *InmemProxy) SubmitProposalCh() chan evolution.Proposal {
	return p.submitProposalCh
}

// CommitBlock calls the commitHandler
func (p *InmemProxy) CommitBlock(block chain.Block) (proxy.CommitResponse, error) {
	commitResponse, err := p.handler.CommitHandler(block)

	p.logger.WithFields(logrus.Fields{
		"index":    block.Index,
		"hash":     block.Hash,
		"response": commitResponse,
		"err":      err,
	}).Debug("InmemProxy.CommitBlock")

	return commitResponse, err
}

// OnRuleChange calls the ruleChangeHandler
func (p *InmemProxy) OnRuleChange(record evolution.RuleRecord) error {
	err := p.handler.RuleChangeHandler(record)

	p.logger.WithFields(logrus.Fields{
		"rule_type": record.Type.String(),
		"err":       err,
	}).Debug("InmemProxy.OnRuleChange")

	return err
}

// OnStateChanged calls the stateChangeHandler
func (p *InmemProxy) OnStateChanged(s state.State) error {
	err := p.handler.StateChangeHandler(s)

	p.logger.WithFields(logrus.Fields{
		"state": s.String(),
		"err":   err,
	}).Debug("InmemProxy.OnStateChanged")

	return err
}

package proxy

import (
	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/evolution"
	"github.com/mosaicnetworks/lamarck/src/node/state"
)

// AppProxy is the interface through which Lamarck communicates with the
// application.
type AppProxy interface {
	// SubmitCh returns the channel of change-sets that the application wants
	// recorded in the ledger.
	SubmitCh() chan chain.ChangeSet

	// SubmitProposalCh returns the channel of consensus-rule proposals that
	// the application wants submitted to the evolution engine.
	SubmitProposalCh() chan evolution.Proposal

	// CommitBlock is called when a block reaches quorum and becomes validated.
	CommitBlock(block chain.Block) (CommitResponse, error)

	// OnRuleChange is called when the evolution engine installs a new
	// consensus rule.
	OnRuleChange(record evolution.RuleRecord) error

	// OnStateChanged is called when the node changes state.
	OnStateChanged(s state.State) error
}

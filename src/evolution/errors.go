package evolution

import "fmt"

// ProposalErrType is a reason code carried by ProposalErr.
type ProposalErrType uint32

const (
	// MissingParameters means a required parameter key is absent.
	MissingParameters ProposalErrType = iota
	// ThinJustification means the justification fails the length or
	// word-count gate.
	ThinJustification
	// LowReputation means the proposer's known reputation is below the floor.
	LowReputation
	// InternalFault means the proposal was well formed but the engine could
	// not process it.
	InternalFault
)

// ProposalErr says why a proposal was not admitted into the pool. A failed
// gate leaves the engine untouched: the proposal is dropped and the
// proposer's reputation is not updated.
type ProposalErr struct {
	nodeID  string
	errType ProposalErrType
	detail  string
}

// NewProposalErr creates a new ProposalErr.
func NewProposalErr(nodeID string, errType ProposalErrType, detail string) ProposalErr {
	return ProposalErr{
		nodeID:  nodeID,
		errType: errType,
		detail:  detail,
	}
}

// Error implements the Error interface.
func (e ProposalErr) Error() string {
	m := ""
	switch e.errType {
	case MissingParameters:
		m = "Missing Parameters"
	case ThinJustification:
		m = "Thin Justification"
	case LowReputation:
		m = "Low Reputation"
	case InternalFault:
		m = "Internal Fault"
	}

	if e.detail != "" {
		return fmt.Sprintf("%s, %s, %s", e.nodeID, m, e.detail)
	}
	return fmt.Sprintf("%s, %s", e.nodeID, m)
}

// IsProposal checks that an error is of type ProposalErr and that its code
// matches the provided ProposalErr code.
func IsProposal(err error, t ProposalErrType) bool {
	propErr, ok := err.(ProposalErr)
	return ok && propErr.errType == t
}

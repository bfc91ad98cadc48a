package chain

import "fmt"

// VoteErrType is a reason code carried by VoteErr.
type VoteErrType uint32

const (
	// UnknownBlock means the hash does not refer to any block in the ledger.
	UnknownBlock VoteErrType = iota
	// AlreadyValidated means the block reached quorum before this call.
	AlreadyValidated
	// BlockRejected means the block was rejected, which is terminal.
	BlockRejected
)

// VoteErr is used to signal why a vote or a rejection did not change the
// ledger, and to differentiate errors that are normal when the chain is used
// correctly by multiple go-routines from errors that should not be occurring
// even in a concurrent context.
type VoteErr struct {
	blockHash string
	errType   VoteErrType
}

// NewVoteErr creates a new VoteErr.
func NewVoteErr(blockHash string, errType VoteErrType) VoteErr {
	return VoteErr{
		blockHash: blockHash,
		errType:   errType,
	}
}

// Error implements the Error interface.
func (e VoteErr) Error() string {
	m := ""
	switch e.errType {
	case UnknownBlock:
		m = "Unknown Block"
	case AlreadyValidated:
		m = "Already Validated"
	case BlockRejected:
		m = "Rejected"
	}

	return fmt.Sprintf("%s, %s", e.blockHash, m)
}

// IsVote checks that an error is of type VoteErr and that its code matches the
// provided VoteErr code.
func IsVote(err error, t VoteErrType) bool {
	voteErr, ok := err.(VoteErr)
	return ok && voteErr.errType == t
}

// IsNormalVoteErr checks that an error is of type VoteErr with the
// AlreadyValidated code. Because votes for the same block arrive from several
// routines, some of them will land after the quorum transition has already
// happened. Such votes are safe no-ops, not real errors that we want to
// report in the logs.
func IsNormalVoteErr(err error) bool {
	voteErr, ok := err.(VoteErr)
	return ok && voteErr.errType == AlreadyValidated
}

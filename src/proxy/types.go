package proxy

import "github.com/mosaicnetworks/lamarck/src/chain"

// CommitResponse is the application's answer to a committed block.
type CommitResponse struct {
	StateHash []byte
}

// CommitCallback is the function signature of block commits.
type CommitCallback func(block chain.Block) (CommitResponse, error)

// DummyCommitCallback is used for testing
func DummyCommitCallback(block chain.Block) (CommitResponse, error) {
	return CommitResponse{StateHash: []byte{}}, nil
}

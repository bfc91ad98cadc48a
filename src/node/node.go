package node

import (
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/evolution"
	"github.com/mosaicnetworks/lamarck/src/node/state"
	"github.com/mosaicnetworks/lamarck/src/proxy"
	"github.com/sirupsen/logrus"
)

// Node defines a lamarck node
type Node struct {
	// The node is a state machine: Running, Suspended, or Shutdown.
	state.Manager

	conf   *Config
	logger *logrus.Entry

	id      string
	moniker string

	chain  *chain.Chain
	engine *evolution.Engine

	proxy            proxy.AppProxy
	submitCh         chan chain.ChangeSet
	submitProposalCh chan evolution.Proposal

	sigintCh   chan os.Signal
	shutdownCh chan struct{}
	resumeCh   chan struct{}

	controlTimer *ControlTimer

	start time.Time

	// statsLock guards the counters below, which are touched both by the
	// sweep loop and by the submission routines.
	statsLock      sync.Mutex
	idleSweeps     int
	sweeps         int
	blocksProduced int
	votesCast      int
	refusedChanges int
}

// NewNode is a factory method that returns a Node instance
func NewNode(conf *Config,
	id string,
	moniker string,
	c *chain.Chain,
	engine *evolution.Engine,
	appProxy proxy.AppProxy,
) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := Node{
		conf:             conf,
		logger:           conf.Logger.WithField("this_id", id),
		id:               id,
		moniker:          moniker,
		chain:            c,
		engine:           engine,
		proxy:            appProxy,
		submitCh:         appProxy.SubmitCh(),
		submitProposalCh: appProxy.SubmitProposalCh(),
		sigintCh:         sigintCh,
		shutdownCh:       make(chan struct{}),
		resumeCh:         make(chan struct{}),
		controlTimer:     NewTimedControlTimer(),
	}

	return &node
}

// Init intialises the node: it registers the node in the validator set and
// enters the Running state.
func (n *Node) Init() error {
	if err := n.chain.RegisterValidator(n.id, n.moniker); err != nil {
		return err
	}

	n.start = time.Now()

	n.setState(state.Running)

	return nil
}

// RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")

	go n.Run()
}

// Run invokes the main loop of the node
func (n *Node) Run() {
	//The ControlTimer drives the sweep routine that revisits pending blocks
	//while the node is in the Running state.
	go n.controlTimer.Run(n.conf.SweepInterval)

	//Execute some background work regardless of the state of the node.
	go n.doBackgroundWork()

	//Execute Node State Machine
	for {
		//Run different routines depending on node state
		s := n.GetState()

		n.logger.WithField("state", s.String()).Debug("Run loop")

		switch s {
		case state.Running:
			n.running()
		case state.Suspended:
			n.suspended()
		case state.Shutdown:
			return
		}
	}
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case changes := <-n.submitCh:
			n.logger.Debug("Adding Changes")
			n.addChanges(changes)
		case proposal := <-n.submitProposalCh:
			n.logger.Debug("Adding Proposal")
			n.addProposal(proposal)
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - SHUTDOWN")
			n.Shutdown()
			os.Exit(0)
		}
	}
}

// running is the Running state loop: every sweep tick, the node votes on the
// pending blocks it has not validated yet.
func (n *Node) running() {
	n.logger.Debug("RUNNING")

	for {
		select {
		case <-n.controlTimer.tickCh:
			n.sweep()
			if n.GetState() != state.Running {
				return
			}
		case <-n.shutdownCh:
			return
		}
	}
}

// suspended drains the sweep timer without acting on it, so the timer routine
// is not blocked while the node sits out.
func (n *Node) suspended() {
	n.logger.Debug("SUSPENDED")

	for {
		select {
		case <-n.controlTimer.tickCh:
		case <-n.resumeCh:
			return
		case <-n.shutdownCh:
			return
		}
	}
}

// sweep votes on every pending block this node has not validated yet, and
// counts idle passes. After SuspendLimit consecutive sweeps with nothing to
// do, the node suspends itself.
func (n *Node) sweep() {
	voted := 0

	for _, hash := range n.chain.PendingBlockHashes() {
		if n.chain.HasVoted(hash, n.id) {
			continue
		}

		validated, err := n.ValidateBlock(hash)
		if err != nil {
			if !chain.IsNormalVoteErr(err) && !IsChangesErr(err) {
				n.logger.WithField("block", hash).WithError(err).Error("Validating block")
			}
			continue
		}

		voted++

		if validated {
			n.logger.WithField("block", hash).Debug("Block reached quorum")
		}
	}

	n.statsLock.Lock()
	n.sweeps++
	n.votesCast += voted
	if voted == 0 {
		n.idleSweeps++
	} else {
		n.idleSweeps = 0
	}
	idle := n.idleSweeps
	n.statsLock.Unlock()

	if voted > 0 {
		n.logStats()
	}

	if n.conf.SuspendLimit > 0 && idle >= n.conf.SuspendLimit {
		n.logger.WithField("idle_sweeps", idle).Debug("SuspendLimit reached")
		n.Suspend()
	}
}

// addChanges vets a submitted change-set and records it in a new block, which
// the node immediately votes for.
func (n *Node) addChanges(changes chain.ChangeSet) {
	if n.GetState() != state.Running {
		n.logger.WithField("state", n.GetState().String()).Debug("Dropping changes")
		return
	}

	if err := CheckChanges(changes, n.conf.MaxWeightDelta, n.conf.MaxLearningRate); err != nil {
		n.logger.WithError(err).Error("Refusing changes")

		n.statsLock.Lock()
		n.refusedChanges++
		n.statsLock.Unlock()

		return
	}

	block, err := n.chain.CreateBlock(n.id, changes)
	if err != nil {
		n.logger.WithError(err).Error("Creating block")
		return
	}

	if _, err := n.chain.ValidateBlock(block.Hash, n.id); err != nil {
		n.logger.WithError(err).Error("Self-validating block")
	}

	n.statsLock.Lock()
	n.blocksProduced++
	n.votesCast++
	n.idleSweeps = 0
	n.statsLock.Unlock()

	n.logger.WithFields(logrus.Fields{
		"index": block.Index,
		"hash":  block.Hash,
	}).Debug("Produced block")
}

// addProposal forwards a rule proposal to the evolution engine. A refused
// proposal is not an error at the node level.
func (n *Node) addProposal(proposal evolution.Proposal) {
	if n.GetState() != state.Running {
		n.logger.WithField("state", n.GetState().String()).Debug("Dropping proposal")
		return
	}

	if err := n.engine.ProposeRule(&proposal); err != nil {
		n.logger.WithError(err).Debug("Proposal refused")
		return
	}

	n.statsLock.Lock()
	n.idleSweeps = 0
	n.statsLock.Unlock()
}

// ValidateBlock casts this node's own vote on a block. The block's change-set
// runs through the same vet as the submit path; a block carrying changes this
// node would refuse to produce does not get its vote.
func (n *Node) ValidateBlock(blockHash string) (bool, error) {
	block, err := n.chain.GetBlock(blockHash)
	if err != nil {
		return false, err
	}

	if err := CheckChanges(block.Changes, n.conf.MaxWeightDelta, n.conf.MaxLearningRate); err != nil {
		n.logger.WithField("block", blockHash).WithError(err).Debug("Refusing to vote")
		return false, err
	}

	return n.chain.ValidateBlock(blockHash, n.id)
}

// ReceiveValidation registers another validator's vote on a block. It returns
// true when the vote brings the block to quorum.
func (n *Node) ReceiveValidation(blockHash string, validatorID string) (bool, error) {
	return n.chain.ValidateBlock(blockHash, validatorID)
}

// ReceiveRejection marks a pending block rejected.
func (n *Node) ReceiveRejection(blockHash string) error {
	return n.chain.RejectBlock(blockHash)
}

// Suspend puts the node in the Suspended state, where it stops producing and
// validating blocks but keeps serving reads.
func (n *Node) Suspend() {
	if n.GetState() == state.Running {
		n.logger.Debug("Suspend")
		n.setState(state.Suspended)
	}
}

// Resume returns a suspended node to the Running state.
func (n *Node) Resume() {
	if n.GetState() == state.Suspended {
		n.logger.Debug("Resume")

		n.statsLock.Lock()
		n.idleSweeps = 0
		n.statsLock.Unlock()

		n.setState(state.Running)
		n.resumeCh <- struct{}{}
	}
}

// Shutdown shuts down the node
func (n *Node) Shutdown() {
	if n.GetState() != state.Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(state.Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.WaitRoutines()

		//For some reason this needs to be called after closing the shutdownCh
		//Not entirely sure why...
		n.controlTimer.Shutdown()
	}
}

// setState updates the state machine and notifies the application.
func (n *Node) setState(s state.State) {
	n.SetState(s)

	if err := n.proxy.OnStateChanged(s); err != nil {
		n.logger.WithError(err).Error("Notifying state change")
	}
}

// ID returns the node's validator ID
func (n *Node) ID() string {
	return n.id
}

// Moniker returns the node's friendly name
func (n *Node) Moniker() string {
	return n.moniker
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	n.statsLock.Lock()
	sweeps := n.sweeps
	idleSweeps := n.idleSweeps
	blocksProduced := n.blocksProduced
	votesCast := n.votesCast
	refusedChanges := n.refusedChanges
	n.statsLock.Unlock()

	pending, validated, rejected := n.chain.StatusCounts()

	timeElapsed := time.Since(n.start)
	validatedPerSecond := float64(validated) / timeElapsed.Seconds()

	s := map[string]string{
		"last_block_index":     strconv.Itoa(n.chain.LastBlockIndex()),
		"pending_blocks":       strconv.Itoa(pending),
		"validated_blocks":     strconv.Itoa(validated),
		"rejected_blocks":      strconv.Itoa(rejected),
		"num_validators":       strconv.Itoa(len(n.chain.KnownValidators())),
		"min_validators":       strconv.Itoa(n.chain.MinValidators()),
		"proposal_pool":        strconv.Itoa(n.engine.PoolSize()),
		"rule_changes":         strconv.Itoa(len(n.engine.History())),
		"blocks_produced":      strconv.Itoa(blocksProduced),
		"votes_cast":           strconv.Itoa(votesCast),
		"refused_changes":      strconv.Itoa(refusedChanges),
		"sweeps":               strconv.Itoa(sweeps),
		"idle_sweeps":          strconv.Itoa(idleSweeps),
		"validated_per_second": strconv.FormatFloat(validatedPerSecond, 'f', 2, 64),
		"id":                   n.id,
		"state":                n.GetState().String(),
		"moniker":              n.moniker,
	}
	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	n.logger.WithFields(logrus.Fields{
		"last_block_index": stats["last_block_index"],
		"pending_blocks":   stats["pending_blocks"],
		"validated_blocks": stats["validated_blocks"],
		"rejected_blocks":  stats["rejected_blocks"],
		"num_validators":   stats["num_validators"],
		"proposal_pool":    stats["proposal_pool"],
		"rule_changes":     stats["rule_changes"],
		"blocks_produced":  stats["blocks_produced"],
		"votes_cast":       stats["votes_cast"],
		"state":            stats["state"],
		"moniker":          stats["moniker"],
	}).Debug("Stats")
}

package evolution

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// Default engine settings.
const (
	// DefaultPoolThreshold is the pool size that triggers evolution.
	DefaultPoolThreshold = 5

	// DefaultSelectCount is the number of top-fitness proposals blended into
	// a new rule.
	DefaultSelectCount = 3

	// DefaultSmoothing is the weight of prior reputation in the exponential
	// smoothing update; the remainder weighs the new fitness score.
	DefaultSmoothing = 0.7

	// DefaultInitialReputation is the score assumed for first-time proposers.
	DefaultInitialReputation = 0.5

	// DefaultReputationFloor is the minimum reputation a known proposer needs
	// to submit proposals.
	DefaultReputationFloor = 0.5

	// DefaultMinJustificationChars and DefaultMinJustificationWords gate the
	// proposal justification text.
	DefaultMinJustificationChars = 100
	DefaultMinJustificationWords = 20
)

// Config groups the engine's tunable settings.
type Config struct {
	PoolThreshold         int
	SelectCount           int
	Smoothing             float64
	InitialReputation     float64
	ReputationFloor       float64
	MinJustificationChars int
	MinJustificationWords int
}

// DefaultConfig returns a Config with the reference settings.
func DefaultConfig() *Config {
	return &Config{
		PoolThreshold:         DefaultPoolThreshold,
		SelectCount:           DefaultSelectCount,
		Smoothing:             DefaultSmoothing,
		InitialReputation:     DefaultInitialReputation,
		ReputationFloor:       DefaultReputationFloor,
		MinJustificationChars: DefaultMinJustificationChars,
		MinJustificationWords: DefaultMinJustificationWords,
	}
}

// ImprovementPolicy decides whether a candidate rule should replace the
// current one. The reference policy always accepts.
type ImprovementPolicy func(candidate *Rule, current *Rule, selected []*Proposal) bool

// AlwaysImprove is the reference improvement policy.
func AlwaysImprove(candidate *Rule, current *Rule, selected []*Proposal) bool {
	return true
}

// InstallCallback is called after a new rule has been installed, with the
// history record that was appended.
type InstallCallback func(RuleRecord)

// Engine accepts candidate consensus-rule proposals, scores proposer trust,
// and periodically synthesizes a new active rule from the best proposals.
// The pool-append plus evolution-trigger check runs as a single critical
// section, so exactly one evolution occurs per threshold crossing.
type Engine struct {
	l sync.Mutex

	conf *Config

	pool       []*Proposal
	reputation map[string]float64
	active     *Rule
	history    []*RuleRecord

	historyLog      *HistoryLog
	improvement     ImprovementPolicy
	installCallback InstallCallback

	logger *logrus.Entry
}

// NewEngine instantiates an Engine. historyLog may be nil, in which case the
// rule history lives only in memory. When a historyLog with existing records
// is supplied, the engine bootstraps its history and active rule from it.
func NewEngine(conf *Config, historyLog *HistoryLog, installCallback InstallCallback, logger *logrus.Entry) (*Engine, error) {
	if conf == nil {
		conf = DefaultConfig()
	}

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	engine := &Engine{
		conf:            conf,
		pool:            []*Proposal{},
		reputation:      make(map[string]float64),
		history:         []*RuleRecord{},
		historyLog:      historyLog,
		improvement:     AlwaysImprove,
		installCallback: installCallback,
		logger:          logger.WithField("prefix", "evolution"),
	}

	if historyLog != nil {
		records, err := historyLog.Records()
		if err != nil {
			return nil, err
		}
		engine.history = records
		if len(records) > 0 {
			last := records[len(records)-1]
			engine.active = &Rule{
				Type:       last.Type,
				Parameters: last.Parameters,
			}
		}
	}

	return engine, nil
}

// SetImprovementPolicy replaces the policy that gates rule installation.
func (e *Engine) SetImprovementPolicy(policy ImprovementPolicy) {
	e.l.Lock()
	defer e.l.Unlock()

	e.improvement = policy
}

// ProposeRule validates a proposal and, when it passes every gate, appends it
// to the pool, updates the proposer's reputation, and checks whether
// evolution should trigger. A nil return only confirms acceptance into the
// pool, not that evolution occurred. A non-nil return is a ProposalErr whose
// code says which gate failed; a failed gate leaves no side effects.
func (e *Engine) ProposeRule(proposal *Proposal) error {
	e.l.Lock()

	if err := e.validateProposal(proposal); err != nil {
		e.l.Unlock()
		e.logger.WithField("node_id", proposal.NodeID).WithError(err).Debug("Dropped proposal")
		return err
	}

	if proposal.FitnessScore < 0 || proposal.FitnessScore > 1 {
		e.logger.WithFields(logrus.Fields{
			"node_id": proposal.NodeID,
			"fitness": proposal.FitnessScore,
		}).Warn("Fitness score outside [0,1]")
	}

	e.pool = append(e.pool, proposal)

	e.updateReputation(proposal.NodeID, proposal.FitnessScore)

	record := e.checkEvolution()

	e.logger.WithFields(logrus.Fields{
		"node_id":    proposal.NodeID,
		"rule_type":  proposal.Type.String(),
		"fitness":    proposal.FitnessScore,
		"pool":       len(e.pool),
		"reputation": e.reputation[proposal.NodeID],
	}).Debug("Accepted proposal")

	callback := e.installCallback
	e.l.Unlock()

	if record != nil && callback != nil {
		callback(*record)
	}

	return nil
}

// validateProposal applies the admission gates: required parameter keys,
// justification substance, and proposer reputation. New proposers have no
// reputation record and are exempt from the reputation gate.
func (e *Engine) validateProposal(proposal *Proposal) error {
	for _, key := range []string{ParamThreshold, ParamTimeout, ParamMinValidators} {
		if _, ok := proposal.Parameters[key]; !ok {
			return NewProposalErr(proposal.NodeID, MissingParameters, key)
		}
	}

	if len(proposal.Justification) <= e.conf.MinJustificationChars ||
		len(strings.Fields(proposal.Justification)) <= e.conf.MinJustificationWords {
		return NewProposalErr(proposal.NodeID, ThinJustification, "")
	}

	if score, known := e.reputation[proposal.NodeID]; known && score < e.conf.ReputationFloor {
		return NewProposalErr(proposal.NodeID, LowReputation, "")
	}

	return nil
}

// updateReputation applies the exponential-smoothing trust update:
// score = smoothing*prior + (1-smoothing)*fitness, with the prior defaulting
// to the initial reputation for first-time proposers. Slow to reward, slow to
// punish.
func (e *Engine) updateReputation(nodeID string, fitness float64) {
	prior, known := e.reputation[nodeID]
	if !known {
		prior = e.conf.InitialReputation
	}

	e.reputation[nodeID] = e.conf.Smoothing*prior + (1-e.conf.Smoothing)*fitness
}

// checkEvolution runs inside the engine lock after every accepted proposal.
// When the pool is large enough it selects the top proposals by fitness,
// blends their parameters into a candidate rule, and installs it if the
// improvement policy agrees. The blended rule is always installed under the
// evolutionary family, since averaged parameters match no single discrete
// family. Persistence happens before installation: if the history file cannot
// be written, the pool is retained and evolution retries on the next
// accepted proposal.
func (e *Engine) checkEvolution() *RuleRecord {
	if len(e.pool) < e.conf.PoolThreshold {
		return nil
	}

	sorted := make([]*Proposal, len(e.pool))
	copy(sorted, e.pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FitnessScore > sorted[j].FitnessScore
	})

	selectCount := e.conf.SelectCount
	if selectCount > len(sorted) {
		selectCount = len(sorted)
	}
	best := sorted[:selectCount]

	// blend: per-key arithmetic mean over the keys of the highest-fitness
	// proposal
	parameters := map[string]float64{}
	for key := range best[0].Parameters {
		values := []float64{}
		for _, p := range best {
			if v, ok := p.Parameters[key]; ok {
				values = append(values, v)
			}
		}
		parameters[key] = stat.Mean(values, nil)
	}

	candidate := &Rule{
		Type:       Evolutionary,
		Parameters: parameters,
	}

	if !e.improvement(candidate, e.active, best) {
		e.logger.Debug("Improvement policy refused candidate rule")
		return nil
	}

	contributors := []string{}
	fitnesses := []float64{}
	for _, p := range best {
		contributors = append(contributors, p.NodeID)
		fitnesses = append(fitnesses, p.FitnessScore)
	}

	record := &RuleRecord{
		ID:            uuid.New().String(),
		Type:          candidate.Type,
		Parameters:    candidate.Parameters,
		Timestamp:     time.Now().UTC(),
		Contributors:  contributors,
		FitnessMean:   stat.Mean(fitnesses, nil),
		FitnessStdDev: stat.StdDev(fitnesses, nil),
	}

	if e.historyLog != nil {
		if err := e.historyLog.Append(record); err != nil {
			e.logger.WithError(err).Error("Persisting rule record; evolution deferred")
			return nil
		}
	}

	e.active = candidate
	e.history = append(e.history, record)
	e.pool = []*Proposal{}

	e.logger.WithFields(logrus.Fields{
		"rule_type":    record.Type.String(),
		"parameters":   record.Parameters,
		"contributors": record.Contributors,
	}).Info("Installed evolved rule")

	return record
}

// CurrentRule returns a copy of the active rule, or nil when no evolution has
// ever occurred.
func (e *Engine) CurrentRule() *Rule {
	e.l.Lock()
	defer e.l.Unlock()

	if e.active == nil {
		return nil
	}

	parameters := map[string]float64{}
	for k, v := range e.active.Parameters {
		parameters[k] = v
	}

	return &Rule{
		Type:       e.active.Type,
		Parameters: parameters,
	}
}

// History returns the rule records in chronological order. Each call restarts
// the scan.
func (e *Engine) History() []*RuleRecord {
	e.l.Lock()
	defer e.l.Unlock()

	res := make([]*RuleRecord, len(e.history))
	copy(res, e.history)
	return res
}

// Reputation returns a proposer's score and whether the proposer is known.
func (e *Engine) Reputation(nodeID string) (float64, bool) {
	e.l.Lock()
	defer e.l.Unlock()

	score, known := e.reputation[nodeID]
	return score, known
}

// Reputations returns a snapshot of the reputation map.
func (e *Engine) Reputations() map[string]float64 {
	e.l.Lock()
	defer e.l.Unlock()

	res := make(map[string]float64, len(e.reputation))
	for k, v := range e.reputation {
		res[k] = v
	}
	return res
}

// PoolSize returns the number of proposals awaiting evolution.
func (e *Engine) PoolSize() int {
	e.l.Lock()
	defer e.l.Unlock()

	return len(e.pool)
}

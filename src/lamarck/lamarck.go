package lamarck

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/config"
	"github.com/mosaicnetworks/lamarck/src/evolution"
	"github.com/mosaicnetworks/lamarck/src/node"
	"github.com/mosaicnetworks/lamarck/src/service"
	"github.com/mosaicnetworks/lamarck/src/validators"
	"github.com/sirupsen/logrus"
)

// Lamarck is a struct containing the key parts of a lamarck node.
type Lamarck struct {
	Config     *config.Config
	Validators *validators.Set
	Store      chain.Store
	Chain      *chain.Chain
	Engine     *evolution.Engine
	Node       *node.Node
	Service    *service.Service

	logger *logrus.Entry
}

// NewLamarck is a factory method to instantiate a Lamarck node. To lighten
// the API, the underlying objects are created in the Init method.
func NewLamarck(config *config.Config) *Lamarck {
	engine := &Lamarck{
		Config: config,
		logger: config.Logger(),
	}

	return engine
}

// Init initialises the node based on its configuration.
func (l *Lamarck) Init() error {
	if l.Config.Proxy == nil {
		return fmt.Errorf("no app proxy")
	}

	if err := l.initIdentity(); err != nil {
		l.logger.WithError(err).Error("lamarck.go:Init() initIdentity")
		return err
	}

	if err := l.initValidators(); err != nil {
		l.logger.WithError(err).Error("lamarck.go:Init() initValidators")
		return err
	}

	if err := l.initStore(); err != nil {
		l.logger.WithError(err).Error("lamarck.go:Init() initStore")
		return err
	}

	if err := l.initChain(); err != nil {
		l.logger.WithError(err).Error("lamarck.go:Init() initChain")
		return err
	}

	if err := l.initEngine(); err != nil {
		l.logger.WithError(err).Error("lamarck.go:Init() initEngine")
		return err
	}

	if err := l.initNode(); err != nil {
		l.logger.WithError(err).Error("lamarck.go:Init() initNode")
		return err
	}

	if err := l.initService(); err != nil {
		l.logger.WithError(err).Error("lamarck.go:Init() initService")
		return err
	}

	return nil
}

// Run starts the service and the node.
func (l *Lamarck) Run() {
	if l.Service != nil {
		go l.Service.Serve()
	}

	l.Node.Run()
}

// initIdentity fills in the node's ID and moniker. Without an explicit
// node-id, the hostname serves as identity, so a fleet of containers gets
// distinct IDs for free.
func (l *Lamarck) initIdentity() error {
	if l.Config.NodeID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return err
		}
		l.Config.NodeID = hostname
	}

	if l.Config.Moniker == "" {
		l.Config.Moniker = l.Config.NodeID
	}

	return nil
}

// initValidators reads the validator set from validators.json in the data
// directory, and makes sure this node is part of it.
func (l *Lamarck) initValidators() error {
	if err := os.MkdirAll(l.Config.DataDir, 0700); err != nil {
		return err
	}

	validatorStore := validators.NewJSONValidatorSet(l.Config.DataDir)

	validatorSet, err := validatorStore.Set()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if validatorSet == nil {
		validatorSet = validators.NewSet([]*validators.Validator{})
	}

	if !validatorSet.Contains(l.Config.NodeID) {
		validatorSet = validatorSet.WithNewValidator(
			validators.NewValidator(l.Config.NodeID, l.Config.Moniker))

		if err := validatorStore.Write(validatorSet.Validators); err != nil {
			// keep going with the in-memory set; the store also records it
			l.logger.WithError(err).Warn("Cannot write validators.json")
		}
	}

	l.logger.WithFields(logrus.Fields{
		"validators": validatorSet.IDs(),
		"id":         l.Config.NodeID,
	}).Debug("VALIDATORS")

	l.Validators = validatorSet

	return nil
}

func (l *Lamarck) initStore() error {
	// bootstrap only works with a persistent database store
	if l.Config.Bootstrap && !l.Config.Store {
		l.logger.Debug("bootstrap forces store")
		l.Config.Store = true
	}

	if !l.Config.Store {
		l.Store = chain.NewInmemStore(l.Validators)

		l.logger.Debug("created new in-mem store")
	} else if l.Config.Bootstrap {
		var err error

		l.logger.WithField("path", l.Config.DatabaseDir).Debug("Attempting to load or create database")

		l.Store, err = chain.LoadOrCreateBadgerStore(l.Validators, l.Config.DatabaseDir)

		if err != nil {
			return err
		}

		if l.Store.NeedBootstrap() {
			l.logger.Debug("loaded badger store from existing database")
		} else {
			l.logger.Debug("created new badger store from fresh database")
		}
	} else {
		var err error

		l.logger.WithField("path", l.Config.DatabaseDir).Debug("Creating new database")

		l.Store, err = chain.NewBadgerStore(l.Validators, l.Config.DatabaseDir)

		if err != nil {
			return err
		}

		l.logger.Debug("created new badger store")
	}

	return nil
}

func (l *Lamarck) initChain() error {
	commitCallback := func(block chain.Block) error {
		_, err := l.Config.Proxy.CommitBlock(block)
		return err
	}

	l.Chain = chain.NewChain(
		l.Store,
		l.Config.MinValidators,
		commitCallback,
		l.logger,
	)

	return nil
}

func (l *Lamarck) initEngine() error {
	var historyLog *evolution.HistoryLog

	if l.Config.Store {
		var err error
		historyLog, err = evolution.NewHistoryLog(l.Config.EvolutionDir())
		if err != nil {
			return err
		}
	}

	installCallback := func(record evolution.RuleRecord) {
		l.logger.WithFields(logrus.Fields{
			"rule_id":   record.ID,
			"rule_type": record.Type.String(),
		}).Debug("Rule installed")

		if err := l.Config.Proxy.OnRuleChange(record); err != nil {
			l.logger.WithError(err).Error("Notifying rule change")
		}
	}

	engineConf := &evolution.Config{
		PoolThreshold:         l.Config.EvolutionPool,
		SelectCount:           l.Config.EvolutionSelect,
		Smoothing:             l.Config.Smoothing,
		InitialReputation:     l.Config.InitialReputation,
		ReputationFloor:       l.Config.ReputationFloor,
		MinJustificationChars: l.Config.JustificationChars,
		MinJustificationWords: l.Config.JustificationWords,
	}

	engine, err := evolution.NewEngine(
		engineConf,
		historyLog,
		installCallback,
		l.logger.WithField("prefix", "evolution"),
	)
	if err != nil {
		return err
	}

	l.Engine = engine

	return nil
}

func (l *Lamarck) initNode() error {
	nodeConf := node.NewConfig(
		l.Config.SweepInterval,
		l.Config.SuspendLimit,
		l.Config.MaxWeightDelta,
		l.Config.MaxLearningRate,
		l.logger.Logger,
	)

	l.Node = node.NewNode(
		nodeConf,
		l.Config.NodeID,
		l.Config.Moniker,
		l.Chain,
		l.Engine,
		l.Config.Proxy,
	)

	if err := l.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (l *Lamarck) initService() error {
	if !l.Config.NoService {
		l.Service = service.NewService(
			l.Config.ServiceAddr,
			l.Node,
			l.Chain,
			l.Engine,
			l.logger.WithField("prefix", "service"),
		)
	}
	return nil
}

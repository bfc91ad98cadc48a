package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/lamarck/src/common"
	"github.com/mosaicnetworks/lamarck/src/proxy"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultValidatorsFile is the default name of the JSON file containing the
	// validator set.
	DefaultValidatorsFile = "validators.json"

	// DefaultEvolutionDir is the default name of the folder containing the rule
	// evolution history.
	DefaultEvolutionDir = "evolution"
)

// Default configuration values.
const (
	DefaultLogLevel           = "debug"
	DefaultServiceAddr        = "127.0.0.1:8000"
	DefaultStore              = false
	DefaultMinValidators      = 3
	DefaultEvolutionPool      = 5
	DefaultEvolutionSelect    = 3
	DefaultSmoothing          = 0.7
	DefaultInitialReputation  = 0.5
	DefaultReputationFloor    = 0.5
	DefaultJustificationChars = 100
	DefaultJustificationWords = 20
	DefaultMaxWeightDelta     = 1.0
	DefaultMaxLearningRate    = 0.1
	DefaultSweepInterval      = 1000 * time.Millisecond
	DefaultSuspendLimit       = 100
)

// Config contains all the configuration properties of a Lamarck node.
type Config struct {
	// DataDir is the top-level directory containing Lamarck configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service. If not
	// specified, and "no-service" is not set, the API handlers are registered
	// with the DefaultServerMux of the http package. It is possible that
	// another server in the same process is simultaneously using the
	// DefaultServerMux. In which case, the handlers will be accessible from
	// both servers. This is usefull when Lamarck is used in-memory and expected
	// to use the same endpoint (address:port) as the application's API.
	ServiceAddr string `mapstructure:"service-listen"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Bootstrap determines whether or not to load Lamarck from an existing
	// database file. Forces Store, ie. bootstrap only works with a persistant
	// database store.
	Bootstrap bool `mapstructure:"bootstrap"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// NodeID is the identifier under which this node produces and validates
	// blocks. When empty, it is derived from the hostname at initialisation.
	NodeID string `mapstructure:"node-id"`

	// MinValidators is the number of distinct validators required for a block
	// to be marked validated.
	MinValidators int `mapstructure:"min-validators"`

	// EvolutionPool is the number of pooled proposals that triggers rule
	// evolution.
	EvolutionPool int `mapstructure:"evolution-pool"`

	// EvolutionSelect is the number of top-fitness proposals blended into an
	// evolved rule.
	EvolutionSelect int `mapstructure:"evolution-select"`

	// Smoothing is the weight of prior reputation in the exponential smoothing
	// update applied after each accepted proposal.
	Smoothing float64 `mapstructure:"smoothing"`

	// InitialReputation is the score assumed for first-time proposers.
	InitialReputation float64 `mapstructure:"initial-reputation"`

	// ReputationFloor is the minimum reputation a known proposer needs to
	// submit proposals.
	ReputationFloor float64 `mapstructure:"reputation-floor"`

	// JustificationChars and JustificationWords gate the substance of proposal
	// justifications.
	JustificationChars int `mapstructure:"justification-chars"`
	JustificationWords int `mapstructure:"justification-words"`

	// MaxWeightDelta is the largest individual weight update the node accepts
	// in a submitted change-set.
	MaxWeightDelta float64 `mapstructure:"max-weight-delta"`

	// MaxLearningRate is the largest learning rate the node accepts in a
	// submitted change-set.
	MaxLearningRate float64 `mapstructure:"max-learning-rate"`

	// SweepInterval is the frequency of the background timer that revisits
	// pending blocks.
	SweepInterval time.Duration `mapstructure:"sweep-interval"`

	// SuspendLimit is the number of consecutive idle sweeps (no pending blocks
	// and no submissions) after which the node suspends itself.
	SuspendLimit int `mapstructure:"suspend-limit"`

	// Proxy is the application proxy that enables Lamarck to communicate with
	// the application.
	Proxy proxy.AppProxy

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:            DefaultDataDir(),
		LogLevel:           DefaultLogLevel,
		ServiceAddr:        DefaultServiceAddr,
		Store:              DefaultStore,
		DatabaseDir:        DefaultDatabaseDir(),
		MinValidators:      DefaultMinValidators,
		EvolutionPool:      DefaultEvolutionPool,
		EvolutionSelect:    DefaultEvolutionSelect,
		Smoothing:          DefaultSmoothing,
		InitialReputation:  DefaultInitialReputation,
		ReputationFloor:    DefaultReputationFloor,
		JustificationChars: DefaultJustificationChars,
		JustificationWords: DefaultJustificationWords,
		MaxWeightDelta:     DefaultMaxWeightDelta,
		MaxLearningRate:    DefaultMaxLearningRate,
		SweepInterval:      DefaultSweepInterval,
		SuspendLimit:       DefaultSuspendLimit,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level Lamarck directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// ValidatorsFile returns the full path of the JSON file containing the
// validator set.
func (c *Config) ValidatorsFile() string {
	return filepath.Join(c.DataDir, DefaultValidatorsFile)
}

// EvolutionDir returns the full path of the directory containing the rule
// evolution history.
func (c *Config) EvolutionDir() string {
	return filepath.Join(c.DataDir, DefaultEvolutionDir)
}

// Logger returns a formatted logrus Entry, with prefix set to "lamarck".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "lamarck")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level Lamarck
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Lamarck")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Lamarck")
		} else {
			return filepath.Join(home, ".lamarck")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/lamarck/src/common"
	"github.com/sirupsen/logrus"
)

type Config struct {
	SweepInterval   time.Duration `mapstructure:"sweep-interval"`
	SuspendLimit    int           `mapstructure:"suspend-limit"`
	MaxWeightDelta  float64       `mapstructure:"max-weight-delta"`
	MaxLearningRate float64       `mapstructure:"max-learning-rate"`
	Logger          *logrus.Logger
}

func NewConfig(sweepInterval time.Duration,
	suspendLimit int,
	maxWeightDelta float64,
	maxLearningRate float64,
	logger *logrus.Logger) *Config {

	return &Config{
		SweepInterval:   sweepInterval,
		SuspendLimit:    suspendLimit,
		MaxWeightDelta:  maxWeightDelta,
		MaxLearningRate: maxLearningRate,
		Logger:          logger,
	}
}

func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		SweepInterval:   1000 * time.Millisecond,
		SuspendLimit:    100,
		MaxWeightDelta:  1.0,
		MaxLearningRate: 0.1,
		Logger:          logger,
	}
}

func TestConfig(t *testing.T) *Config {
	config := DefaultConfig()
	config.SweepInterval = 10 * time.Millisecond
	config.Logger = common.NewTestLogger(t)
	return config
}

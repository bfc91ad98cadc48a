package commands

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/lamarck/src/dummy"
	"github.com/mosaicnetworks/lamarck/src/lamarck"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRunCmd returns the command that starts a Lamarck node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run node",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlagsLoadViper(cmd)
		},
		RunE: runLamarck,
	}

	AddRunFlags(cmd)

	return cmd
}

func runLamarck(cmd *cobra.Command, args []string) error {
	logger := _config.Logger()

	addLogHooks(logger.Logger)

	// The node is fronted by the in-memory dummy application, which folds
	// committed change-sets into a state hash and logs rule changes.
	client := dummy.NewInmemDummyClient(logger.Logger)
	_config.Proxy = client

	engine := lamarck.NewLamarck(_config)

	if err := engine.Init(); err != nil {
		logger.Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

// AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("datadir", "d", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().StringP("moniker", "m", _config.Moniker, "Friendly name")
	cmd.Flags().String("node-id", _config.NodeID, "Validator ID (defaults to the hostname)")

	// Service
	cmd.Flags().String("service-listen", _config.ServiceAddr, "Bind IP:PORT of HTTP API service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP API service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Bool("bootstrap", _config.Bootstrap, "Load from database")

	// Consensus
	cmd.Flags().Int("min-validators", _config.MinValidators, "Validators required to mark a block validated")
	cmd.Flags().Float64("max-weight-delta", _config.MaxWeightDelta, "Largest accepted weight update")
	cmd.Flags().Float64("max-learning-rate", _config.MaxLearningRate, "Largest accepted learning rate")
	cmd.Flags().Duration("sweep-interval", _config.SweepInterval, "Interval between validation sweeps")
	cmd.Flags().Int("suspend-limit", _config.SuspendLimit, "Idle sweeps before the node suspends itself")

	// Evolution
	cmd.Flags().Int("evolution-pool", _config.EvolutionPool, "Pooled proposals that trigger rule evolution")
	cmd.Flags().Int("evolution-select", _config.EvolutionSelect, "Top-fitness proposals blended into an evolved rule")
	cmd.Flags().Float64("smoothing", _config.Smoothing, "Weight of prior reputation in the trust update")
	cmd.Flags().Float64("reputation-floor", _config.ReputationFloor, "Minimum reputation to submit proposals")
}

// bindFlagsLoadViper binds the flags to viper and reads the optional
// lamarck.toml file from the datadir, giving priority to cli flags over config
// file values.
func bindFlagsLoadViper(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	viper.SetConfigName("lamarck")

	if datadir, err := cmd.Flags().GetString("datadir"); err == nil {
		viper.AddConfigPath(datadir)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// do nothing, the config file is optional
	} else {
		return err
	}

	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// the datadir may have moved the default database location
	_config.SetDataDir(_config.DataDir)

	return nil
}

// addLogHooks splits info and debug output into rotatable files, keeping
// stderr readable.
func addLogHooks(logger *logrus.Logger) {
	pathMap := lfshook.PathMap{}

	if _, err := os.OpenFile("lamarck_info.log", os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		logger.Info("Failed to open lamarck_info.log file, using default stderr")
	} else {
		pathMap[logrus.InfoLevel] = "lamarck_info.log"
	}

	if _, err := os.OpenFile("lamarck_debug.log", os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		logger.Info("Failed to open lamarck_debug.log file, using default stderr")
	} else {
		pathMap[logrus.DebugLevel] = "lamarck_debug.log"
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))
}

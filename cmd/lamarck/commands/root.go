package commands

import (
	"github.com/mosaicnetworks/lamarck/src/config"
	"github.com/spf13/cobra"
)

var _config = config.NewDefaultConfig()

// RootCmd is the root command for Lamarck
var RootCmd = &cobra.Command{
	Use:              "lamarck",
	Short:            "validated ledger with evolving consensus rules",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(
		NewRunCmd(),
		VersionCmd,
	)
}

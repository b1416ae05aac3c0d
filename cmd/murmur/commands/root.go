package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for Murmur
var RootCmd = &cobra.Command{
	Use:              "murmur",
	Short:            "murmur peer-to-peer ledger",
	TraverseChildren: true,
}

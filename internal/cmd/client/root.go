package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the ensdb client.
// It registers the records, match, stats and health commands.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "ensdb",
		Short: "ensdb client commands",
	}
	AddCommands(root)
	return root
}

// AddCommands attaches the client commands to an existing root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(
		NewRecordsCommand(),
		newMatchCommand(),
		newStatsCommand(),
		newHealthCommand(),
	)
}

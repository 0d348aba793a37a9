package cli

import "github.com/spf13/cobra"

// RootCmd assembles activitiesctl.
func RootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "activitiesctl",
		Short:         "Operate the activity service store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(GetCmd(open))
	root.AddCommand(DeleteCmd(open))
	root.AddCommand(OpenVisitCmd(open))
	root.AddCommand(ListCmd(open))
	root.AddCommand(EndCmd(open))

	// PostgreSQL only
	root.AddCommand(MigrateCmd(open))
	root.AddCommand(HistoryCmd(open))

	return root
}

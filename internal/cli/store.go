package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var errNeedsPostgres = errors.New("this command needs postgres.url to be configured")

// MigrateCmd returns the migrate command.
func MigrateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL tables",
		Long:  `Create the activities and event log tables. Safe to run multiple times (idempotent).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), open, func(env *Env) error {
				if env.Migrate == nil {
					return errNeedsPostgres
				}
				if err := env.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", color.New(color.FgGreen).Sprint("✓"))
				return nil
			})
		},
	}
}

// HistoryCmd returns the history command.
func HistoryCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the lifecycle events recorded for an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), open, func(env *Env) error {
				if env.History == nil {
					return errNeedsPostgres
				}
				records, err := env.History.ListForActivity(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintf(out, "no events recorded for %s\n", args[0])
					return nil
				}
				for _, rec := range records {
					fmt.Fprintf(out, "%s  %s  %s\n",
						rec.ReceivedAt.Format(time.RFC3339),
						color.New(color.FgCyan).Sprintf("%-24s", rec.EventType),
						fmt.Sprintf("%s/%d@%d", rec.Topic, rec.Partition, rec.Offset))
				}
				return nil
			})
		},
	}
}

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/lifecycle"
)

// GetCmd returns the get command.
func GetCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), open, func(env *Env) error {
				activity, err := env.Service.GetActivity(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printActivity(cmd.OutOrStdout(), *activity)
				return nil
			})
		},
	}
}

// DeleteCmd returns the delete command.
func DeleteCmd(open Opener) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an activity (test data cleanup)",
		Long: `Remove an activity from the store.

Intended for cleaning up test data only. Requires --force.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to delete %s without --force", args[0])
			}
			return withEnv(cmd.Context(), open, func(env *Env) error {
				removed, err := env.Service.DeleteActivity(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s (%s)\n",
					color.New(color.FgGreen).Sprint("✓"), removed.ID, removed.ActivityType)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm the deletion")

	return cmd
}

// OpenVisitCmd returns the open-visit command.
func OpenVisitCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "open-visit <staffId>",
		Short: "Report whether a tester has an activity in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), open, func(env *Env) error {
				isOpen, err := env.Service.HasOpenVisit(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if isOpen {
					fmt.Fprintf(cmd.OutOrStdout(), "staff %s: %s\n", args[0], color.New(color.FgYellow).Sprint("OPEN"))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "staff %s: %s\n", args[0], color.New(color.FgGreen).Sprint("none open"))
				}
				return nil
			})
		},
	}
}

// ListCmd returns the list command.
func ListCmd(open Opener) *cobra.Command {
	var (
		activityType string
		from, to     string
		station      string
		staff        string
		onlyOpen     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities of one type",
		Long: `List activities of one type, most recent first.

With --from and --to the ten most recent activities in the range are shown.
With --open every activity without an end time is shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), open, func(env *Env) error {
				result, err := env.Service.ListActivities(cmd.Context(), domain.ListRequest{
					ActivityType:       domain.ActivityType(activityType),
					FromStartTime:      from,
					ToStartTime:        to,
					IsOpen:             onlyOpen,
					TestStationPNumber: station,
					TesterStaffID:      staff,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, a := range result.Items {
					printRow(out, a)
				}
				summary := fmt.Sprintf("%d activities (%s)", len(result.Items), result.Mode)
				if result.Truncated {
					summary += color.New(color.FgYellow).Sprint(" [truncated]")
				}
				fmt.Fprintln(out, summary)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&activityType, "type", string(domain.ActivityTypeVisit), "Activity type")
	cmd.Flags().StringVar(&from, "from", "", "Earliest start time")
	cmd.Flags().StringVar(&to, "to", "", "Latest start time")
	cmd.Flags().StringVar(&station, "station", "", "Test station P number")
	cmd.Flags().StringVar(&staff, "staff", "", "Tester staff id")
	cmd.Flags().BoolVar(&onlyOpen, "open", false, "List activities without an end time")

	return cmd
}

// EndCmd returns the end command.
func EndCmd(open Opener) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "end <id>",
		Short: "End an open activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var endTime *time.Time
			if at != "" {
				parsed, ok := lifecycle.ParseTime(at)
				if !ok {
					return fmt.Errorf("invalid --at value %q", at)
				}
				endTime = &parsed
			}
			return withEnv(cmd.Context(), open, func(env *Env) error {
				result, err := env.Service.EndActivity(cmd.Context(), args[0], endTime)
				if err != nil {
					return err
				}
				if result.WasAlreadyClosed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s was already closed\n", color.New(color.FgYellow).Sprint("!"), args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s ended %s\n", color.New(color.FgGreen).Sprint("✓"), args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "End time (RFC3339); defaults to now")

	return cmd
}

func printActivity(w io.Writer, a domain.Activity) {
	label := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(w, "%s %s\n", label("id:"), a.ID)
	fmt.Fprintf(w, "%s %s\n", label("type:"), a.ActivityType)
	if a.ParentID != "" {
		fmt.Fprintf(w, "%s %s\n", label("parent:"), a.ParentID)
	}
	fmt.Fprintf(w, "%s %s (%s, %s)\n", label("station:"), a.TestStationName, a.TestStationPNumber, a.TestStationType)
	fmt.Fprintf(w, "%s %s (%s)\n", label("tester:"), a.TesterName, a.TesterStaffID)
	fmt.Fprintf(w, "%s %s\n", label("start:"), a.StartTime.Format(time.RFC3339))
	fmt.Fprintf(w, "%s %s\n", label("end:"), endLabel(a))
	if len(a.WaitReason) > 0 {
		reasons := make([]string, 0, len(a.WaitReason))
		for _, r := range a.WaitReason {
			reasons = append(reasons, string(r))
		}
		fmt.Fprintf(w, "%s %s\n", label("wait reason:"), strings.Join(reasons, ", "))
	}
	if a.Notes != nil {
		fmt.Fprintf(w, "%s %s\n", label("notes:"), *a.Notes)
	}
}

func printRow(w io.Writer, a domain.Activity) {
	fmt.Fprintf(w, "%s  %-36s  %-8s  %s\n", a.StartTime.Format(time.RFC3339), a.ID, a.TesterStaffID, endLabel(a))
}

func endLabel(a domain.Activity) string {
	if a.EndTime == nil {
		return color.New(color.FgYellow).Sprint("open")
	}
	return a.EndTime.Format(time.RFC3339)
}

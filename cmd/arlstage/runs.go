package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gerhard-ee/arlstage/internal/config"
	"github.com/gerhard-ee/arlstage/internal/state"
	"github.com/spf13/cobra"
)

func newRunsCmd(cfg *config.Config) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := state.NewManager(cfg.State)
			if err != nil {
				return err
			}

			table := cfg.Table
			if all {
				table = ""
			}
			runs, err := states.ListStates(cmd.Context(), table)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				if cfg.State.Type == "memory" {
					fmt.Fprintln(out, "No runs recorded. The memory state backend does not outlive a run; use --state-type file or kubernetes.")
					return nil
				}
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB ID\tTABLE\tSTATUS\tENCODING\tLOADED\tEXPORTED\tSTARTED\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					r.JobID, r.Table, r.Status, r.Encoding, r.LoadedRows, r.ExportedRows,
					r.StartedAt.Local().Format(time.DateTime), firstLine(r.Error))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List runs of every table")
	cmd.AddCommand(newRunsDeleteCmd(cfg))
	return cmd
}

func newRunsDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>...",
		Short: "Delete recorded pipeline runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := state.NewManager(cfg.State)
			if err != nil {
				return err
			}

			for _, id := range args {
				if err := states.DeleteState(cmd.Context(), id); err != nil {
					return fmt.Errorf("failed to delete run %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
			}
			return nil
		},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

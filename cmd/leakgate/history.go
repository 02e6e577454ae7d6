package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/use-agent/leakgate/config"
	"github.com/use-agent/leakgate/history"
	"github.com/use-agent/leakgate/report"
)

// NewHistoryCmd creates the history command group.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored probe runs",
		Long: `History reads the run database that probe and serve write to.

Examples:
  # List recent runs across all targets
  leakgate history list

  # List runs for one target
  leakgate history list https://example.com/news/article

  # Print a stored run as a terminal report
  leakgate history show 2f6c1e0a-...

  # Diff the findings of two runs
  leakgate history compare <old-run-id> <new-run-id>`,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryCompareCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [url]",
		Short: "List stored runs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			var targetURL string
			if len(args) == 1 {
				targetURL = args[0]
			}
			limit, _ := cmd.Flags().GetInt("limit")

			runs, err := db.ListRuns(cmd.Context(), targetURL, limit)
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return printJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored runs.")
				return nil
			}
			for _, r := range runs {
				sev := r.MaxSeverity
				if sev == "" {
					sev = "-"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  findings=%d  max=%s  %s\n",
					r.RunID,
					r.GeneratedAt.Format("2006-01-02 15:04"),
					r.Findings,
					sev,
					r.TargetURL,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 0, "Maximum runs to list (default 50)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print one stored run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := db.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			var w report.Writer
			if jsonFlag(cmd) {
				w = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint())
			} else {
				w = report.NewConsoleWriter(cmd.OutOrStdout())
			}
			_, err = w.Write(run)
			return err
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	return cmd
}

func newHistoryCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <old-run-id> <new-run-id>",
		Short: "Diff the findings of two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			diff, err := db.CompareRuns(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return printJSON(cmd, diff)
			}
			printDiffSection(cmd, color.New(color.FgRed), "Added", diff.Added)
			printDiffSection(cmd, color.New(color.FgGreen), "Resolved", diff.Resolved)
			printDiffSection(cmd, color.New(color.FgYellow), "Persisting", diff.Persisting)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	return cmd
}

func printDiffSection(cmd *cobra.Command, c *color.Color, label string, ids []string) {
	out := cmd.OutOrStdout()
	c.Fprintf(out, "%s (%d)\n", label, len(ids))
	if len(ids) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
}

func openHistory(cmd *cobra.Command) (*history.DB, error) {
	cfg := config.Load()
	setupLogger(cfg.Log, getVerboseFlag(cmd))
	db, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history database %s: %w", cfg.History.Path, err)
	}
	return db, nil
}

func jsonFlag(cmd *cobra.Command) bool {
	j, _ := cmd.Flags().GetBool("json")
	return j
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

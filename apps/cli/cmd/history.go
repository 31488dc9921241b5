package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/history"
)

var (
	historyLimitFlag int
	historyRunFlag   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs",
	Long: `Show runs recorded with 'playspec run --history'. The database lives at
history.path (default .playspec/history.db).

Examples:
  playspec history
  playspec history --run 6f1c...
  playspec history flaky --limit 20`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

var historyFlakyCmd = &cobra.Command{
	Use:   "flaky",
	Short: "List checks that both passed and failed in recent runs",
	Args:  cobra.NoArgs,
	RunE:  historyFlakyCommand,
}

func init() {
	historyCmd.PersistentFlags().IntVar(&historyLimitFlag, "limit", 10, "Number of most recent runs to inspect")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "Show the checks of one run")
	historyCmd.AddCommand(historyFlakyCmd)
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	log, err := newLogger(cmd)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	settings, err := loadSettings(log)
	if err != nil {
		return nil, err
	}
	return history.Open(cmd.Context(), settings.Resolve(config.KeyHistoryPath, config.DefaultHistoryPath))
}

func historyCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	if historyRunFlag != "" {
		checks, err := store.Checks(cmd.Context(), historyRunFlag)
		if err != nil {
			return err
		}
		if len(checks) == 0 {
			return fmt.Errorf("no checks recorded for run %s", historyRunFlag)
		}
		fmt.Fprintln(w, "SUITE\tCHECK\tKIND\tOUTCOME\tDURATION\tATTEMPTS\tERROR")
		for _, c := range checks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				c.Suite, c.Name, c.Kind, c.Outcome, c.Duration.Round(time.Millisecond), c.Attempts, c.Error)
		}
		return w.Flush()
	}

	runs, err := store.Runs(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tPASSED\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond), r.Passed, r.Failed, r.Skipped)
	}
	return w.Flush()
}

func historyFlakyCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	flaky, err := store.Flaky(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(flaky) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No flaky checks in the last %d runs.\n", historyLimitFlag)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUITE\tCHECK\tPASSED\tFAILED")
	for _, f := range flaky {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", f.Suite, f.Name, f.Passed, f.Failed)
	}
	return w.Flush()
}

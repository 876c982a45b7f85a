package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrutineer/internal/batch"
	"github.com/zulandar/scrutineer/internal/penalty"
	"github.com/zulandar/scrutineer/internal/results"
	"github.com/zulandar/scrutineer/internal/store"
)

func newPenaltiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "penalties",
		Short: "Track penalty commands",
	}
	cmd.AddCommand(newPenaltiesApplyCmd())
	return cmd
}

func newPenaltiesApplyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply track incidents to unprocessed runs",
		Long: `Matches logged incidents against the active penalty rules and writes the
final time of every unprocessed valid run. Runs that fail are reported and left
unprocessed for the next invocation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPenaltiesApply(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	return cmd
}

func runPenaltiesApply(cmd *cobra.Command, configPath string) error {
	cfg, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	eng := penalty.NewEngine(repo, newBatchRunner(cfg, repo))
	rep, err := eng.Apply(cmd.Context())
	return printReport(cmd.OutOrStdout(), "runs", rep, err)
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Competition results commands",
	}
	cmd.AddCommand(newResultsCalcCmd())
	cmd.AddCommand(newResultsShowCmd())
	return cmd
}

func newResultsCalcCmd() *cobra.Command {
	var (
		configPath string
		penalties  bool
	)

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Recalculate every team's result and rank",
		Long: `Rebuilds the competition results from approved static scores, processed run
times and applied incidents. Safe to re-run; unchanged inputs give identical
totals and ranks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResultsCalc(cmd, configPath, penalties)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	cmd.Flags().BoolVar(&penalties, "apply-penalties", false, "apply pending penalties first")
	return cmd
}

func runResultsCalc(cmd *cobra.Command, configPath string, penalties bool) error {
	cfg, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	runner := newBatchRunner(cfg, repo)
	out := cmd.OutOrStdout()
	if penalties {
		rep, err := penalty.NewEngine(repo, runner).Apply(cmd.Context())
		if err := printReport(out, "runs", rep, err); err != nil {
			return err
		}
	}
	rep, err := results.NewAggregator(repo, runner).Recalculate(cmd.Context())
	if err := printReport(out, "teams", rep, err); err != nil {
		return err
	}
	return printStandings(cmd, repo)
}

func newResultsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current standings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, repo, err := repoFromConfig(configPath)
			if err != nil {
				return err
			}
			return printStandings(cmd, repo)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	return cmd
}

func printStandings(cmd *cobra.Command, repo store.Repository) error {
	rows, err := repo.ListCompetitionResults(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No results yet. Run `scrut results calc`.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tTEAM\tSTATIC\tACCEL\tSKID\tAUTOX\tENDUR\tPEN\tDYNAMIC\tTOTAL")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			r.OverallRank, r.TeamID, r.StaticPoints,
			r.AccelerationPoints, r.SkidpadPoints, r.AutocrossPoints, r.EndurancePoints,
			r.Penalties, r.DynamicPoints, r.OverallTotal)
	}
	return w.Flush()
}

// printReport summarizes a batch run. Partial failures are printed and not
// treated as command errors.
func printReport(out io.Writer, noun string, rep *batch.Report, err error) error {
	var pf *batch.PartialFailure
	if err != nil && !errors.As(err, &pf) {
		return err
	}
	fmt.Fprintf(out, "%s: processed %d %s", rep.Kind, rep.Processed, noun)
	if len(rep.Failed) > 0 {
		fmt.Fprintf(out, ", %d failed %v", len(rep.Failed), rep.Failed)
	}
	fmt.Fprintf(out, " (job %s, %s)\n", rep.JobID, rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	return nil
}

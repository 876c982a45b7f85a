package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrutineer/internal/batch"
	"github.com/zulandar/scrutineer/internal/board"
	"github.com/zulandar/scrutineer/internal/dashboard"
	"github.com/zulandar/scrutineer/internal/penalty"
	"github.com/zulandar/scrutineer/internal/results"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		date       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only booking board server",
		Long: `Serves the booking board, standings and a live event stream over HTTP.
When recalculate.cron is configured, penalties and results are recalculated on
that schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, date)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default board.port)")
	cmd.Flags().StringVar(&date, "date", "", "pin the board to a date YYYY-MM-DD (default follows the clock)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, date string) error {
	cfg, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Board.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	ref := board.NewRefresher(repo, cfg.Board.RefreshInterval, date)
	if err := ref.Start(ctx); err != nil {
		return err
	}
	defer ref.Stop()

	if cfg.Recalculate.Cron != "" {
		runner := newBatchRunner(cfg, repo)
		sched, err := board.NewSchedule(cfg.Recalculate.Cron, recalculate(penalty.NewEngine(repo, runner), results.NewAggregator(repo, runner)))
		if err != nil {
			return err
		}
		go sched.Run(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Recalculating on %q\n", cfg.Recalculate.Cron)
	}

	return dashboard.Start(ctx, dashboard.StartOpts{
		Repo:  repo,
		Board: ref,
		Port:  port,
		Out:   cmd.OutOrStdout(),
	})
}

// recalculate applies pending penalties and then rebuilds results. Partial
// failures are already logged per item and do not stop the aggregation.
func recalculate(eng *penalty.Engine, agg *results.Aggregator) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var pf *batch.PartialFailure
		if _, err := eng.Apply(ctx); err != nil && !errors.As(err, &pf) {
			return err
		}
		if _, err := agg.Recalculate(ctx); err != nil && !errors.As(err, &pf) {
			return err
		}
		return nil
	}
}

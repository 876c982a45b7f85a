package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "scrutineer.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrut",
		Short: "Scrutineer: inspection booking and results engine",
		Long:  "Scrutineer books technical inspection lanes, applies track penalties and ranks teams.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newTypeCmd())
	cmd.AddCommand(newSlotsCmd())
	cmd.AddCommand(newEligibilityCmd())
	cmd.AddCommand(newBookCmd())
	cmd.AddCommand(newBookingCmd())
	cmd.AddCommand(newPenaltiesCmd())
	cmd.AddCommand(newResultsCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scrut %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}

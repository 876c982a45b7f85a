package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrutineer/internal/batch"
	"github.com/zulandar/scrutineer/internal/booking"
	"github.com/zulandar/scrutineer/internal/config"
	"github.com/zulandar/scrutineer/internal/db"
	"github.com/zulandar/scrutineer/internal/store"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Scrutineer database",
		Long:  "Creates the database, migrates all tables, seeds inspection types and penalty rules.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config for %q from %s\n", cfg.Competition, configPath)

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database.User, cfg.Database.Host, cfg.Database.Port)
		if err != nil {
			return fmt.Errorf("connect to MySQL at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
		}
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nScrutineer database initialized successfully.")
	return nil
}

func migrateAndSeed(cmd *cobra.Command, gormDB *gorm.DB, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedInspectionTypes(gormDB, cfg.InspectionTypes); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d inspection types:", len(cfg.InspectionTypes))
	for _, t := range cfg.InspectionTypes {
		fmt.Fprintf(out, " %s", t.Key)
	}
	fmt.Fprintln(out)

	if err := db.SeedPenaltyRules(gormDB, cfg.PenaltyRules); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d penalty rules\n", len(cfg.PenaltyRules))
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Scrutineer database",
		Long: `Drops every Scrutineer table (or the whole MySQL database) and
re-initializes it from config (migrate + seed). Bookings, runs, incidents and
results are lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	target := cfg.Database.Path
	if cfg.Database.Driver == "mysql" {
		target = cfg.Database.Name
	}

	if !skipConfirm && !confirmReset(cmd, target) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database.User, cfg.Database.Host, cfg.Database.Port)
		if err != nil {
			return fmt.Errorf("connect to MySQL at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
		}
		if err := db.DropDatabase(adminDB, target); err != nil {
			return err
		}
		if err := db.CreateDatabase(adminDB, target); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s re-created\n", target)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		if err := gormDB.Migrator().DropTable(db.AllModels()...); err != nil {
			return fmt.Errorf("drop tables: %w", err)
		}
		fmt.Fprintf(out, "Dropped tables in %s\n", target)
	}
	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nScrutineer database reset and re-initialized successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	return cfg, gormDB, nil
}

// repoFromConfig connects and wraps the database in the typed repository.
func repoFromConfig(configPath string) (*config.Config, *store.Gorm, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store.NewGorm(gormDB), nil
}

func newBookingService(cfg *config.Config, repo store.Repository) *booking.Service {
	return booking.NewService(repo, booking.Options{
		DayStart:           cfg.Schedule.DayStart,
		DayEnd:             cfg.Schedule.DayEnd,
		MaxConflictRetries: cfg.Booking.MaxConflictRetries,
	})
}

func newBatchRunner(cfg *config.Config, repo store.Repository) *batch.Runner {
	return batch.NewRunner(repo, batch.Options{
		PerItemTimeout: cfg.Batch.PerItemTimeout,
		Concurrency:    cfg.Batch.Concurrency,
	})
}

// Command campusctl runs maintenance tasks against a CampusSafe deployment.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HammerMeetNail/campussafe/internal/config"
	"github.com/HammerMeetNail/campussafe/internal/database"
	"github.com/HammerMeetNail/campussafe/internal/logging"
)

type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
	Close() error
}

var openMigrator = func(cfg *config.Config) (migrator, error) {
	m, err := database.NewMigrator(cfg.Database.DSN(), cfg.Database.MigrationsPath)
	if err != nil {
		return nil, err
	}
	m.SetLogger(logging.New().SetOutput(os.Stderr))
	return m, nil
}

var loadConfig = func() (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return config.Load()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "campusctl",
		Short:        "Maintenance commands for the CampusSafe backend",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newTipsCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	var all bool
	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (one step unless --all or --steps is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withMigrator(func(m migrator) error {
				var err error
				if all {
					err = m.Down()
				} else {
					err = m.Steps(-steps)
				}
				if err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m migrator) error {
				return printVersion(cmd, m)
			})
		},
	}

	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Mark a schema version as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < -1 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(func(m migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	cmd.AddCommand(up, down, force, version)
	return cmd
}

func withMigrator(fn func(m migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	m, err := openMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

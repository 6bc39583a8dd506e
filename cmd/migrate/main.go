package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"eventhub/internal/config"
	"eventhub/internal/database"
)

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the eventhub database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := loadDSN()
		if err != nil {
			return err
		}
		if err := database.MigrateUp(dsn); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (default 1 step)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}

		dsn, err := loadDSN()
		if err != nil {
			return err
		}
		if err := database.MigrateDown(dsn, steps); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := loadDSN()
		if err != nil {
			return err
		}
		version, dirty, err := database.MigrationVersion(dsn)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

func loadDSN() (string, error) {
	cfg, err := config.Load(config.ModeMigrate)
	if err != nil {
		return "", err
	}
	return cfg.Postgres.DSN, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

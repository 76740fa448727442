package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/cli/config"
	"github.com/portfolio-egg/egg/internal/cli/ui"
	"github.com/portfolio-egg/egg/internal/orm/migrate"
	"github.com/portfolio-egg/egg/internal/store"
)

// categorizeDatabaseError returns a short description of a database error.
// In verbose mode it returns the full error.
func categorizeDatabaseError(err error, verbose bool) string {
	if verbose {
		return err.Error()
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "syntax"):
		return "SQL syntax error - use --verbose for details"
	case strings.Contains(errStr, "constraint") || strings.Contains(errStr, "violates"):
		return "constraint violation - use --verbose for details"
	case strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "no such"):
		return "referenced object does not exist - use --verbose for details"
	case strings.Contains(errStr, "already exists"):
		return "object already exists - use --verbose for details"
	case strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "access denied"):
		return "permission denied - check database user privileges"
	}
	return "migration failed - use --verbose for details"
}

// openDatabase connects with the configured driver and loads the
// migrations for its dialect
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, []*migrate.Migration, error) {
	db, err := store.Open(ctx, store.Config{Driver: cfg.Database.Driver, URL: cfg.Database.URL})
	if err != nil {
		return nil, nil, stripCredentials(err)
	}
	dialect, err := store.DialectOf(cfg.Database.Driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	migs, err := store.Migrations(dialect)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, migs, nil
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Apply and inspect the schema migrations embedded in egg.

Postgres and SQLite each have their own migration set; the one matching
database.driver is used.

Available subcommands:
  up       - Apply all pending migrations
  down     - Roll back the most recent migrations
  status   - Show applied and pending migrations`,
	}

	cmd.AddCommand(newMigrateUpCommand(opts))
	cmd.AddCommand(newMigrateDownCommand(opts))
	cmd.AddCommand(newMigrateStatusCommand(opts))

	return cmd
}

func newMigrateUpCommand(opts *globalOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			db, migs, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := migrate.NewRunner(db, zap.NewNop()).MigrateUp(cmd.Context(), migs)
			if err != nil {
				if applied > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) before the failure\n", applied)
				}
				cmd.PrintErr(ui.MigrationError(categorizeDatabaseError(err, verbose), opts.noColor))
				return errors.New("migration failed")
			}

			out := cmd.OutOrStdout()
			if applied == 0 {
				fmt.Fprint(out, ui.Info("No pending migrations", opts.noColor))
				return nil
			}
			ui.WriteSuccess(out, fmt.Sprintf("Applied %d migration(s)", applied), opts.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed error messages")
	return cmd
}

func newMigrateDownCommand(opts *globalOptions) *cobra.Command {
	var (
		verbose bool
		steps   int
	)

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Long:  "Roll back the most recently applied migrations, newest first. Use --steps to roll back more than one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			db, _, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			rolledBack, err := migrate.NewRunner(db, zap.NewNop()).MigrateDown(cmd.Context(), steps)
			if errors.Is(err, migrate.ErrNothingToRollback) {
				fmt.Fprint(out, ui.Info("No migrations to roll back", opts.noColor))
				return nil
			}
			if err != nil {
				cmd.PrintErr(ui.MigrationError(categorizeDatabaseError(err, verbose), opts.noColor))
				return errors.New("rollback failed")
			}
			ui.WriteSuccess(out, fmt.Sprintf("Rolled back %d migration(s)", rolledBack), opts.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed error messages")
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to roll back")
	return cmd
}

func newMigrateStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			db, migs, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := migrate.NewRunner(db, zap.NewNop()).Status(cmd.Context(), migs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ui.Header(out, "Migrations", opts.noColor)
			table := ui.NewTable(out, []string{"VERSION", "NAME", "STATUS", "APPLIED AT"}, &ui.TableOptions{NoColor: opts.noColor})
			for _, m := range status.Applied {
				table.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "applied", m.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			for _, m := range status.Pending {
				table.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "pending", "")
			}
			table.Render()
			fmt.Fprintln(out)
			fmt.Fprintln(out, status.Summary())
			return nil
		},
	}
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/portfolio-egg/egg/internal/cli/config"
	"github.com/portfolio-egg/egg/internal/cli/ui"
	"github.com/portfolio-egg/egg/internal/store"
)

// confirm asks a yes/no question; tests replace it
var confirm = func(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

// NewDBCommand creates the db command
func NewDBCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Create or drop the database named by database.url.

For Postgres the command connects to the "postgres" maintenance database,
so the user needs the CREATEDB privilege. For SQLite the database file
is created or removed.`,
		Example: `  # Create the configured database
  egg db create

  # Drop it without the confirmation prompt
  egg db drop --yes`,
	}

	cmd.AddCommand(newDBCreateCommand(opts))
	cmd.AddCommand(newDBDropCommand(opts))

	return cmd
}

func newDBCreateCommand(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the database if it doesn't exist",
		Long:  "Create the configured database. Running it again is safe: an existing database is left alone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDB(cmd, opts, cfg, yes, dbCreate)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip production confirmation prompts")
	return cmd
}

func newDBDropCommand(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the database",
		Long:  "Drop the configured database and everything in it. Asks for confirmation unless --yes is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDB(cmd, opts, cfg, yes, dbDrop)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

type dbAction int

const (
	dbCreate dbAction = iota
	dbDrop
)

func runDB(cmd *cobra.Command, opts *globalOptions, cfg *config.Config, yes bool, action dbAction) error {
	dialect, err := store.DialectOf(cfg.Database.Driver)
	if err != nil {
		return err
	}

	var name string
	if dialect == store.DialectSQLite {
		name = sqlitePath(cfg.Database.URL)
	} else {
		name, _, _, err = parseDBURL(cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("invalid database.url: %w", err)
		}
	}

	if !yes && (action == dbDrop || isProductionDatabase(name) || !cfg.IsDevelopment()) {
		verb := "create"
		if action == dbDrop {
			verb = "drop"
		}
		if isProductionDatabase(name) || !cfg.IsDevelopment() {
			cmd.PrintErr(ui.Warning(fmt.Sprintf("'%s' appears to be a production database", name), opts.noColor))
		}
		ok, err := confirm(fmt.Sprintf("Really %s database '%s'?", verb, name))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprint(cmd.OutOrStdout(), ui.Info("Cancelled", opts.noColor))
			return nil
		}
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	var changed bool
	switch {
	case dialect == store.DialectSQLite && action == dbCreate:
		changed, err = createSQLite(ctx, cfg, name)
	case dialect == store.DialectSQLite:
		changed, err = dropSQLite(name)
	default:
		changed, err = changePostgres(ctx, cfg.Database.URL, action)
	}
	if err != nil {
		return err
	}

	switch {
	case action == dbCreate && changed:
		ui.WriteSuccess(out, fmt.Sprintf("Database '%s' created", name), opts.noColor)
	case action == dbCreate:
		fmt.Fprint(out, ui.Info(fmt.Sprintf("Database '%s' already exists (no action needed)", name), opts.noColor))
	case changed:
		ui.WriteSuccess(out, fmt.Sprintf("Database '%s' dropped", name), opts.noColor)
	default:
		fmt.Fprint(out, ui.Info(fmt.Sprintf("Database '%s' does not exist (no action needed)", name), opts.noColor))
	}
	return nil
}

// sqlitePath strips the "file:" scheme and query parameters from a
// SQLite DSN
func sqlitePath(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(dsn, "?"); i >= 0 {
		dsn = dsn[:i]
	}
	return dsn
}

func createSQLite(ctx context.Context, cfg *config.Config, path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
	}
	db, err := store.Open(ctx, store.Config{Driver: cfg.Database.Driver, URL: cfg.Database.URL})
	if err != nil {
		return false, err
	}
	return true, db.Close()
}

func dropSQLite(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		_ = os.Remove(path + suffix)
	}
	return true, nil
}

// changePostgres creates or drops the database through the maintenance
// database and reports whether anything changed
func changePostgres(ctx context.Context, databaseURL string, action dbAction) (bool, error) {
	dbName, user, maintenanceURL, err := parseDBURL(databaseURL)
	if err != nil {
		return false, err
	}

	conn, err := pgx.Connect(ctx, maintenanceURL)
	if err != nil {
		fallbackURL := strings.Replace(maintenanceURL, "/postgres", "/template1", 1)
		conn, err = pgx.Connect(ctx, fallbackURL)
		if err != nil {
			return false, fmt.Errorf("failed to connect to PostgreSQL: %w", stripCredentials(err))
		}
	}
	defer conn.Close(ctx)

	exists, err := databaseExists(ctx, conn, dbName)
	if err != nil {
		return false, err
	}

	sanitized := pgx.Identifier{dbName}.Sanitize()
	if action == dbCreate {
		if exists {
			return false, nil
		}
		if _, err := conn.Exec(ctx, "CREATE DATABASE "+sanitized); err != nil {
			msg := strings.ToLower(err.Error())
			if strings.Contains(msg, "permission denied") || strings.Contains(msg, "must have createdb privilege") {
				return false, fmt.Errorf("permission denied: run ALTER USER %s CREATEDB as a superuser", user)
			}
			return false, fmt.Errorf("create database failed: %w", err)
		}
		return true, nil
	}

	if !exists {
		return false, nil
	}
	if _, err := conn.Exec(ctx, "DROP DATABASE "+sanitized); err != nil {
		return false, fmt.Errorf("drop database failed: %w", err)
	}
	return true, nil
}

// parseDBURL extracts the database name and user from a Postgres URL and
// builds the URL of the maintenance database on the same server
func parseDBURL(databaseURL string) (dbName, user, maintenanceURL string, err error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to parse URL: %w", stripCredentials(err))
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", "", fmt.Errorf("unsupported scheme '%s' (expected 'postgres' or 'postgresql')", u.Scheme)
	}

	dbName = strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", "", "", fmt.Errorf("database name not specified in URL")
	}

	user = u.User.Username()
	if user == "" {
		user = "postgres"
	}

	maintenance := *u
	maintenance.Path = "/postgres"
	maintenance.RawPath = ""
	return dbName, user, maintenance.String(), nil
}

// databaseExists checks if a database exists
func databaseExists(ctx context.Context, conn *pgx.Conn, dbName string) (bool, error) {
	var exists bool
	err := conn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query database existence: %w", err)
	}
	return exists, nil
}

// isProductionDatabase checks if a database name suggests it's a production database
func isProductionDatabase(dbName string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(dbName)), "prod")
}

var credentials = regexp.MustCompile(`(://[^:/@\s]+):\S+@`)

// stripCredentials masks passwords in connection strings inside err
func stripCredentials(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(credentials.ReplaceAllString(err.Error(), "$1:****@"))
}

// Package store persists users, apps, versions, feedback and blob metadata.
//
// Queries are written with "?" placeholders and rebound for the driver, so
// the same repositories run against PostgreSQL (pgx or lib/pq) and SQLite.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/portfolio-egg/egg/internal/orm/transaction"
)

// SQL dialects
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// ErrUnknownDriver is returned for database drivers the store cannot use
var ErrUnknownDriver = errors.New("unknown database driver")

// Config holds connection settings
type Config struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DialectOf returns the SQL dialect spoken through driver
func DialectOf(driver string) (string, error) {
	switch driver {
	case "pgx", "postgres":
		return DialectPostgres, nil
	case "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Open connects to the database and verifies the connection
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	dialect, err := DialectOf(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.URL
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
		if cfg.MaxOpenConns == 0 {
			cfg.MaxOpenConns = 1
		}
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// sqliteDSN turns on foreign keys (needed for cascades) and a busy timeout
func sqliteDSN(dsn string) string {
	params := []string{"_foreign_keys=on", "_busy_timeout=5000"}
	for _, p := range params {
		key := p[:strings.Index(p, "=")]
		if strings.Contains(dsn, key+"=") {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + p
	}
	return dsn
}

// Store groups the repositories over one database
type Store struct {
	db      *sqlx.DB
	dialect string
	tx      *transaction.Manager
	now     func() time.Time

	Users     *UserRepository
	Apps      *AppRepository
	Versions  *VersionRepository
	Feedbacks *FeedbackRepository
	Blobs     *BlobRepository
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store over db
func New(db *sqlx.DB, opts ...Option) (*Store, error) {
	dialect, err := DialectOf(db.DriverName())
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		tx:      transaction.NewManager(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bind(db)
	return s, nil
}

func (s *Store) bind(q sqlx.ExtContext) {
	s.Users = &UserRepository{db: q, now: s.now}
	s.Apps = &AppRepository{db: q, now: s.now, dialect: s.dialect}
	s.Versions = &VersionRepository{db: q, now: s.now}
	s.Feedbacks = &FeedbackRepository{db: q, now: s.now}
	s.Blobs = &BlobRepository{db: q, now: s.now}
}

// DB returns the underlying connection pool
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns "postgres" or "sqlite"
func (s *Store) Dialect() string {
	return s.dialect
}

// Now returns the store clock's current time
func (s *Store) Now() time.Time {
	return s.now()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn with repositories bound to one transaction, retrying on
// serialization conflicts
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.tx.WithRetry(ctx, func(tx *sqlx.Tx) error {
		scoped := &Store{db: s.db, dialect: s.dialect, tx: s.tx, now: s.now}
		scoped.bind(tx)
		return fn(scoped)
	})
}

// in expands a slice argument and rebinds for the driver
func in(q sqlx.ExtContext, query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return q.Rebind(query), args, nil
}

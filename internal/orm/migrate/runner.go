package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/orm/transaction"
)

// ErrNothingToRollback is returned by MigrateDown when no migration is applied
var ErrNothingToRollback = errors.New("no migrations to rollback")

// Runner executes migrations, each in its own transaction
type Runner struct {
	tracker *Tracker
	txm     *transaction.Manager
	logger  *zap.Logger
}

// NewRunner creates a new migration runner
func NewRunner(db *sqlx.DB, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		tracker: NewTracker(db),
		txm:     transaction.NewManager(db),
		logger:  logger,
	}
}

// Initialize sets up the migration tracking table
func (r *Runner) Initialize(ctx context.Context) error {
	return r.tracker.Initialize(ctx)
}

// MigrateUp applies all pending migrations and returns how many ran
func (r *Runner) MigrateUp(ctx context.Context, migrations []*Migration) (int, error) {
	if err := r.Initialize(ctx); err != nil {
		return 0, err
	}

	pending, err := r.tracker.GetPending(ctx, migrations)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending migrations: %w", err)
	}
	if len(pending) == 0 {
		r.logger.Info("no pending migrations")
		return 0, nil
	}

	for i, m := range pending {
		start := time.Now()
		err := r.txm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return fmt.Errorf("failed to execute migration SQL: %w", err)
			}
			return r.tracker.Record(ctx, tx, m)
		})
		if err != nil {
			return i, fmt.Errorf("migration %d_%s failed: %w", m.Version, m.Name, err)
		}
		r.logger.Info("applied migration",
			zap.Int64("version", m.Version), zap.String("name", m.Name), zap.Duration("took", time.Since(start)))
	}
	return len(pending), nil
}

// MigrateDown rolls back the last steps applied migrations, newest first.
// The down SQL stored at apply time is used.
func (r *Runner) MigrateDown(ctx context.Context, steps int) (int, error) {
	if steps < 1 {
		steps = 1
	}
	if err := r.Initialize(ctx); err != nil {
		return 0, err
	}

	for i := 0; i < steps; i++ {
		last, err := r.tracker.GetLast(ctx)
		if err != nil {
			return i, err
		}
		if last == nil {
			if i == 0 {
				return 0, ErrNothingToRollback
			}
			return i, nil
		}
		if last.Down == "" {
			return i, fmt.Errorf("migration %d_%s has no down migration", last.Version, last.Name)
		}

		err = r.txm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, last.Down); err != nil {
				return fmt.Errorf("failed to execute rollback SQL: %w", err)
			}
			return r.tracker.Remove(ctx, tx, last.Version)
		})
		if err != nil {
			return i, fmt.Errorf("rollback of %d_%s failed: %w", last.Version, last.Name, err)
		}
		r.logger.Info("rolled back migration", zap.Int64("version", last.Version), zap.String("name", last.Name))
	}
	return steps, nil
}

// Status returns the current migration status
func (r *Runner) Status(ctx context.Context, all []*Migration) (*MigrationStatus, error) {
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}

	applied, err := r.tracker.GetApplied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	pending, err := r.tracker.GetPending(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	var lastApplied *Migration
	if len(applied) > 0 {
		lastApplied = applied[len(applied)-1]
	}

	return &MigrationStatus{
		Total:       len(all),
		Applied:     applied,
		Pending:     pending,
		LastApplied: lastApplied,
	}, nil
}

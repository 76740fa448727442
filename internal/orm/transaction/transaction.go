// Package transaction runs functions inside database transactions with
// rollback on error or panic and retry on serialization conflicts.
package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrDeadlock is returned when retries are exhausted on conflicts
var ErrDeadlock = errors.New("deadlock detected")

// Manager manages database transactions
type Manager struct {
	db *sqlx.DB
}

// NewManager creates a new transaction manager
func NewManager(db *sqlx.DB) *Manager {
	return &Manager{db: db}
}

// WithTransaction executes fn within a transaction. It commits when fn
// returns nil and rolls back on error or panic.
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

package transaction

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewManager(sqlx.NewDb(db, "pgx")), mock
}

func TestWithTransaction_Commit(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE apps").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := m.WithTransaction(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec("UPDATE apps SET title = 'egg'")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	m, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := m.WithTransaction(context.Background(), func(tx *sqlx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = m.WithTransaction(context.Background(), func(tx *sqlx.Tx) error { panic("kaboom") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_BeginFails(t *testing.T) {
	m, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	err := m.WithTransaction(context.Background(), func(tx *sqlx.Tx) error { return nil })
	assert.ErrorContains(t, err, "failed to begin transaction")
}

func TestWithRetry(t *testing.T) {
	m, mock := newMock(t)
	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := m.WithRetryConfig(context.Background(), RetryConfig{MaxRetries: 3, BaseBackoff: time.Millisecond}, func(tx *sqlx.Tx) error {
		calls++
		if calls == 1 {
			return deadlock
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_Exhausted(t *testing.T) {
	m, mock := newMock(t)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	err := m.WithRetryConfig(context.Background(), RetryConfig{MaxRetries: 2, BaseBackoff: time.Millisecond}, func(tx *sqlx.Tx) error {
		return &pgconn.PgError{Code: "40001"}
	})
	assert.ErrorIs(t, err, ErrDeadlock)
}

func TestWithRetry_NonRetryable(t *testing.T) {
	m, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := m.WithRetry(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		return errors.New("constraint")
	})
	assert.EqualError(t, err, "constraint")
	assert.Equal(t, 1, calls)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pgx serialization", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, false},
		{"pq deadlock", &pq.Error{Code: "40P01"}, true},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"plain", errors.New("deadlock detected"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

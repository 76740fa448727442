package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-egg/egg/internal/models"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := New(sqlx.NewDb(mockDB, "pgx"), WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return s, mock
}

func TestConvertError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), ErrNotFound},
		{"pgx unique", &pgconn.PgError{Code: "23505", Detail: "Key (email)"}, ErrUniqueViolation},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, ErrForeignKeyViolation},
		{"pgx check", &pgconn.PgError{Code: "23514"}, ErrCheckViolation},
		{"pgx not null", &pgconn.PgError{Code: "23502"}, ErrNotNullViolation},
		{"pq unique", &pq.Error{Code: "23505"}, ErrUniqueViolation},
		{"pq foreign key", &pq.Error{Code: "23503"}, ErrForeignKeyViolation},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrUniqueViolation},
		{"sqlite foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, ErrForeignKeyViolation},
		{"sqlite check", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}, ErrCheckViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ConvertError(tt.err), tt.want)
		})
	}

	assert.NoError(t, ConvertError(nil))

	other := errors.New("connection reset")
	assert.Equal(t, other, ConvertError(other))
	assert.Equal(t, error(&pgconn.PgError{Code: "40P01"}), ConvertError(&pgconn.PgError{Code: "40P01"}))
}

func TestApps_ListPostgresQuery(t *testing.T) {
	s, mock := setupMockStore(t)

	cols := []string{"id", "user_id", "title", "description", "category", "github_url", "deploy_url",
		"thumbnail_blob_id", "created_at", "updated_at", "feedback_count", "average_score", "latest_version"}
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`(apps.title ILIKE $2 ESCAPE '\' OR apps.description ILIKE $3 ESCAPE '\')`) +
		".*" + regexp.QuoteMeta("ORDER BY average_score DESC NULLS LAST")).
		WithArgs("game", `%50\%%`, `%50\%%`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 7, "Quiz", "fun", "game", nil, nil, nil, now, now, 3, 4.333, "2.0.0"))

	apps, err := s.Apps.List(context.Background(), AppFilter{Category: "game", Query: "50%", Sort: SortPopular})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "Quiz", apps[0].Title)
	assert.Equal(t, int64(3), apps[0].FeedbackCount)
	assert.Equal(t, 4.3, apps[0].OverallScore())
	assert.Equal(t, "2.0.0", apps[0].Version())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsers_CreateMapsUniqueViolation(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (email)=(dog@user.com) already exists."})

	err := s.Users.Create(context.Background(), &models.User{Email: "dog@user.com", Username: "dog"})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateApp_RollsBackOnError(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO apps")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app_versions")).
		WithArgs(int64(10), "1.0.0", "2024-01-01", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	app := &models.App{UserID: 1, Title: "Egg", Category: "game"}
	v := &models.AppVersion{VersionNumber: "1.0.0", ReleaseDate: models.NewDate(s.Now())}
	err := s.CreateApp(context.Background(), app, v)
	assert.ErrorIs(t, err, ErrUniqueViolation)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveFeedback_RetriesAfterLostRace(t *testing.T) {
	s, mock := setupMockStore(t)
	cols := []string{"id", "app_version_id", "user_id", "comment", "design_score", "usability_score",
		"creativity_score", "usefulness_score", "overall_score", "created_at", "updated_at"}
	now := time.Now()

	// first pass: nothing found, insert conflicts
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM feedbacks")).WithArgs(int64(5), int64(9)).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO feedbacks")).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	// second pass: the concurrent row is updated
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM feedbacks")).WithArgs(int64(5), int64(9)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, 5, 9, nil, 1, 1, 1, 1, 1, now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE feedbacks")).
		WithArgs(sqlmock.AnyArg(), 5, 5, 5, 5, 5, sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	in := models.FeedbackInput{
		DesignScore:     intPtr(5),
		UsabilityScore:  intPtr(5),
		CreativityScore: intPtr(5),
		UsefulnessScore: intPtr(5),
		OverallScore:    intPtr(5),
	}
	fb, created, err := s.SaveFeedback(context.Background(), 5, 9, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(3), fb.ID)
	assert.Equal(t, int64(9), fb.UserID)
	assert.Equal(t, 5, fb.OverallScore)
	assert.Equal(t, 5, fb.DesignScore)

	require.NoError(t, mock.ExpectationsWereMet())
}

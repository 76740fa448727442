package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/orm/migrate"
	"github.com/portfolio-egg/egg/internal/store"
	"github.com/portfolio-egg/egg/internal/web/auth"
)

func TestDefault(t *testing.T) {
	data, err := Default()
	require.NoError(t, err)

	require.Len(t, data.Users, 10)
	assert.Equal(t, "dog", data.Users[0].Username)
	assert.Equal(t, "dog@user.com", data.Users[0].Email())
	assert.Equal(t, "doguser", data.Users[0].Password())
	assert.Equal(t, "elephant", data.Users[9].Username)
}

func TestParseRejectsNamelessUsers(t *testing.T) {
	_, err := Parse([]byte("users:\n  - name: nobody\n"))
	assert.EqualError(t, err, "seed user 0 has no username")
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.Config{Driver: "sqlite3", URL: filepath.Join(t.TempDir(), "seed.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migs, err := store.Migrations(store.DialectSQLite)
	require.NoError(t, err)
	_, err = migrate.NewRunner(db, zap.NewNop()).MigrateUp(ctx, migs)
	require.NoError(t, err)
	s, err := store.New(db)
	require.NoError(t, err)

	data := &Data{Users: []User{{Username: "dog", Name: "イヌ", Bio: "bio"}, {Username: "cat"}}}

	result, err := Run(ctx, s, data, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 2}, result)

	result, err = Run(ctx, s, data, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 2}, result)

	dog, err := s.Users.FindByEmail(ctx, "dog@user.com")
	require.NoError(t, err)
	assert.Equal(t, "dog@user.com", dog.UID)
	assert.Equal(t, "イヌ", *dog.Name)
	assert.True(t, auth.CheckPassword("doguser", dog.PasswordHash))

	cat, err := s.Users.FindByEmail(ctx, "cat@user.com")
	require.NoError(t, err)
	assert.Nil(t, cat.Name)
}

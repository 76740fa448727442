//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/orm/migrate"
)

func setupPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "egg",
				"POSTGRES_PASSWORD": "egg",
				"POSTGRES_DB":       "egg_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://egg:egg@%s:%s/egg_test?sslmode=disable", host, port.Port())
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	url := setupPostgres(t, ctx)

	for _, driver := range []string{"pgx", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			db, err := Open(ctx, Config{Driver: driver, URL: url})
			require.NoError(t, err)
			defer db.Close()

			migs, err := Migrations(DialectPostgres)
			require.NoError(t, err)
			runner := migrate.NewRunner(db, zap.NewNop())
			_, err = runner.MigrateUp(ctx, migs)
			require.NoError(t, err)
			defer func() {
				_, err := runner.MigrateDown(ctx, len(migs))
				assert.NoError(t, err)
			}()

			s, err := New(db)
			require.NoError(t, err)

			owner := &models.User{Email: driver + "@user.com", Username: driver}
			require.NoError(t, s.Users.Create(ctx, owner))

			app := &models.App{UserID: owner.ID, Title: "Egg Timer", Category: "tool"}
			v := &models.AppVersion{VersionNumber: "1.0.0", ReleaseDate: models.NewDate(time.Now())}
			require.NoError(t, s.CreateApp(ctx, app, v))

			score := 4
			in := models.FeedbackInput{
				DesignScore: &score, UsabilityScore: &score, CreativityScore: &score,
				UsefulnessScore: &score, OverallScore: &score,
			}
			_, created, err := s.SaveFeedback(ctx, v.ID, owner.ID, in)
			require.NoError(t, err)
			assert.True(t, created)

			apps, err := s.Apps.List(ctx, AppFilter{Query: "EGG", Sort: SortPopular})
			require.NoError(t, err)
			require.Len(t, apps, 1)
			assert.Equal(t, 4.0, apps[0].OverallScore())
			assert.Equal(t, "1.0.0", apps[0].Version())

			err = s.Versions.Create(ctx, &models.AppVersion{AppID: app.ID, VersionNumber: "1.0.0", ReleaseDate: v.ReleaseDate})
			assert.ErrorIs(t, err, ErrUniqueViolation)
		})
	}
}

package store

import (
	"context"
	"fmt"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/orm/migrate"
	"github.com/portfolio-egg/egg/migrations"
)

// Migrations loads the embedded schema migrations for a dialect
func Migrations(dialect string) ([]*migrate.Migration, error) {
	fsys, err := migrations.Dialect(dialect)
	if err != nil {
		return nil, err
	}
	return migrate.Load(fsys)
}

// CreateApp inserts app and its first version in one transaction
func (s *Store) CreateApp(ctx context.Context, app *models.App, initial *models.AppVersion) error {
	return s.InTx(ctx, func(tx *Store) error {
		if err := tx.Apps.Create(ctx, app); err != nil {
			return err
		}
		initial.AppID = app.ID
		return tx.Versions.Create(ctx, initial)
	})
}

// ReleaseVersion saves app when it is non-nil and inserts v for it, all or
// nothing
func (s *Store) ReleaseVersion(ctx context.Context, app *models.App, v *models.AppVersion) error {
	return s.InTx(ctx, func(tx *Store) error {
		if app != nil {
			if err := tx.Apps.Update(ctx, app); err != nil {
				return err
			}
		}
		return tx.Versions.Create(ctx, v)
	})
}

// SaveFeedback creates userID's feedback on a version or updates the one
// already there. It reports whether a new row was created. Invalid input
// fails with *validation.Errors.
func (s *Store) SaveFeedback(ctx context.Context, versionID, userID int64, in models.FeedbackInput) (*models.Feedback, bool, error) {
	var (
		saved   *models.Feedback
		created bool
	)

	save := func(tx *Store) error {
		existing, err := tx.Feedbacks.FindByVersionAndUser(ctx, versionID, userID)
		switch {
		case err == nil:
			if errs := in.Validate(false); errs.HasErrors() {
				return errs
			}
			in.Apply(existing)
			saved, created = existing, false
			return tx.Feedbacks.Update(ctx, existing)
		case IsNotFound(err):
			if errs := in.Validate(true); errs.HasErrors() {
				return errs
			}
			fb := &models.Feedback{AppVersionID: versionID, UserID: userID}
			in.Apply(fb)
			saved, created = fb, true
			return tx.Feedbacks.Create(ctx, fb)
		default:
			return err
		}
	}

	err := s.InTx(ctx, save)
	if IsUniqueViolation(err) && created {
		// Lost a race with a concurrent create; the second pass updates
		err = s.InTx(ctx, save)
	}
	if err != nil {
		return nil, false, err
	}
	return saved, created, nil
}

// FindOrCreateUser returns the user registered through provider with uid,
// creating u when there is none
func (s *Store) FindOrCreateUser(ctx context.Context, u *models.User) (*models.User, bool, error) {
	existing, err := s.Users.FindByProvider(ctx, u.Provider, u.UID)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}

	if err := s.Users.Create(ctx, u); err != nil {
		if !IsUniqueViolation(err) {
			return nil, false, err
		}
		existing, findErr := s.Users.FindByProvider(ctx, u.Provider, u.UID)
		if findErr != nil {
			return nil, false, fmt.Errorf("%w (lookup after conflict: %v)", err, findErr)
		}
		return existing, false, nil
	}
	return u, true, nil
}

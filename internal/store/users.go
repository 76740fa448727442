package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/portfolio-egg/egg/internal/models"
)

const userColumns = `users.id, users.email, users.password_hash, users.provider, users.uid,
	users.username, users.name, users.bio, users.github_url, users.twitter_url,
	users.profile_image_blob_id, users.created_at, users.updated_at`

// UserRepository reads and writes users
type UserRepository struct {
	db  sqlx.ExtContext
	now func() time.Time
}

// Create inserts u and sets its id and timestamps
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	now := r.now()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = models.NormalizeEmail(u.Email)
	if u.Provider == "" {
		u.Provider = models.ProviderEmail
	}
	if u.UID == "" {
		u.UID = u.Email
	}

	query := r.db.Rebind(`
		INSERT INTO users (email, password_hash, provider, uid, username, name, bio,
			github_url, twitter_url, profile_image_blob_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := sqlx.GetContext(ctx, r.db, &u.ID, query,
		u.Email, u.PasswordHash, u.Provider, u.UID, u.Username, u.Name, u.Bio,
		u.GithubURL, u.TwitterURL, u.ProfileImageBlobID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", ConvertError(err))
	}
	return nil
}

// Find returns the user with id
func (r *UserRepository) Find(ctx context.Context, id int64) (*models.User, error) {
	return r.findBy(ctx, "users.id = ?", id)
}

// FindByEmail returns the user with email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(ctx, "users.email = ?", models.NormalizeEmail(email))
}

// FindByProvider returns the user registered through provider with uid
func (r *UserRepository) FindByProvider(ctx context.Context, provider, uid string) (*models.User, error) {
	return r.findBy(ctx, "users.provider = ? AND users.uid = ?", provider, uid)
}

func (r *UserRepository) findBy(ctx context.Context, where string, args ...interface{}) (*models.User, error) {
	var u models.User
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + where + " LIMIT 1")
	if err := sqlx.GetContext(ctx, r.db, &u, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find user: %w", ConvertError(err))
	}
	return &u, nil
}

// FindMany returns the users with the given ids keyed by id. Unknown ids
// are left out.
func (r *UserRepository) FindMany(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	result := make(map[int64]*models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := in(r.db, "SELECT "+userColumns+" FROM users WHERE users.id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var users []models.User
	if err := sqlx.SelectContext(ctx, r.db, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", ConvertError(err))
	}
	for i := range users {
		result[users[i].ID] = &users[i]
	}
	return result, nil
}

// Update saves the profile attributes of u
func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = r.now()

	query := r.db.Rebind(`
		UPDATE users
		SET username = ?, name = ?, bio = ?, github_url = ?, twitter_url = ?,
			profile_image_blob_id = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		u.Username, u.Name, u.Bio, u.GithubURL, u.TwitterURL,
		u.ProfileImageBlobID, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", ConvertError(err))
	}
	return requireRow(res)
}

// Count returns the number of users
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, r.db, &n, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", ConvertError(err))
	}
	return n, nil
}

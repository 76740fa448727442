// Package models defines the persisted records and the validation rules
// applied before they are written.
package models

import (
	"database/sql"
	"math"
	"strings"
	"time"
)

// Sign-in providers
const (
	ProviderEmail  = "email"
	ProviderGitHub = "github"
)

// DefaultVersionNumber is reported for apps without any version
const DefaultVersionNumber = "1.0.0"

// NormalizeEmail trims and lowercases an address. Emails are stored and
// looked up in this form, so uniqueness ignores case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User is an account. Email users have uid == email.
type User struct {
	ID                 int64     `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	Provider           string    `db:"provider" json:"provider"`
	UID                string    `db:"uid" json:"uid"`
	Username           string    `db:"username" json:"username"`
	Name               *string   `db:"name" json:"name"`
	Bio                *string   `db:"bio" json:"bio"`
	GithubURL          *string   `db:"github_url" json:"github_url"`
	TwitterURL         *string   `db:"twitter_url" json:"twitter_url"`
	ProfileImageBlobID *int64    `db:"profile_image_blob_id" json:"-"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Blob is the metadata of a stored file
type Blob struct {
	ID          int64     `db:"id" json:"id"`
	Key         string    `db:"key" json:"key"`
	Filename    string    `db:"filename" json:"filename"`
	ContentType string    `db:"content_type" json:"content_type"`
	ByteSize    int64     `db:"byte_size" json:"byte_size"`
	Checksum    string    `db:"checksum" json:"checksum"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// App is a portfolio entry owned by a user
type App struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Title           string    `db:"title" json:"title"`
	Description     *string   `db:"description" json:"description"`
	Category        string    `db:"category" json:"category"`
	GithubURL       *string   `db:"github_url" json:"github_url"`
	DeployURL       *string   `db:"deploy_url" json:"deploy_url"`
	ThumbnailBlobID *int64    `db:"thumbnail_blob_id" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// AppVersion is a release of an app
type AppVersion struct {
	ID            int64     `db:"id" json:"id"`
	AppID         int64     `db:"app_id" json:"app_id"`
	VersionNumber string    `db:"version_number" json:"version_number"`
	ReleaseDate   Date      `db:"release_date" json:"release_date"`
	Changelog     *string   `db:"changelog" json:"changelog"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Feedback is one user's rating of an app version
type Feedback struct {
	ID              int64     `db:"id" json:"id"`
	AppVersionID    int64     `db:"app_version_id" json:"app_version_id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Comment         *string   `db:"comment" json:"comment"`
	DesignScore     int       `db:"design_score" json:"design_score"`
	UsabilityScore  int       `db:"usability_score" json:"usability_score"`
	CreativityScore int       `db:"creativity_score" json:"creativity_score"`
	UsefulnessScore int       `db:"usefulness_score" json:"usefulness_score"`
	OverallScore    int       `db:"overall_score" json:"overall_score"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// AppWithStats is an app with the aggregates shown in listings
type AppWithStats struct {
	App
	FeedbackCount int64           `db:"feedback_count"`
	AverageScore  sql.NullFloat64 `db:"average_score"`
	LatestVersion sql.NullString  `db:"latest_version"`
}

// OverallScore is the average overall score rounded to one decimal,
// or 0 without feedback
func (a AppWithStats) OverallScore() float64 {
	if !a.AverageScore.Valid {
		return 0
	}
	return math.Round(a.AverageScore.Float64*10) / 10
}

// Version is the latest version number, or DefaultVersionNumber
func (a AppWithStats) Version() string {
	if a.LatestVersion.Valid && a.LatestVersion.String != "" {
		return a.LatestVersion.String
	}
	return DefaultVersionNumber
}

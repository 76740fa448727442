// Package seed loads the demo accounts into a fresh database.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/store"
	"github.com/portfolio-egg/egg/internal/web/auth"
)

//go:embed seeds.yaml
var seedsYAML []byte

const (
	emailDomain = "user.com"
	profileURL  = "https://example.com"
)

// User is one demo account
type User struct {
	Username string `yaml:"username"`
	Name     string `yaml:"name"`
	Bio      string `yaml:"bio"`
}

// Email is the sign-in address of the account
func (u User) Email() string {
	return u.Username + "@" + emailDomain
}

// Password is the demo password of the account
func (u User) Password() string {
	return u.Username + "user"
}

// Data is the content of a seed file
type Data struct {
	Users []User `yaml:"users"`
}

// Default returns the embedded demo data
func Default() (*Data, error) {
	return Parse(seedsYAML)
}

// Parse decodes seed YAML
func Parse(raw []byte) (*Data, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	for i, u := range data.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("seed user %d has no username", i)
		}
	}
	return &data, nil
}

// Result counts what a run did
type Result struct {
	Created int
	Skipped int
}

// Run creates every user in data that does not exist yet. Running it
// twice leaves the database unchanged.
func Run(ctx context.Context, s *store.Store, data *Data, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var result Result
	for _, u := range data.Users {
		_, err := s.Users.FindByEmail(ctx, u.Email())
		if err == nil {
			result.Skipped++
			continue
		}
		if !store.IsNotFound(err) {
			return result, err
		}

		hash, err := auth.HashPassword(u.Password())
		if err != nil {
			return result, err
		}
		user := &models.User{
			Email:        u.Email(),
			PasswordHash: hash,
			Provider:     models.ProviderEmail,
			Username:     u.Username,
			Name:         optional(u.Name),
			Bio:          optional(u.Bio),
			GithubURL:    optional(profileURL),
			TwitterURL:   optional(profileURL),
		}
		if err := s.Users.Create(ctx, user); err != nil {
			return result, fmt.Errorf("failed to seed %s: %w", u.Username, err)
		}
		logger.Debug("seeded user", zap.String("username", u.Username), zap.Int64("id", user.ID))
		result.Created++
	}
	return result, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

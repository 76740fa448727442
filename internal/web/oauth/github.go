// Package oauth implements GitHub sign-in: the authorization redirect,
// one-time state values and the profile lookup after the code exchange.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/portfolio-egg/egg/internal/web/cache"
)

const (
	// ProviderGitHub names the provider in URLs and user records
	ProviderGitHub = "github"

	defaultAPIURL = "https://api.github.com"
	stateTTL      = 10 * time.Minute
	statePrefix   = "oauth_state:"
)

var (
	// ErrInvalidState is returned for unknown, expired or reused states
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrNotConfigured is returned when no client credentials are set
	ErrNotConfigured = errors.New("github sign-in is not configured")
)

// Profile is the GitHub account of a signing-in user
type Profile struct {
	UID       string
	Login     string
	Name      string
	Email     string
	HTMLURL   string
	AvatarURL string
}

// Username is the login, or the display name when there is no login
func (p Profile) Username() string {
	if p.Login != "" {
		return p.Login
	}
	return p.Name
}

// Config holds GitHub OAuth application settings
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint and APIURL default to github.com
	Endpoint oauth2.Endpoint
	APIURL   string
}

// GitHub runs the GitHub OAuth flow
type GitHub struct {
	oauth  *oauth2.Config
	apiURL string
	states cache.Cache
	client *http.Client
}

// NewGitHub creates the provider. states keeps issued state values until
// the callback consumes them.
func NewGitHub(cfg Config, states cache.Cache) *GitHub {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = github.Endpoint
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &GitHub{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"user:email"},
		},
		apiURL: apiURL,
		states: states,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether client credentials are present
func (g *GitHub) Configured() bool {
	return g.oauth.ClientID != "" && g.oauth.ClientSecret != ""
}

// AuthCodeURL issues a state and returns the GitHub authorization URL
func (g *GitHub) AuthCodeURL(ctx context.Context) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(buf)

	if err := g.states.Set(ctx, statePrefix+state, []byte("1"), stateTTL); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	return g.oauth.AuthCodeURL(state), nil
}

// Authenticate consumes state, exchanges code and fetches the profile
func (g *GitHub) Authenticate(ctx context.Context, state, code string) (*Profile, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	if state == "" {
		return nil, ErrInvalidState
	}
	if _, err := g.states.Take(ctx, statePrefix+state); err != nil {
		if cache.IsCacheMiss(err) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to check state: %w", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return g.fetchProfile(ctx, g.oauth.Client(ctx, token))
}

func (g *GitHub) fetchProfile(ctx context.Context, client *http.Client) (*Profile, error) {
	user, err := g.get(ctx, client, "/user")
	if err != nil {
		return nil, err
	}

	id := user.Get("id")
	if !id.Exists() {
		return nil, errors.New("github user has no id")
	}

	profile := &Profile{
		UID:       id.String(),
		Login:     user.Get("login").String(),
		Name:      user.Get("name").String(),
		Email:     user.Get("email").String(),
		HTMLURL:   user.Get("html_url").String(),
		AvatarURL: user.Get("avatar_url").String(),
	}

	if profile.Email == "" {
		emails, err := g.get(ctx, client, "/user/emails")
		if err != nil {
			return nil, err
		}
		profile.Email = pickEmail(emails)
	}
	if profile.Email == "" {
		return nil, errors.New("github account has no verified email")
	}
	return profile, nil
}

// pickEmail prefers the primary verified address, then any verified one
func pickEmail(emails gjson.Result) string {
	var fallback string
	for _, e := range emails.Array() {
		if !e.Get("verified").Bool() {
			continue
		}
		if e.Get("primary").Bool() {
			return e.Get("email").String()
		}
		if fallback == "" {
			fallback = e.Get("email").String()
		}
	}
	return fallback
}

func (g *GitHub) get(ctx context.Context, client *http.Client, path string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+path, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("github request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read github response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("github %s returned %d: %s", path, resp.StatusCode, gjson.GetBytes(body, "message").String())
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("github %s returned invalid JSON", path)
	}
	return gjson.ParseBytes(body), nil
}

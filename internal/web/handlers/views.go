package handlers

import (
	"context"

	"github.com/portfolio-egg/egg/internal/models"
)

// ownerJSON is the app owner shown on app listings and pages
type ownerJSON struct {
	ID              int64   `json:"id"`
	Username        string  `json:"username"`
	Bio             *string `json:"bio"`
	GithubURL       *string `json:"github_url"`
	TwitterURL      *string `json:"twitter_url"`
	ProfileImageURL *string `json:"profile_image_url"`
}

// reviewerJSON is the author of a feedback on an app page
type reviewerJSON struct {
	ID              int64   `json:"id"`
	Username        string  `json:"username"`
	ProfileImageURL *string `json:"profile_image_url"`
}

// authorJSON is the author of a feedback in feedback listings
type authorJSON struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type profileJSON struct {
	ID              int64   `json:"id"`
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	Bio             *string `json:"bio"`
	GithubURL       *string `json:"github_url"`
	TwitterURL      *string `json:"twitter_url"`
	ProfileImageURL *string `json:"profile_image_url"`
}

// accountJSON is the signed-in user returned by the auth endpoints
type accountJSON struct {
	*models.User
	ProfileImageURL *string `json:"profile_image_url"`
}

type appJSON struct {
	*models.App
	ThumbnailURL *string    `json:"thumbnail_url"`
	User         *ownerJSON `json:"user,omitempty"`
}

type appListItemJSON struct {
	appJSON
	Version       string  `json:"version"`
	FeedbackCount int64   `json:"feedback_count"`
	OverallScore  float64 `json:"overall_score"`
}

type appDetailJSON struct {
	appJSON
	AppVersions []versionDetailJSON `json:"app_versions"`
	IsOwner     bool                `json:"is_owner"`
}

type versionDetailJSON struct {
	*models.AppVersion
	Feedbacks []reviewedFeedbackJSON `json:"feedbacks"`
}

type reviewedFeedbackJSON struct {
	*models.Feedback
	User *reviewerJSON `json:"user"`
}

type versionWithFeedbackJSON struct {
	*models.AppVersion
	Feedbacks []feedbackJSON `json:"feedbacks"`
}

type feedbackJSON struct {
	*models.Feedback
	User *authorJSON `json:"user"`
}

// presenter holds the users and attachment URLs needed to render a response
type presenter struct {
	users map[int64]*models.User
	urls  map[int64]string
}

// present loads the users with userIDs and the URLs of their profile
// images and of blobIDs
func (h *Handlers) present(ctx context.Context, userIDs []int64, blobIDs ...*int64) (*presenter, error) {
	users, err := h.store.Users.FindMany(ctx, uniqueIDs(userIDs))
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		blobIDs = append(blobIDs, u.ProfileImageBlobID)
	}
	urls, err := h.attachments.URLs(ctx, blobIDs...)
	if err != nil {
		return nil, err
	}
	return &presenter{users: users, urls: urls}, nil
}

func (p *presenter) url(id *int64) *string {
	if id == nil {
		return nil
	}
	u, ok := p.urls[*id]
	if !ok {
		return nil
	}
	return &u
}

func (p *presenter) owner(id int64) *ownerJSON {
	u, ok := p.users[id]
	if !ok {
		return nil
	}
	return &ownerJSON{
		ID:              u.ID,
		Username:        u.Username,
		Bio:             u.Bio,
		GithubURL:       u.GithubURL,
		TwitterURL:      u.TwitterURL,
		ProfileImageURL: p.url(u.ProfileImageBlobID),
	}
}

func (p *presenter) reviewer(id int64) *reviewerJSON {
	u, ok := p.users[id]
	if !ok {
		return nil
	}
	return &reviewerJSON{ID: u.ID, Username: u.Username, ProfileImageURL: p.url(u.ProfileImageBlobID)}
}

func (p *presenter) app(a *models.App, withOwner bool) appJSON {
	out := appJSON{App: a, ThumbnailURL: p.url(a.ThumbnailBlobID)}
	if withOwner {
		out.User = p.owner(a.UserID)
	}
	return out
}

func (p *presenter) profile(u *models.User) profileJSON {
	return profileJSON{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		Bio:             u.Bio,
		GithubURL:       u.GithubURL,
		TwitterURL:      u.TwitterURL,
		ProfileImageURL: p.url(u.ProfileImageBlobID),
	}
}

func (p *presenter) account(u *models.User) accountJSON {
	return accountJSON{User: u, ProfileImageURL: p.url(u.ProfileImageBlobID)}
}

// feedbacks renders feedback with {id, username} authors
func feedbacks(list []models.Feedback, users map[int64]*models.User) []feedbackJSON {
	out := make([]feedbackJSON, len(list))
	for i := range list {
		out[i] = feedback(&list[i], users[list[i].UserID])
	}
	return out
}

func feedback(f *models.Feedback, author *models.User) feedbackJSON {
	out := feedbackJSON{Feedback: f}
	if author != nil {
		out.User = &authorJSON{ID: author.ID, Username: author.Username}
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

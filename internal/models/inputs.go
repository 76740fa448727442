package models

import (
	"github.com/portfolio-egg/egg/internal/orm/validation"
)

// Password length bounds in bytes; bcrypt ignores anything past 72
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// AppInput carries app attributes from a request. Nil fields are left
// unchanged by Apply.
type AppInput struct {
	Title       *string
	Description *string
	Category    *string
	GithubURL   *string
	DeployURL   *string
}

// Apply copies the present fields onto a
func (in AppInput) Apply(a *App) {
	if in.Title != nil {
		a.Title = *in.Title
	}
	if in.Description != nil {
		a.Description = copyString(in.Description)
	}
	if in.Category != nil {
		a.Category = *in.Category
	}
	if in.GithubURL != nil {
		a.GithubURL = copyString(in.GithubURL)
	}
	if in.DeployURL != nil {
		a.DeployURL = copyString(in.DeployURL)
	}
}

// Validate checks an app before it is saved
func (a *App) Validate() *validation.Errors {
	errs := validation.NewErrors()
	validation.Check(errs, "title", a.Title, validation.Presence(), validation.LengthValidator{Max: 255})
	validation.Check(errs, "category", a.Category, validation.Presence(), validation.LengthValidator{Max: 255})
	validation.Check(errs, "github_url", stringOrEmpty(a.GithubURL), validation.URLValidator{})
	validation.Check(errs, "deploy_url", stringOrEmpty(a.DeployURL), validation.URLValidator{})
	return errs
}

// Validate checks a version before it is saved
func (v *AppVersion) Validate() *validation.Errors {
	errs := validation.NewErrors()
	validation.Check(errs, "version_number", v.VersionNumber, validation.Presence(), validation.SemverValidator{})
	if v.ReleaseDate.IsZero() {
		errs.Add("release_date", validation.MsgBlank)
	}
	return errs
}

// FeedbackInput carries feedback attributes from a request
type FeedbackInput struct {
	Comment         *string
	DesignScore     *int
	UsabilityScore  *int
	CreativityScore *int
	UsefulnessScore *int
	OverallScore    *int
}

func (in FeedbackInput) scores() []struct {
	field string
	value *int
} {
	return []struct {
		field string
		value *int
	}{
		{"design_score", in.DesignScore},
		{"usability_score", in.UsabilityScore},
		{"creativity_score", in.CreativityScore},
		{"usefulness_score", in.UsefulnessScore},
		{"overall_score", in.OverallScore},
	}
}

// Validate checks the scores. A new feedback needs every score; an update
// only checks the scores sent. A missing score is reported as both blank
// and outside 1..5.
func (in FeedbackInput) Validate(isNew bool) *validation.Errors {
	errs := validation.NewErrors()
	for _, s := range in.scores() {
		if s.value == nil && !isNew {
			continue
		}
		validation.Check(errs, s.field, s.value, validation.Presence())
		validation.Check(errs, s.field, s.value, validation.Between(1, 5))
	}
	return errs
}

// Apply copies the present fields onto f
func (in FeedbackInput) Apply(f *Feedback) {
	if in.Comment != nil {
		f.Comment = copyString(in.Comment)
	}
	targets := []*int{&f.DesignScore, &f.UsabilityScore, &f.CreativityScore, &f.UsefulnessScore, &f.OverallScore}
	for i, s := range in.scores() {
		if s.value != nil {
			*targets[i] = *s.value
		}
	}
}

// SignUpInput is an email registration
type SignUpInput struct {
	Email                string
	Password             string
	PasswordConfirmation *string
	Username             string
}

// Validate checks a registration. Email uniqueness is checked on insert.
func (in SignUpInput) Validate() *validation.Errors {
	errs := validation.NewErrors()
	validation.Check(errs, "email", in.Email, validation.Presence(), validation.EmailValidator{})
	validatePassword(errs, in.Password, in.PasswordConfirmation)
	validation.Check(errs, "username", in.Username, validation.Presence())
	return errs
}

func validatePassword(errs *validation.Errors, password string, confirmation *string) {
	validation.Check(errs, "password", password,
		validation.Presence(),
		validation.LengthValidator{Min: MinPasswordLength, Max: MaxPasswordLength, Bytes: true})
	if confirmation != nil {
		validation.Check(errs, "password_confirmation", *confirmation,
			validation.ConfirmationValidator{Expected: password, Against: "Password"})
	}
}

// ProfileInput carries profile attributes from a request
type ProfileInput struct {
	Username   *string
	Bio        *string
	GithubURL  *string
	TwitterURL *string
}

// Apply copies the present fields onto u
func (in ProfileInput) Apply(u *User) {
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Bio != nil {
		u.Bio = copyString(in.Bio)
	}
	if in.GithubURL != nil {
		u.GithubURL = copyString(in.GithubURL)
	}
	if in.TwitterURL != nil {
		u.TwitterURL = copyString(in.TwitterURL)
	}
}

// Validate checks a user before it is saved
func (u *User) Validate() *validation.Errors {
	errs := validation.NewErrors()
	validation.Check(errs, "email", u.Email, validation.Presence(), validation.EmailValidator{})
	validation.Check(errs, "username", u.Username, validation.Presence(), validation.LengthValidator{Max: 255})
	validation.Check(errs, "github_url", stringOrEmpty(u.GithubURL), validation.URLValidator{})
	validation.Check(errs, "twitter_url", stringOrEmpty(u.TwitterURL), validation.URLValidator{})
	return errs
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/portfolio-egg/egg/internal/orm/validation"
)

func ptr[T any](v T) *T { return &v }

func TestAppWithStats_OverallScore(t *testing.T) {
	assert.Equal(t, 0.0, AppWithStats{}.OverallScore())

	stats := AppWithStats{AverageScore: sql.NullFloat64{Float64: 11.0 / 3.0, Valid: true}}
	assert.Equal(t, 3.7, stats.OverallScore())
}

func TestAppWithStats_Version(t *testing.T) {
	assert.Equal(t, "1.0.0", AppWithStats{}.Version())

	stats := AppWithStats{LatestVersion: sql.NullString{String: "2.1.0", Valid: true}}
	assert.Equal(t, "2.1.0", stats.Version())
}

func TestApp_Validate(t *testing.T) {
	app := &App{}
	errs := app.Validate()
	assert.Equal(t, []string{"Title can't be blank", "Category can't be blank"}, errs.FullMessages())

	app = &App{Title: "Egg", Category: "game", GithubURL: ptr("github.com/egg")}
	errs = app.Validate()
	assert.Equal(t, []string{validation.MsgInvalid}, errs.On("github_url"))

	app.GithubURL = ptr("https://github.com/egg")
	assert.False(t, app.Validate().HasErrors())
}

func TestAppInput_Apply(t *testing.T) {
	app := &App{Title: "Old", Category: "tool", Description: ptr("keep")}

	AppInput{Title: ptr("New"), DeployURL: ptr("https://egg.dev")}.Apply(app)

	assert.Equal(t, "New", app.Title)
	assert.Equal(t, "tool", app.Category)
	assert.Equal(t, "keep", *app.Description)
	assert.Equal(t, "https://egg.dev", *app.DeployURL)
}

func TestAppVersion_Validate(t *testing.T) {
	v := &AppVersion{}
	assert.Equal(t, []string{"Version number can't be blank", "Release date can't be blank"}, v.Validate().FullMessages())

	v = &AppVersion{VersionNumber: "one", ReleaseDate: NewDate(time.Now())}
	assert.Equal(t, []string{"Version number is invalid"}, v.Validate().FullMessages())

	v.VersionNumber = "1.1.0"
	assert.False(t, v.Validate().HasErrors())
}

func TestFeedbackInput_ValidateNew(t *testing.T) {
	in := FeedbackInput{DesignScore: ptr(3), UsabilityScore: ptr(6), CreativityScore: ptr(1), UsefulnessScore: ptr(5)}

	errs := in.Validate(true)

	assert.Equal(t, []string{
		"Usability score is not included in the list",
		"Overall score can't be blank",
		"Overall score is not included in the list",
	}, errs.FullMessages())
}

func TestFeedbackInput_ValidateUpdateChecksOnlySentScores(t *testing.T) {
	assert.False(t, FeedbackInput{Comment: ptr("nice")}.Validate(false).HasErrors())

	errs := FeedbackInput{OverallScore: ptr(0)}.Validate(false)
	assert.Equal(t, []string{"Overall score is not included in the list"}, errs.FullMessages())
}

func TestFeedbackInput_Apply(t *testing.T) {
	fb := &Feedback{DesignScore: 1, UsabilityScore: 2, CreativityScore: 3, UsefulnessScore: 4, OverallScore: 5}

	FeedbackInput{Comment: ptr("better"), UsabilityScore: ptr(5), OverallScore: ptr(3)}.Apply(fb)

	assert.Equal(t, "better", *fb.Comment)
	assert.Equal(t, 1, fb.DesignScore)
	assert.Equal(t, 5, fb.UsabilityScore)
	assert.Equal(t, 3, fb.CreativityScore)
	assert.Equal(t, 4, fb.UsefulnessScore)
	assert.Equal(t, 3, fb.OverallScore)
}

func TestSignUpInput_Validate(t *testing.T) {
	tests := []struct {
		name string
		in   SignUpInput
		want []string
	}{
		{
			name: "valid",
			in:   SignUpInput{Email: "dog@user.com", Password: "secret1", PasswordConfirmation: ptr("secret1"), Username: "dog"},
		},
		{
			name: "confirmation omitted",
			in:   SignUpInput{Email: "dog@user.com", Password: "secret1", Username: "dog"},
		},
		{
			name: "blank",
			in:   SignUpInput{},
			want: []string{"Email can't be blank", "Password can't be blank", "Username can't be blank"},
		},
		{
			name: "bad values",
			in:   SignUpInput{Email: "dog", Password: "abc", PasswordConfirmation: ptr("abd"), Username: "dog"},
			want: []string{
				"Email is invalid",
				"Password is too short (minimum is 6 characters)",
				"Password confirmation doesn't match Password",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.in.Validate()
			if tt.want == nil {
				assert.False(t, errs.HasErrors(), errs.FullMessages())
				return
			}
			assert.Equal(t, tt.want, errs.FullMessages())
		})
	}
}

func TestProfileInput_ApplyAndValidate(t *testing.T) {
	user := &User{Email: "dog@user.com", Username: "dog"}

	ProfileInput{Bio: ptr("hello"), TwitterURL: ptr("not a url")}.Apply(user)

	assert.Equal(t, "dog", user.Username)
	assert.Equal(t, "hello", *user.Bio)
	assert.Equal(t, []string{"Twitter url is invalid"}, user.Validate().FullMessages())

	ProfileInput{Username: ptr(""), TwitterURL: ptr("")}.Apply(user)
	assert.Equal(t, []string{"Username can't be blank"}, user.Validate().FullMessages())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "dog@user.com", NormalizeEmail("  Dog@User.COM "))
	assert.Equal(t, "", NormalizeEmail(" "))
}

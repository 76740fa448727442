package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceValidator(t *testing.T) {
	empty := ""
	name := "egg"
	tests := []struct {
		name    string
		value   interface{}
		wantErr bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"whitespace", "   ", true},
		{"string", "egg", false},
		{"nil string pointer", (*string)(nil), true},
		{"empty string pointer", &empty, true},
		{"string pointer", &name, false},
		{"nil int pointer", (*int)(nil), true},
		{"zero int", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Presence().Validate(tt.value)
			if tt.wantErr {
				assert.EqualError(t, err, MsgBlank)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInclusionValidator(t *testing.T) {
	v := Between(1, 5)
	five := 5
	six := 6

	assert.NoError(t, v.Validate(1))
	assert.NoError(t, v.Validate(&five))
	assert.NoError(t, v.Validate(float64(3)))
	assert.EqualError(t, v.Validate(0), MsgNotIncluded)
	assert.EqualError(t, v.Validate(&six), MsgNotIncluded)
	assert.EqualError(t, v.Validate(2.5), MsgNotIncluded)
	assert.EqualError(t, v.Validate("3"), MsgNotIncluded)
}

func TestLengthValidator(t *testing.T) {
	v := LengthValidator{Min: 6, Max: 72, Bytes: true}

	assert.EqualError(t, v.Validate("abc"), "is too short (minimum is 6 characters)")
	assert.NoError(t, v.Validate("abcdef"))

	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	assert.EqualError(t, v.Validate(string(long)), "is too long (maximum is 72 characters)")

	// 3 runes, 9 bytes
	runes := LengthValidator{Max: 3}
	assert.NoError(t, runes.Validate("たまご"))
	assert.Error(t, LengthValidator{Max: 3, Bytes: true}.Validate("たまご"))
}

func TestEmailValidator(t *testing.T) {
	v := EmailValidator{}

	assert.NoError(t, v.Validate("dog@user.com"))
	assert.NoError(t, v.Validate(""))
	assert.EqualError(t, v.Validate("not-an-email"), MsgInvalid)
	assert.EqualError(t, v.Validate("Dog <dog@user.com>"), MsgInvalid)
}

func TestURLValidator(t *testing.T) {
	v := URLValidator{}

	assert.NoError(t, v.Validate(""))
	assert.NoError(t, v.Validate("https://github.com/egg"))
	assert.EqualError(t, v.Validate("github.com/egg"), MsgInvalid)
	assert.EqualError(t, v.Validate("ftp://example.com"), MsgInvalid)
}

func TestSemverValidator(t *testing.T) {
	v := SemverValidator{}

	assert.NoError(t, v.Validate("1.0.0"))
	assert.NoError(t, v.Validate("2.1.0-beta.1"))
	assert.EqualError(t, v.Validate("version one"), MsgInvalid)
}

func TestConfirmationValidator(t *testing.T) {
	v := ConfirmationValidator{Expected: "secret1", Against: "Password"}

	assert.NoError(t, v.Validate("secret1"))
	assert.EqualError(t, v.Validate("secret2"), "doesn't match Password")
}

func TestCheckStopsAtFirstFailure(t *testing.T) {
	errs := NewErrors()

	ok := Check(errs, "design_score", nil, Presence(), Between(1, 5))
	assert.False(t, ok)
	assert.Equal(t, []string{MsgBlank}, errs.On("design_score"))

	ok = Check(errs, "overall_score", 3, Presence(), Between(1, 5))
	assert.True(t, ok)
	assert.Empty(t, errs.On("overall_score"))
}

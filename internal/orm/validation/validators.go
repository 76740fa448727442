package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/Masterminds/semver/v3"
)

// Standard messages, phrased to follow the field name in a full message.
const (
	MsgBlank       = "can't be blank"
	MsgNotIncluded = "is not included in the list"
	MsgInvalid     = "is invalid"
	MsgTaken       = "has already been taken"
)

// Validator defines the interface for field validators.
// A nil error means the value is acceptable.
type Validator interface {
	Validate(value interface{}) error
}

// ValidatorFunc adapts a function to the Validator interface
type ValidatorFunc func(value interface{}) error

// Validate implements the Validator interface
func (f ValidatorFunc) Validate(value interface{}) error {
	return f(value)
}

// Check runs validators against value in order and records the first failure
// under field. Later validators are skipped once one fails.
func Check(errs *Errors, field string, value interface{}, validators ...Validator) bool {
	for _, v := range validators {
		if err := v.Validate(value); err != nil {
			errs.Add(field, err.Error())
			return false
		}
	}
	return true
}

// PresenceValidator rejects nil values, blank strings and zero ids
type PresenceValidator struct{}

// Validate implements the Validator interface
func (v PresenceValidator) Validate(value interface{}) error {
	if isBlank(value) {
		return errors.New(MsgBlank)
	}
	return nil
}

// Presence is shorthand for PresenceValidator{}
func Presence() Validator { return PresenceValidator{} }

// InclusionValidator validates integers within [Min, Max]
type InclusionValidator struct {
	Min int64
	Max int64
}

// Validate implements the Validator interface
func (v InclusionValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	n, ok := toInt64(value)
	if !ok {
		return errors.New(MsgNotIncluded)
	}
	if n < v.Min || n > v.Max {
		return errors.New(MsgNotIncluded)
	}
	return nil
}

// Between is shorthand for InclusionValidator{min, max}
func Between(min, max int64) Validator { return InclusionValidator{Min: min, Max: max} }

// LengthValidator validates string length. Bytes switches from rune to byte counting.
type LengthValidator struct {
	Min   int
	Max   int
	Bytes bool
}

// Validate implements the Validator interface
func (v LengthValidator) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	n := utf8.RuneCountInString(s)
	if v.Bytes {
		n = len(s)
	}
	if v.Min > 0 && n < v.Min {
		return fmt.Errorf("is too short (minimum is %d characters)", v.Min)
	}
	if v.Max > 0 && n > v.Max {
		return fmt.Errorf("is too long (maximum is %d characters)", v.Max)
	}
	return nil
}

// EmailValidator validates email addresses
type EmailValidator struct{}

// Validate implements the Validator interface
func (v EmailValidator) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return errors.New(MsgInvalid)
	}
	return nil
}

// URLValidator validates optional absolute http(s) URLs. Empty strings pass.
type URLValidator struct{}

// Validate implements the Validator interface
func (v URLValidator) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New(MsgInvalid)
	}
	return nil
}

// SemverValidator validates semantic version strings such as "1.2.0"
type SemverValidator struct{}

// Validate implements the Validator interface
func (v SemverValidator) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if _, err := semver.NewVersion(s); err != nil {
		return errors.New(MsgInvalid)
	}
	return nil
}

// ConfirmationValidator checks that a value equals its confirmation.
// Against is the humanized name used in the message.
type ConfirmationValidator struct {
	Expected string
	Against  string
}

// Validate implements the Validator interface
func (v ConfirmationValidator) Validate(value interface{}) error {
	s, _ := value.(string)
	if s != v.Expected {
		return fmt.Errorf("doesn't match %s", v.Against)
	}
	return nil
}

func isBlank(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	case *int:
		return v == nil
	case *int64:
		return v == nil
	}
	return false
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case *int:
		if v == nil {
			return 0, false
		}
		return int64(*v), true
	case *int64:
		if v == nil {
			return 0, false
		}
		return *v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

package validation

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	errs "github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	ozzo "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

const DateLayout = "2006-01-02"

// Translate turns ozzo errors into a VALIDATION AppError with one detail per field, sorted by field name.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs ozzo.Errors
	if errors.As(err, &fieldErrs) {
		details := flatten("", fieldErrs)
		sort.Slice(details, func(i, j int) bool { return details[i].Field < details[j].Field })
		return errs.NewValidationError("validation failed", errs.ErrCodeValidationFailed).
			WithDetails(errs.ValidationErrors{Errors: details})
	}

	var internalErr ozzo.InternalError
	if errors.As(err, &internalErr) {
		return errs.NewInternalError("validation rule failed", internalErr.InternalError())
	}

	return errs.NewValidationError(err.Error(), errs.ErrCodeValidationFailed)
}

func flatten(prefix string, fieldErrs ozzo.Errors) []errs.ValidationError {
	var out []errs.ValidationError
	for field, err := range fieldErrs {
		name := field
		if prefix != "" {
			name = prefix + "." + field
		}
		var nested ozzo.Errors
		if errors.As(err, &nested) {
			out = append(out, flatten(name, nested)...)
			continue
		}
		out = append(out, errs.ValidationError{
			Field:   name,
			Message: err.Error(),
			Code:    string(errs.ErrCodeValidationFailed),
		})
	}
	return out
}

// stringValue dereferences optional fields so rules work on both string and *string.
func stringValue(value interface{}) string {
	v, isNil := ozzo.Indirect(value)
	if isNil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// StrongPassword requires 8 to 72 bytes mixing upper and lower case letters, digits and symbols.
func StrongPassword(value interface{}) error {
	s := stringValue(value)
	if s == "" {
		return nil
	}
	if len(s) < 8 {
		return errors.New("must be at least 8 characters")
	}
	if len(s) > MaxPasswordBytes {
		return errors.New("must be at most 72 bytes")
	}
	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !upper || !lower {
		return errors.New("must contain upper and lower case letters")
	}
	if !digit {
		return errors.New("must contain a number")
	}
	if !symbol {
		return errors.New("must contain a symbol")
	}
	return nil
}

// NoWhitespace rejects values that contain any space character.
func NoWhitespace(value interface{}) error {
	s := stringValue(value)
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return errors.New("must not contain spaces")
	}
	return nil
}

// Equals builds a rule that requires the value to match other, e.g. password confirmation.
func Equals(other, message string) ozzo.RuleFunc {
	return func(value interface{}) error {
		s := stringValue(value)
		if s != other {
			return errors.New(message)
		}
		return nil
	}
}

// PastDate accepts an empty value or a YYYY-MM-DD date strictly before now.
func PastDate(now func() time.Time) ozzo.RuleFunc {
	return func(value interface{}) error {
		s := stringValue(value)
		if s == "" {
			return nil
		}
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return errors.New("must be a date in YYYY-MM-DD format")
		}
		if !t.Before(now()) {
			return errors.New("must be in the past")
		}
		return nil
	}
}

// Phone accepts an empty value or a number parseable in international format.
func Phone(value interface{}) error {
	s := stringValue(value)
	if s == "" {
		return nil
	}
	if _, err := NormalizePhone(s); err != nil {
		return err
	}
	return nil
}

// NormalizePhone returns the E.164 form of raw, which must carry its country code.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", errors.New("must be a valid phone number in international format")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Package validate provides input validation for API requests: string
// constraints for free text and identifiers, and struct validation backed by
// go-playground/validator.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// Length limits for request fields.
const (
	MaxSearchQueryLength = 200
	MaxIDLength          = 128
)

// idPattern allows uuids, slugs and numeric ids.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.:]+$`)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length in runes (0 = no minimum)
	MaxLength      int            // Maximum length in runes (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional pattern the whole string must match
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates s against constraints and returns the (optionally trimmed)
// string. Control characters are always rejected.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if !utf8.ValidString(s) || strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: control characters are not allowed", ErrInvalidCharacters)
	}
	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}
	return s, nil
}

// SearchQuery validates free-text search input:
// - Optional (can be empty)
// - Max 200 characters
func SearchQuery(q string) (string, error) {
	return String(q, StringConstraints{
		MaxLength:  MaxSearchQueryLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// ID validates an opaque entity identifier such as a landmark or viewer id.
func ID(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      MaxIDLength,
		AllowedPattern: idPattern,
		TrimSpace:      false,
	})
}

package intro

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/diewo77/go-club/validation"
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SlugLookup answers whether a nickname is already held by another user.
type SlugLookup interface {
	SlugExists(ctx context.Context, slug string, excludeID *uint) (bool, error)
}

// SlugValidator cleans the nickname field.
type SlugValidator struct {
	Field     string
	Lookup    SlugLookup
	MinLength int
	MaxLength int
}

// NewSlugValidator uses the bounds declared for "slug" in Fields.
func NewSlugValidator(lookup SlugLookup) *SlugValidator {
	f, _ := FieldByName("slug")
	return &SlugValidator{Field: f.Name, Lookup: lookup, MinLength: f.MinLength, MaxLength: f.MaxLength}
}

// Clean trims raw and checks, in order: presence, charset, length and
// case-insensitive uniqueness among users other than excludeID. It returns
// the trimmed nickname, a validation.FieldError, or a lookup error.
func (v *SlugValidator) Clean(ctx context.Context, raw string, excludeID *uint) (string, error) {
	slug := strings.TrimSpace(raw)
	if slug == "" {
		return "", &validation.RequiredFieldError{FieldName: v.Field}
	}
	if !slugPattern.MatchString(slug) {
		return "", &validation.InvalidFormatError{FieldName: v.Field, Value: slug}
	}
	n := utf8.RuneCountInString(slug)
	if v.MinLength > 0 && n < v.MinLength {
		return "", &validation.LengthError{FieldName: v.Field, Min: v.MinLength, Actual: n}
	}
	if v.MaxLength > 0 && n > v.MaxLength {
		return "", &validation.LengthError{FieldName: v.Field, Max: v.MaxLength, Actual: n}
	}

	exists, err := v.Lookup.SlugExists(ctx, slug, excludeID)
	if err != nil {
		return "", err
	}
	if exists {
		return "", &validation.DuplicateValueError{FieldName: v.Field, Value: slug}
	}
	return slug, nil
}

package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes. Handlers translate them with i18n.Message.
const (
	CodeRequired      = "required"
	CodeInvalidFormat = "invalid_format"
	CodeDuplicate     = "duplicate"
	CodeTooShort      = "too_short"
	CodeTooLong       = "too_long"
	CodeInvalidChoice = "invalid_choice"
)

// FieldError is a validation failure attached to a single form field.
type FieldError interface {
	error
	Field() string
	Code() string
	// Args are the values interpolated into the translated message.
	Args() []any
}

// RequiredFieldError reports a missing value (or an unchecked mandatory checkbox).
type RequiredFieldError struct {
	FieldName string
}

func (e *RequiredFieldError) Error() string { return e.FieldName + ": required" }
func (e *RequiredFieldError) Field() string { return e.FieldName }
func (e *RequiredFieldError) Code() string  { return CodeRequired }
func (e *RequiredFieldError) Args() []any   { return nil }

// InvalidFormatError reports a value that does not match the expected shape.
// Reason overrides the default code when set (e.g. "file_too_large").
type InvalidFormatError struct {
	FieldName string
	Value     string
	Reason    string
}

func (e *InvalidFormatError) Error() string { return fmt.Sprintf("%s: %s %q", e.FieldName, e.Code(), e.Value) }
func (e *InvalidFormatError) Field() string { return e.FieldName }
func (e *InvalidFormatError) Args() []any   { return nil }

func (e *InvalidFormatError) Code() string {
	if e.Reason != "" {
		return e.Reason
	}
	return CodeInvalidFormat
}

// DuplicateValueError reports a value already held by another record.
type DuplicateValueError struct {
	FieldName string
	Value     string
}

func (e *DuplicateValueError) Error() string {
	return fmt.Sprintf("%s: %q already taken", e.FieldName, e.Value)
}
func (e *DuplicateValueError) Field() string { return e.FieldName }
func (e *DuplicateValueError) Code() string  { return CodeDuplicate }
func (e *DuplicateValueError) Args() []any   { return nil }

// LengthError reports a string outside its [Min, Max] character bounds.
// Exactly one of Min or Max is set, depending on which bound was crossed.
type LengthError struct {
	FieldName string
	Min       int
	Max       int
	Actual    int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: %s (%d chars)", e.FieldName, e.Code(), e.Actual)
}
func (e *LengthError) Field() string { return e.FieldName }

func (e *LengthError) Code() string {
	if e.Min > 0 {
		return CodeTooShort
	}
	return CodeTooLong
}

func (e *LengthError) Args() []any {
	if e.Min > 0 {
		return []any{e.Min}
	}
	return []any{e.Max}
}

// ChoiceError reports a value that is not a member of the field's enum.
type ChoiceError struct {
	FieldName string
	Value     string
}

func (e *ChoiceError) Error() string { return fmt.Sprintf("%s: invalid choice %q", e.FieldName, e.Value) }
func (e *ChoiceError) Field() string { return e.FieldName }
func (e *ChoiceError) Code() string  { return CodeInvalidChoice }
func (e *ChoiceError) Args() []any   { return nil }

// AsFieldError unwraps err into a FieldError when it is one.
func AsFieldError(err error) (FieldError, bool) {
	var fe FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Errors collects field errors keyed by field name, like a form's error bag.
// JSON output of Messages: {"field": ["msg1", "msg2"]}
type Errors struct {
	bag map[string][]FieldError
}

// NewErrors returns an empty error bag.
func NewErrors() *Errors {
	return &Errors{bag: make(map[string][]FieldError)}
}

// Add appends errors to their fields. Nil entries are ignored.
func (e *Errors) Add(errs ...FieldError) {
	if e.bag == nil {
		e.bag = make(map[string][]FieldError)
	}
	for _, fe := range errs {
		if fe == nil {
			continue
		}
		e.bag[fe.Field()] = append(e.bag[fe.Field()], fe)
	}
}

// Has returns true if any field has an error.
func (e *Errors) Has() bool { return e != nil && len(e.bag) > 0 }

// HasField returns true if the named field has at least one error.
func (e *Errors) HasField(field string) bool {
	return e != nil && len(e.bag[field]) > 0
}

// Field returns the errors attached to field.
func (e *Errors) Field(field string) []FieldError {
	if e == nil {
		return nil
	}
	return e.bag[field]
}

// First returns the first error for field, or nil.
func (e *Errors) First(field string) FieldError {
	if errs := e.Field(field); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Fields returns the names of fields with errors, sorted.
func (e *Errors) Fields() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.bag))
	for name := range e.bag {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Messages renders every error through translate, grouped by field.
func (e *Errors) Messages(translate func(FieldError) string) map[string][]string {
	out := make(map[string][]string, len(e.Fields()))
	for _, name := range e.Fields() {
		for _, fe := range e.bag[name] {
			out[name] = append(out[name], translate(fe))
		}
	}
	return out
}

// Error implements error so a bag can travel through error returns.
func (e *Errors) Error() string {
	parts := make([]string, 0, len(e.bag))
	for _, name := range e.Fields() {
		for _, fe := range e.bag[name] {
			parts = append(parts, fe.Error())
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Package validation holds the field error taxonomy and the rule engine used
// by forms. Rules use go-playground/validator tag syntax
// ("required,min=3,max=32", "omitempty,max=512", "choice=country").
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ChoiceSource is a fixed set of allowed values for an enum field.
type ChoiceSource interface {
	Contains(value string) bool
}

// Engine checks single values against rule strings.
type Engine struct {
	v *validator.Validate

	mu      sync.RWMutex
	choices map[string]ChoiceSource
}

// New builds an engine with the "choice" rule registered.
func New() *Engine {
	e := &Engine{
		v:       validator.New(validator.WithRequiredStructEnabled()),
		choices: make(map[string]ChoiceSource),
	}
	// Registration only fails on an empty tag or nil func.
	_ = e.v.RegisterValidation("choice", e.validateChoice)
	return e
}

// RegisterChoices makes src available to the "choice=<name>" rule.
func (e *Engine) RegisterChoices(name string, src ChoiceSource) {
	e.mu.Lock()
	e.choices[name] = src
	e.mu.Unlock()
}

func (e *Engine) validateChoice(fl validator.FieldLevel) bool {
	e.mu.RLock()
	src, ok := e.choices[fl.Param()]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	return src.Contains(fl.Field().String())
}

// Check validates value against rules and returns the failures mapped onto
// the error taxonomy. Rules stop at the first failing tag, so at most one
// error is returned per call.
func (e *Engine) Check(field string, value any, rules string) ([]FieldError, error) {
	if rules == "" {
		return nil, nil
	}
	err := e.v.Var(value, rules)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("validate %s: %w", field, err)
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, translate(field, fe))
	}
	return out, nil
}

func translate(field string, fe validator.FieldError) FieldError {
	str, _ := fe.Value().(string)
	switch fe.Tag() {
	case "required":
		return &RequiredFieldError{FieldName: field}
	case "min":
		n, _ := strconv.Atoi(fe.Param())
		return &LengthError{FieldName: field, Min: n, Actual: utf8.RuneCountInString(str)}
	case "max":
		n, _ := strconv.Atoi(fe.Param())
		return &LengthError{FieldName: field, Max: n, Actual: utf8.RuneCountInString(str)}
	case "choice", "oneof":
		return &ChoiceError{FieldName: field, Value: str}
	default:
		return &InvalidFormatError{FieldName: field, Value: str}
	}
}

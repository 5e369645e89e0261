package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors shared across services and repositories. Handlers map
// them to HTTP status codes with errors.Is.
var (
	ErrNotFound           = errors.New("requested item not found")
	ErrValidation         = errors.New("validation failed")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
	ErrConflict           = errors.New("resource already exists")
)

// FieldErrors carries per-field validation messages, rendered as
// {"errors": {"field": ["msg", ...]}} in responses. It wraps ErrValidation
// so errors.Is(err, ErrValidation) holds for any FieldErrors value.
type FieldErrors map[string][]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(fe[f], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (fe FieldErrors) Unwrap() error { return ErrValidation }

// NewFieldError builds a single-field validation error.
func NewFieldError(field, message string) FieldErrors {
	return FieldErrors{field: {message}}
}

package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by the identity, directory and registry services.
// Callers match with errors.Is / errors.As; the HTTP layer maps them to status codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrConflict           = errors.New("conflict")
	ErrOperationFailed    = errors.New("operation failed")
)

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries one human-readable reason per offending field.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Reason: reason}}}
}

func (e *ValidationError) Add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// OrNil returns nil when no field errors were collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// OperationFailed wraps an opaque backend failure so that it matches ErrOperationFailed
// while keeping the cause available to errors.Is.
func OperationFailed(op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, ErrOperationFailed)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrOperationFailed, cause)
}

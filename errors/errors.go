package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic     = errors.New("worker panic")
	ErrUnauthenticated = errors.New("authentication failed")
	ErrSessionClosed   = errors.New("session transport closed")
	ErrSlowConsumer    = errors.New("session outbound buffer full")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidPassword = errors.New("password does not meet complexity requirements")
)

// ValidationError rejects a message before any side effect happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError anywhere in its chain.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

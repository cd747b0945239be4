package enrollment

import (
	"errors"
	"sort"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/addressing"
	"github.com/EternisAI/silo-enroll/internal/keys"
)

var (
	ErrNoSession           = errors.New("no enrollment session is open")
	ErrSessionClosed       = errors.New("enrollment session was closed")
	ErrInvalidTransition   = errors.New("operation not allowed in the current step")
	ErrOperationInFlight   = errors.New("another operation is in progress for this session")
	ErrAccountDisabled     = errors.New("user account is disabled")
	ErrIssuanceFailed      = errors.New("failed to issue enrollment token")
	ErrRegistrationFailed  = errors.New("failed to register device")
	ErrStaleRecommendation = errors.New("location changed before recommendation arrived")
	ErrConfigNotFound      = errors.New("configuration not found")
)

const (
	CodeRequired  = "required"
	CodeDuplicate = "duplicate"
	CodeInvalid   = "invalid"
)

// FieldErrors maps a form field to an error code. Field errors never change
// the session step.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// IsRetryable reports whether the operator can retry the same action
// without changing anything.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrAccountDisabled):
		return false
	case errors.Is(err, ErrIssuanceFailed),
		errors.Is(err, ErrRegistrationFailed),
		errors.Is(err, keys.ErrKeyGeneration),
		errors.Is(err, addressing.ErrValidationUnavailable):
		return true
	}
	return false
}

package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds is returned when a debit would overdraw a balance or a credit line
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSessionLocked is returned when a join arrives after the session window closed
	ErrSessionLocked = errors.New("betting session is locked")

	// ErrSessionNotFound is returned when no session matches a resolve or lookup request
	ErrSessionNotFound = errors.New("betting session not found")

	// ErrAlreadyJoined is returned when an actor joins a session a second time
	ErrAlreadyJoined = errors.New("already joined this session")

	// ErrAlreadyReleased is returned when a deferred transfer can no longer be cancelled
	ErrAlreadyReleased = errors.New("deferred transfer already released")

	// ErrAlreadyProcessed marks a duplicate request that was handled before
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrTransferNotFound is returned when a deferred transfer does not exist
	ErrTransferNotFound = errors.New("deferred transfer not found")

	// ErrOutcomeUnknown marks a write that failed and could not be checked
	// afterwards. The money it moved, if any, is left where it is.
	ErrOutcomeUnknown = errors.New("outcome unknown")

	// ErrJoinRefunded is returned when a redelivered join finds its escrow
	// without a wager and hands the stake back
	ErrJoinRefunded = errors.New("join attempt refunded")
)

// ValidationError describes input rejected before any mutation
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExternalServiceError wraps a persistence failure where the outcome of the
// call is unknown
type ExternalServiceError struct {
	Op  string
	Err error
}

// NewExternalServiceError wraps err for operation op
func NewExternalServiceError(op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Op: op, Err: err}
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service failure during %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsExternal reports whether err is an ExternalServiceError
func IsExternal(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}

// NewUnknownOutcomeError wraps a write failure whose effect could not be confirmed
func NewUnknownOutcomeError(op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Op: op, Err: fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)}
}

// IsBenign reports duplicate-processing errors that callers treat as no-ops
func IsBenign(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, ErrAlreadyReleased)
}

// IsExpected reports errors that are turned into user-facing messages
// without being logged as failures
func IsExpected(err error) bool {
	return IsValidation(err) ||
		IsBenign(err) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSessionLocked) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrAlreadyJoined) ||
		errors.Is(err, ErrJoinRefunded) ||
		errors.Is(err, ErrTransferNotFound)
}

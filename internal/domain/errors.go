package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced account or request has no record
	ErrNotFound = errors.New("record not found")

	// ErrEntitlementRequired is returned when a submission needs an active, unexpired plan
	ErrEntitlementRequired = errors.New("active subscription required")

	// ErrPaymentOutcomeUnknown means the payment collaborator never confirmed the charge
	ErrPaymentOutcomeUnknown = errors.New("payment outcome unknown")

	// ErrInvalidTransition is matched by every TransitionError
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized is returned when credentials do not match an account
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDuplicate is returned when a unique field is already taken
	ErrDuplicate = errors.New("duplicate record")
)

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports missing or malformed input. No write has happened.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// TransitionError reports a status change the lifecycle does not allow
type TransitionError struct {
	RequestID string
	From      AdStatus
	To        AdStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ad request %s cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PartialWriteError means the first write of a multi-write effect succeeded
// and a later one failed. Nothing is rolled back.
type PartialWriteError struct {
	Operation string
	Completed []string
	Failed    string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s partially applied (done: %s, failed: %s): %v",
		e.Operation, strings.Join(e.Completed, ", "), e.Failed, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// PaymentPersistError means a confirmed payment could not be recorded. The
// reference is kept so the caller can retry or reconcile by hand.
type PaymentPersistError struct {
	PaymentRef string
	Err        error
}

func (e *PaymentPersistError) Error() string {
	return fmt.Sprintf("payment %s confirmed but not recorded: %v", e.PaymentRef, e.Err)
}

func (e *PaymentPersistError) Unwrap() error {
	return e.Err
}

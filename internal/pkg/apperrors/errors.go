package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// Resource errors
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")

	// Authentication errors
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("invalid token")
	ErrInvalidFormat = errors.New("invalid token format")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Business rule errors
	ErrBusinessRule = errors.New("business rule violation")

	// Persistence errors
	ErrStoreFailure = errors.New("store failure")
)

// Ledger lookups
var (
	ErrObligationNotFound = NewCustomError(ErrResourceNotFound, "fee obligation not found")
	ErrStudentNotFound    = NewCustomError(ErrResourceNotFound, "student not found")
)

// Ledger rules
var (
	ErrExceedsOutstanding = NewCustomError(ErrBusinessRule, "payment exceeds outstanding amount")
	ErrObligationPaid     = NewCustomError(ErrBusinessRule, "obligation is already paid")
	ErrPrincipalBelowPaid = NewCustomError(ErrBusinessRule, "principal amount is below amount already paid")
)

// Concurrency
var (
	// ErrVersionConflict is returned by stores when the optimistic version check fails.
	ErrVersionConflict = NewCustomError(ErrConflict, "obligation was modified concurrently")
	// ErrConcurrencyConflict is surfaced to callers once internal retries are exhausted.
	ErrConcurrencyConflict = NewCustomError(ErrConflict, "concurrent update conflict, retry the operation")
)

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewStoreFailure wraps a persistence error so callers can classify it with errors.Is.
func NewStoreFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

// Is returns whether target matches any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// FieldError is a single field-level failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	// Rule is the sentinel the failure corresponds to, when there is one.
	Rule error `json:"-"`
}

func joinFields(prefix string, fields []FieldError) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// ValidationError carries every structural failure of a request.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError returns nil when fields is empty.
func NewValidationError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return joinFields(ErrValidationFailed.Error(), e.Fields)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// BusinessRuleError carries every rule the current obligation state rejects.
type BusinessRuleError struct {
	Fields []FieldError
}

// NewBusinessRuleError returns nil when fields is empty.
func NewBusinessRuleError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &BusinessRuleError{Fields: fields}
}

func (e *BusinessRuleError) Error() string {
	return joinFields(ErrBusinessRule.Error(), e.Fields)
}

// Unwrap exposes ErrBusinessRule and each violated rule sentinel.
func (e *BusinessRuleError) Unwrap() []error {
	errs := []error{ErrBusinessRule}
	for _, f := range e.Fields {
		if f.Rule != nil {
			errs = append(errs, f.Rule)
		}
	}
	return errs
}

// FieldErrorsOf extracts the field list from a validation or business rule error.
func FieldErrorsOf(err error) []FieldError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	var be *BusinessRuleError
	if errors.As(err, &be) {
		return be.Fields
	}
	return nil
}

package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsClassify(t *testing.T) {
	assert.ErrorIs(t, ErrObligationNotFound, ErrResourceNotFound)
	assert.ErrorIs(t, ErrExceedsOutstanding, ErrBusinessRule)
	assert.ErrorIs(t, ErrVersionConflict, ErrConflict)
	assert.ErrorIs(t, ErrConcurrencyConflict, ErrConflict)
	assert.NotErrorIs(t, ErrConcurrencyConflict, ErrVersionConflict)
	assert.ErrorIs(t, NewConflictError("dup"), ErrConflict)
}

func TestValidationErrorKeepsEveryField(t *testing.T) {
	assert.NoError(t, NewValidationError(nil))

	err := NewValidationError([]FieldError{
		{Field: "amount", Message: "must be positive"},
		{Field: "method", Message: "is not accepted"},
	})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.EqualError(t, err, "validation failed: amount: must be positive; method: is not accepted")
	assert.Len(t, FieldErrorsOf(fmt.Errorf("wrapped: %w", err)), 2)
}

func TestBusinessRuleErrorUnwrapsRules(t *testing.T) {
	assert.NoError(t, NewBusinessRuleError(nil))

	err := NewBusinessRuleError([]FieldError{
		{Field: "amount", Message: "exceeds outstanding", Rule: ErrExceedsOutstanding},
		{Field: "status", Message: "already paid", Rule: ErrObligationPaid},
	})
	assert.ErrorIs(t, err, ErrBusinessRule)
	assert.ErrorIs(t, err, ErrExceedsOutstanding)
	assert.ErrorIs(t, err, ErrObligationPaid)
	assert.NotErrorIs(t, err, ErrPrincipalBelowPaid)
	assert.Len(t, FieldErrorsOf(err), 2)
	assert.Nil(t, FieldErrorsOf(errors.New("plain")))
}

func TestStoreFailureWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreFailure("commit payment", cause)

	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "store failure: commit payment: connection reset")
}

func TestIsMatchesAnyTarget(t *testing.T) {
	assert.True(t, Is(ErrObligationNotFound, ErrVersionConflict, ErrObligationNotFound))
	assert.True(t, Is(ErrVersionConflict, ErrVersionConflict))
	assert.False(t, Is(ErrStudentNotFound, ErrVersionConflict, ErrObligationNotFound))
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/app/repositories"
	"github.com/yigit/bursar/internal/pkg/apperrors"
	"github.com/yigit/bursar/internal/pkg/keylock"
	"github.com/yigit/bursar/internal/pkg/logger"
	"github.com/yigit/bursar/internal/pkg/retry"
)

// DefaultMaxPaymentRetries is used when the configured retry count is not positive
const DefaultMaxPaymentRetries = 5

// PaymentProcessor is the only writer of AmountPaid. Each call holds the obligation's
// in-process lock and commits with an optimistic version check, re-reading and
// re-validating on every attempt so a conflicting writer in another process is never overwritten.
type PaymentProcessor struct {
	store     repositories.FeeStore
	validator *FeeValidator
	clock     Clock
	locks     *keylock.Locker[uuid.UUID]
	retrier   *retry.Retrier
}

// NewPaymentProcessor creates a processor that retries version conflicts up to maxRetries times
func NewPaymentProcessor(store repositories.FeeStore, validator *FeeValidator, clock Clock, maxRetries int) *PaymentProcessor {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxPaymentRetries
	}
	return &PaymentProcessor{
		store:     store,
		validator: validator,
		clock:     clock,
		locks:     keylock.New[uuid.UUID](),
		retrier: retry.New(
			retry.WithMaxAttempts(maxRetries+1),
			retry.WithInitialDelay(5*time.Millisecond),
			retry.WithMaxDelay(200*time.Millisecond),
			retry.WithJitter(0.5),
			retry.WithRetryIf(func(err error) bool {
				return errors.Is(err, apperrors.ErrVersionConflict)
			}),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying obligation write after version conflict")
			}),
		),
	}
}

// mutation reads the fresh obligation, changes it and commits it with the given expected version.
type mutation func(ctx context.Context, o *models.FeeObligation, now time.Time) (commit func(ctx context.Context, expectedVersion int64) error, err error)

// serialize runs m under the obligation's lock with bounded retries on version conflicts.
// Cancellation is honored up to the commit; the commit itself is not cancelled.
func (p *PaymentProcessor) serialize(ctx context.Context, id uuid.UUID, m mutation) (*models.FeeObligation, error) {
	unlock, err := p.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *models.FeeObligation
	err = p.retrier.Do(ctx, func(ctx context.Context) error {
		o, err := p.store.GetObligation(ctx, id)
		if err != nil {
			return retry.Permanent(err)
		}
		expected := o.Version

		// Rule violations are judged on fresh state and do not improve with another attempt
		commit, err := m(ctx, o, p.clock.Now())
		if err != nil {
			return retry.Permanent(err)
		}
		if commit == nil {
			result = o
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := commit(context.WithoutCancel(ctx), expected); err != nil {
			return err
		}
		result = o
		return nil
	})
	if errors.Is(err, apperrors.ErrVersionConflict) {
		logger.Warn().Str("obligationID", id.String()).Int("attempts", p.retrier.MaxAttempts()).Msg("Giving up on obligation write after repeated version conflicts")
		return nil, apperrors.ErrConcurrencyConflict
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Process records a structurally valid payment against an obligation. The outstanding-amount
// rule is checked against the state read inside the serialized section.
func (p *PaymentProcessor) Process(ctx context.Context, obligationID uuid.UUID, in PaymentInput) (*models.Payment, *models.FeeObligation, error) {
	var payment *models.Payment
	o, err := p.serialize(ctx, obligationID, func(ctx context.Context, o *models.FeeObligation, now time.Time) (func(context.Context, int64) error, error) {
		if err := p.validator.CheckPayment(o, *in.Amount); err != nil {
			return nil, err
		}
		pay := newPayment(o, in, now)
		o.ApplyPayment(pay.Amount, now)
		return func(ctx context.Context, expected int64) error {
			if err := p.store.CommitPayment(ctx, o, expected, pay); err != nil {
				return err
			}
			payment = pay
			return nil
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, o, nil
}

// Settle pays off whatever is outstanding with an ADMIN_ADJUSTMENT payment dated today.
// An already paid obligation is returned unchanged with a nil payment.
func (p *PaymentProcessor) Settle(ctx context.Context, obligationID uuid.UUID) (*models.Payment, *models.FeeObligation, error) {
	var payment *models.Payment
	o, err := p.serialize(ctx, obligationID, func(ctx context.Context, o *models.FeeObligation, now time.Time) (func(context.Context, int64) error, error) {
		outstanding := o.Outstanding()
		if !outstanding.IsPositive() {
			o.Refresh(now)
			return nil, nil
		}
		today := models.DateOf(now)
		pay := newPayment(o, PaymentInput{
			Amount:      &outstanding,
			PaymentDate: &today,
			Method:      models.MethodAdminAdjustment,
		}, now)
		o.ApplyPayment(pay.Amount, now)
		return func(ctx context.Context, expected int64) error {
			if err := p.store.CommitPayment(ctx, o, expected, pay); err != nil {
				return err
			}
			payment = pay
			return nil
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, o, nil
}

// Amend applies a structurally valid amendment, enforcing the business rules against the
// fresh state and recomputing status afterwards.
func (p *PaymentProcessor) Amend(ctx context.Context, obligationID uuid.UUID, in AmendObligationInput) (*models.FeeObligation, error) {
	return p.serialize(ctx, obligationID, func(ctx context.Context, o *models.FeeObligation, now time.Time) (func(context.Context, int64) error, error) {
		o.Refresh(now)
		if err := p.validator.CheckAmendment(o, in); err != nil {
			return nil, err
		}
		if in.Category != nil {
			o.Category = *in.Category
		}
		if in.PrincipalAmount != nil {
			o.PrincipalAmount = *in.PrincipalAmount
		}
		if in.DueDate != nil {
			o.DueDate = models.DateOf(*in.DueDate)
		}
		if in.Description != nil {
			o.Description = *in.Description
		}
		o.UpdatedAt = now
		o.Refresh(now)
		return func(ctx context.Context, expected int64) error {
			return p.store.UpdateObligation(ctx, o, expected)
		}, nil
	})
}

// Delete removes an obligation while holding its lock so no payment is mid-flight in this process.
// It returns the obligation as it was last stored.
func (p *PaymentProcessor) Delete(ctx context.Context, obligationID uuid.UUID) (*models.FeeObligation, error) {
	unlock, err := p.locks.Lock(ctx, obligationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	o, err := p.store.GetObligation(ctx, obligationID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.store.DeleteObligation(context.WithoutCancel(ctx), obligationID); err != nil {
		return nil, err
	}
	return o, nil
}

func newPayment(o *models.FeeObligation, in PaymentInput, now time.Time) *models.Payment {
	return &models.Payment{
		ID:           uuid.New(),
		ObligationID: o.ID,
		StudentID:    o.StudentID,
		Amount:       *in.Amount,
		PaymentDate:  models.DateOf(*in.PaymentDate),
		Method:       in.Method,
		Reference:    in.Reference,
		CreatedAt:    now,
	}
}

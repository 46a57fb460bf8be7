package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yigit/bursar/internal/app/jobs"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/app/repositories"
	"github.com/yigit/bursar/internal/pkg/apperrors"
	"github.com/yigit/bursar/internal/pkg/audit"
	"github.com/yigit/bursar/internal/pkg/logger"
)

// FeeService defines the operations of the fee ledger
type FeeService interface {
	CreateObligation(ctx context.Context, in CreateObligationInput) (*models.FeeObligation, error)
	GetObligation(ctx context.Context, id uuid.UUID) (*models.FeeObligation, error)
	ListObligations(ctx context.Context, filter models.ObligationFilter) ([]*models.FeeObligation, error)
	AmendObligation(ctx context.Context, id uuid.UUID, in AmendObligationInput) (*models.FeeObligation, error)
	DeleteObligation(ctx context.Context, id uuid.UUID) error
	RecordPayment(ctx context.Context, obligationID uuid.UUID, in PaymentInput) (*models.Payment, error)
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error)
	MarkFullyPaid(ctx context.Context, id uuid.UUID) (*models.FeeObligation, error)
	SummarizeStudent(ctx context.Context, studentID string) (*models.FeeSummary, error)
	ReconcileStatuses(ctx context.Context) (jobs.ReconcileResult, error)
}

// feeServiceImpl implements the FeeService interface
type feeServiceImpl struct {
	store      repositories.FeeStore
	students   repositories.StudentDirectory
	validator  *FeeValidator
	processor  *PaymentProcessor
	summaries  *SummaryAggregator
	reconciler *jobs.ReconcileStatusesJob
	audit      audit.Sink
	clock      Clock
}

// FeeServiceDeps groups the collaborators of NewFeeService
type FeeServiceDeps struct {
	Store      repositories.FeeStore
	Students   repositories.StudentDirectory
	Processor  *PaymentProcessor
	Validator  *FeeValidator
	Summaries  *SummaryAggregator
	Reconciler *jobs.ReconcileStatusesJob
	Audit      audit.Sink
	Clock      Clock
}

// NewFeeService creates a new fee service instance
func NewFeeService(deps FeeServiceDeps) FeeService {
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	return &feeServiceImpl{
		store:      deps.Store,
		students:   deps.Students,
		validator:  deps.Validator,
		processor:  deps.Processor,
		summaries:  deps.Summaries,
		reconciler: deps.Reconciler,
		audit:      deps.Audit,
		clock:      deps.Clock,
	}
}

// CreateObligation validates and stores a new obligation for an existing student
func (s *feeServiceImpl) CreateObligation(ctx context.Context, in CreateObligationInput) (*models.FeeObligation, error) {
	if err := s.validator.ValidateCreate(in); err != nil {
		return nil, err
	}

	studentID := strings.TrimSpace(in.StudentID)
	exists, err := s.students.Exists(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("error checking student: %w", err)
	}
	if !exists {
		return nil, apperrors.ErrStudentNotFound
	}

	now := s.clock.Now()
	o := &models.FeeObligation{
		ID:              uuid.New(),
		StudentID:       studentID,
		Category:        in.Category,
		PrincipalAmount: *in.PrincipalAmount,
		AmountPaid:      decimal.Zero,
		DueDate:         models.DateOf(*in.DueDate),
		Description:     in.Description,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.Refresh(now)

	if err := s.store.CreateObligation(ctx, o); err != nil {
		return nil, err
	}

	logger.Info().Str("obligationID", o.ID.String()).Str("studentID", o.StudentID).Str("principal", o.PrincipalAmount.String()).Msg("Fee obligation created")
	s.audit.Record(ctx, audit.EventObligationCreated, map[string]interface{}{
		"obligationId": o.ID.String(),
		"studentId":    o.StudentID,
		"category":     string(o.Category),
		"principal":    o.PrincipalAmount.String(),
	})
	return o, nil
}

// GetObligation returns an obligation with its status refreshed for now
func (s *feeServiceImpl) GetObligation(ctx context.Context, id uuid.UUID) (*models.FeeObligation, error) {
	o, err := s.store.GetObligation(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Refresh(s.clock.Now())
	return o, nil
}

// ListObligations filters obligations; status filters apply to the refreshed status
func (s *feeServiceImpl) ListObligations(ctx context.Context, filter models.ObligationFilter) ([]*models.FeeObligation, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, apperrors.NewValidationError([]apperrors.FieldError{{Field: "category", Message: "must be one of " + categoryList()}})
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError([]apperrors.FieldError{{Field: "status", Message: "is not a known status"}})
	}

	stored, err := s.store.ListObligations(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]*models.FeeObligation, 0, len(stored))
	for _, o := range stored {
		o.Refresh(now)
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.OverdueOnly && o.Status != models.StatusOverdue {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// AmendObligation changes the provided fields of an obligation
func (s *feeServiceImpl) AmendObligation(ctx context.Context, id uuid.UUID, in AmendObligationInput) (*models.FeeObligation, error) {
	if err := s.validator.ValidateAmend(in); err != nil {
		return nil, err
	}

	o, err := s.processor.Amend(ctx, id, in)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("obligationID", id.String()).Msg("Fee obligation amended")
	s.audit.Record(ctx, audit.EventObligationAmended, map[string]interface{}{
		"obligationId": id.String(),
		"studentId":    o.StudentID,
		"status":       string(o.Status),
		"principal":    o.PrincipalAmount.String(),
	})
	return o, nil
}

// DeleteObligation removes an obligation and its payments
func (s *feeServiceImpl) DeleteObligation(ctx context.Context, id uuid.UUID) error {
	o, err := s.processor.Delete(ctx, id)
	if err != nil {
		return err
	}

	logger.Info().Str("obligationID", id.String()).Msg("Fee obligation deleted")
	s.audit.Record(ctx, audit.EventObligationDeleted, map[string]interface{}{
		"obligationId": id.String(),
		"studentId":    o.StudentID,
	})
	return nil
}

// RecordPayment validates a payment and applies it through the processor
func (s *feeServiceImpl) RecordPayment(ctx context.Context, obligationID uuid.UUID, in PaymentInput) (*models.Payment, error) {
	if err := s.validator.ValidatePayment(in); err != nil {
		return nil, err
	}

	payment, o, err := s.processor.Process(ctx, obligationID, in)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("obligationID", obligationID.String()).Str("paymentID", payment.ID.String()).
		Str("amount", payment.Amount.String()).Str("status", string(o.Status)).Msg("Payment recorded")
	s.audit.Record(ctx, audit.EventPaymentRecorded, map[string]interface{}{
		"obligationId": obligationID.String(),
		"paymentId":    payment.ID.String(),
		"studentId":    payment.StudentID,
		"amount":       payment.Amount.String(),
		"method":       string(payment.Method),
		"status":       string(o.Status),
	})
	return payment, nil
}

// ListPayments returns payments of one obligation or one student, newest first
func (s *feeServiceImpl) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	if filter.ObligationID == uuid.Nil && filter.StudentID == "" {
		return nil, apperrors.NewValidationError([]apperrors.FieldError{{Field: "filter", Message: "obligation or student is required"}})
	}
	if filter.ObligationID != uuid.Nil {
		if _, err := s.store.GetObligation(ctx, filter.ObligationID); err != nil {
			return nil, err
		}
	}
	return s.store.ListPayments(ctx, filter)
}

// MarkFullyPaid settles the outstanding amount with an administrative adjustment payment.
// The payment bypasses the method allow-list but still goes through the processor, so the
// payment trail keeps summing to AmountPaid. Already paid obligations are returned as they are.
func (s *feeServiceImpl) MarkFullyPaid(ctx context.Context, id uuid.UUID) (*models.FeeObligation, error) {
	payment, o, err := s.processor.Settle(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return o, nil
	}

	logger.Info().Str("obligationID", id.String()).Str("amount", payment.Amount.String()).Msg("Fee obligation settled administratively")
	s.audit.Record(ctx, audit.EventObligationSettled, map[string]interface{}{
		"obligationId": id.String(),
		"studentId":    o.StudentID,
		"paymentId":    payment.ID.String(),
		"amount":       payment.Amount.String(),
	})
	return o, nil
}

// SummarizeStudent returns the fee summary of a student
func (s *feeServiceImpl) SummarizeStudent(ctx context.Context, studentID string) (*models.FeeSummary, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, apperrors.NewValidationError([]apperrors.FieldError{{Field: "studentId", Message: "is required"}})
	}
	return s.summaries.Summarize(ctx, studentID)
}

// ReconcileStatuses runs the status reconciliation once
func (s *feeServiceImpl) ReconcileStatuses(ctx context.Context) (jobs.ReconcileResult, error) {
	return s.reconciler.Reconcile(ctx)
}

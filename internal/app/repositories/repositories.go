package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/db"
)

// FeeStore persists fee obligations and their payments.
//
// Writes that take an expectedVersion fail with apperrors.ErrVersionConflict when the
// stored version differs, and bump obligation.Version on success. CommitPayment updates the
// obligation and inserts the payment atomically: readers see both or neither.
type FeeStore interface {
	CreateObligation(ctx context.Context, obligation *models.FeeObligation) error
	GetObligation(ctx context.Context, id uuid.UUID) (*models.FeeObligation, error)
	// ListObligations filters by StudentID and Category only; status filters are applied
	// by callers against a refreshed status.
	ListObligations(ctx context.Context, filter models.ObligationFilter) ([]*models.FeeObligation, error)
	UpdateObligation(ctx context.Context, obligation *models.FeeObligation, expectedVersion int64) error
	UpdateStatus(ctx context.Context, obligation *models.FeeObligation, expectedVersion int64) error
	CommitPayment(ctx context.Context, obligation *models.FeeObligation, expectedVersion int64, payment *models.Payment) error
	DeleteObligation(ctx context.Context, id uuid.UUID) error
	// ListPayments orders by payment date, then creation time, newest first.
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error)
}

// StudentDirectory answers whether a student exists in the external directory.
type StudentDirectory interface {
	Exists(ctx context.Context, studentID string) (bool, error)
}

// StudentRegistry is a StudentDirectory that can also add students
type StudentRegistry interface {
	StudentDirectory
	Register(ctx context.Context, studentID, fullName string) error
}

// Repositories holds all the repository instances
type Repositories struct {
	FeeStore         FeeStore
	StudentDirectory StudentRegistry
}

// NewRepositories initializes the Postgres-backed repositories
func NewRepositories(database *db.PostgresDB) *Repositories {
	return &Repositories{
		FeeStore:         NewFeeRepository(database),
		StudentDirectory: NewStudentRepository(database.Pool),
	}
}

// NewMemoryRepositories initializes in-memory repositories for ephemeral environments.
// Every student id in knownStudents is treated as existing.
func NewMemoryRepositories(knownStudents ...string) *Repositories {
	return &Repositories{
		FeeStore:         NewMemoryFeeStore(),
		StudentDirectory: NewMemoryStudentDirectory(knownStudents...),
	}
}

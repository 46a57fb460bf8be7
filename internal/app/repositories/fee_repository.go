package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/db"
	"github.com/yigit/bursar/internal/pkg/apperrors"
	"github.com/yigit/bursar/internal/pkg/dberrors"
	"github.com/yigit/bursar/internal/pkg/logger"
)

const (
	obligationsTable = "fee_obligations"
	paymentsTable    = "fee_payments"

	obligationStudentFK = "fee_obligations_student_id_fkey"
)

var obligationColumns = []string{
	"id", "student_id", "category", "principal_amount", "amount_paid", "due_date",
	"description", "status", "paid_date", "created_at", "updated_at", "version",
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var paymentColumns = []string{
	"p.id", "p.obligation_id", "p.student_id", "p.amount", "p.payment_date",
	"p.method", "p.reference", "p.created_at",
}

// FeeRepository handles fee obligation and payment database operations
type FeeRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

var _ FeeStore = (*FeeRepository)(nil)

// NewFeeRepository creates a new FeeRepository
func NewFeeRepository(database *db.PostgresDB) *FeeRepository {
	return &FeeRepository{
		db: database,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanObligation(row pgx.Row) (*models.FeeObligation, error) {
	o := &models.FeeObligation{}
	err := row.Scan(
		&o.ID, &o.StudentID, &o.Category, &o.PrincipalAmount, &o.AmountPaid, &o.DueDate,
		&o.Description, &o.Status, &o.PaidDate, &o.CreatedAt, &o.UpdatedAt, &o.Version)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(
		&p.ID, &p.ObligationID, &p.StudentID, &p.Amount, &p.PaymentDate,
		&p.Method, &p.Reference, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateObligation inserts a new fee obligation
func (r *FeeRepository) CreateObligation(ctx context.Context, o *models.FeeObligation) error {
	sql, args, err := r.sb.Insert(obligationsTable).
		Columns(obligationColumns...).
		Values(o.ID, o.StudentID, o.Category, o.PrincipalAmount, o.AmountPaid, o.DueDate,
			o.Description, o.Status, o.PaidDate, o.CreatedAt, o.UpdatedAt, o.Version).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create obligation SQL")
		return fmt.Errorf("failed to build create obligation query: %w", err)
	}

	if _, err := r.db.Pool.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsForeignKeyError(err, obligationStudentFK) {
			return apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).Str("studentID", o.StudentID).Msg("Error executing create obligation query")
		return apperrors.NewStoreFailure("create obligation", err)
	}

	return nil
}

// GetObligation retrieves an obligation by ID
func (r *FeeRepository) GetObligation(ctx context.Context, id uuid.UUID) (*models.FeeObligation, error) {
	return r.getObligation(ctx, r.db.Pool, id)
}

// getObligation reads through q so it works on the pool and inside a tx
func (r *FeeRepository) getObligation(ctx context.Context, q pgxQuerier, id uuid.UUID) (*models.FeeObligation, error) {
	sql, args, err := r.sb.Select(obligationColumns...).
		From(obligationsTable).
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get obligation SQL")
		return nil, fmt.Errorf("failed to build get obligation query: %w", err)
	}

	o, err := scanObligation(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrObligationNotFound
		}
		logger.Error().Err(err).Str("obligationID", id.String()).Msg("Error scanning obligation row")
		return nil, apperrors.NewStoreFailure("get obligation", err)
	}
	return o, nil
}

// ListObligations retrieves obligations by student and/or category, oldest due date first
func (r *FeeRepository) ListObligations(ctx context.Context, filter models.ObligationFilter) ([]*models.FeeObligation, error) {
	builder := r.sb.Select(obligationColumns...).
		From(obligationsTable).
		OrderBy("due_date ASC", "created_at ASC", "id ASC")
	if filter.StudentID != "" {
		builder = builder.Where(squirrel.Eq{"student_id": filter.StudentID})
	}
	if filter.Category != "" {
		builder = builder.Where(squirrel.Eq{"category": filter.Category})
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list obligations SQL")
		return nil, fmt.Errorf("failed to build list obligations query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list obligations query")
		return nil, apperrors.NewStoreFailure("list obligations", err)
	}
	defer rows.Close()

	obligations := []*models.FeeObligation{}
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			logger.Error().Err(err).Msg("Error scanning obligation row during list")
			return nil, apperrors.NewStoreFailure("scan obligation", err)
		}
		obligations = append(obligations, o)
	}
	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Msg("Error iterating obligation rows")
		return nil, apperrors.NewStoreFailure("iterate obligations", err)
	}

	return obligations, nil
}

// UpdateObligation writes every mutable column of o guarded by expectedVersion
func (r *FeeRepository) UpdateObligation(ctx context.Context, o *models.FeeObligation, expectedVersion int64) error {
	return r.updateVersioned(ctx, r.db.Pool, o, expectedVersion, map[string]interface{}{
		"category":         o.Category,
		"principal_amount": o.PrincipalAmount,
		"amount_paid":      o.AmountPaid,
		"due_date":         o.DueDate,
		"description":      o.Description,
		"status":           o.Status,
		"paid_date":        o.PaidDate,
		"updated_at":       o.UpdatedAt,
	})
}

// UpdateStatus writes only the derived status columns of o guarded by expectedVersion
func (r *FeeRepository) UpdateStatus(ctx context.Context, o *models.FeeObligation, expectedVersion int64) error {
	return r.updateVersioned(ctx, r.db.Pool, o, expectedVersion, map[string]interface{}{
		"status":     o.Status,
		"updated_at": o.UpdatedAt,
	})
}

func (r *FeeRepository) updateVersioned(ctx context.Context, q pgxQuerier, o *models.FeeObligation, expectedVersion int64, set map[string]interface{}) error {
	set["version"] = expectedVersion + 1
	sql, args, err := r.sb.Update(obligationsTable).
		SetMap(set).
		Where(squirrel.Eq{"id": o.ID, "version": expectedVersion}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update obligation SQL")
		return fmt.Errorf("failed to build update obligation query: %w", err)
	}

	cmdTag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("obligationID", o.ID.String()).Msg("Error executing update obligation query")
		return apperrors.NewStoreFailure("update obligation", err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Either the row is gone or another writer bumped the version first
		if _, err := r.getObligation(ctx, q, o.ID); err != nil {
			return err
		}
		return apperrors.ErrVersionConflict
	}

	o.Version = expectedVersion + 1
	return nil
}

// CommitPayment updates the obligation and inserts the payment in one transaction
func (r *FeeRepository) CommitPayment(ctx context.Context, o *models.FeeObligation, expectedVersion int64, p *models.Payment) error {
	insertSQL, insertArgs, err := r.sb.Insert(paymentsTable).
		Columns("id", "obligation_id", "student_id", "amount", "payment_date", "method", "reference", "created_at").
		Values(p.ID, p.ObligationID, p.StudentID, p.Amount, p.PaymentDate, p.Method, p.Reference, p.CreatedAt).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building insert payment SQL")
		return fmt.Errorf("failed to build insert payment query: %w", err)
	}

	err = r.db.WithTransaction(ctx, db.PaymentTxOptions, func(ctx context.Context, tx pgx.Tx) error {
		if err := r.updateVersioned(ctx, tx, o, expectedVersion, map[string]interface{}{
			"amount_paid": o.AmountPaid,
			"status":      o.Status,
			"paid_date":   o.PaidDate,
			"updated_at":  o.UpdatedAt,
		}); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, insertSQL, insertArgs...); err != nil {
			logger.Error().Err(err).Str("obligationID", o.ID.String()).Msg("Error executing insert payment query")
			return apperrors.NewStoreFailure("insert payment", err)
		}
		return nil
	})
	if err != nil {
		// The version was bumped on the struct before the tx rolled back
		o.Version = expectedVersion
		if dberrors.IsRetryableTxError(err) {
			return apperrors.ErrVersionConflict
		}
		return err
	}
	return nil
}

// DeleteObligation deletes an obligation; its payments go with it via ON DELETE CASCADE
func (r *FeeRepository) DeleteObligation(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.sb.Delete(obligationsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete obligation SQL")
		return fmt.Errorf("failed to build delete obligation query: %w", err)
	}

	cmdTag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("obligationID", id.String()).Msg("Error executing delete obligation query")
		return apperrors.NewStoreFailure("delete obligation", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrObligationNotFound
	}
	return nil
}

// ListPayments retrieves payments by obligation or by student, most recent payment date first
func (r *FeeRepository) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	builder := r.sb.Select(paymentColumns...).
		From(paymentsTable + " p").
		OrderBy("p.payment_date DESC", "p.created_at DESC", "p.id DESC")
	if filter.ObligationID != uuid.Nil {
		builder = builder.Where(squirrel.Eq{"p.obligation_id": filter.ObligationID})
	}
	if filter.StudentID != "" {
		builder = builder.Where(squirrel.Eq{"p.student_id": filter.StudentID})
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list payments SQL")
		return nil, fmt.Errorf("failed to build list payments query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list payments query")
		return nil, apperrors.NewStoreFailure("list payments", err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			logger.Error().Err(err).Msg("Error scanning payment row")
			return nil, apperrors.NewStoreFailure("scan payment", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Msg("Error iterating payment rows")
		return nil, apperrors.NewStoreFailure("iterate payments", err)
	}

	return payments, nil
}

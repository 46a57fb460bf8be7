package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/pkg/apperrors"
)

var storeNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newObligation(studentID string, category models.FeeCategory, due time.Time) *models.FeeObligation {
	o := &models.FeeObligation{
		ID:              uuid.New(),
		StudentID:       studentID,
		Category:        category,
		PrincipalAmount: decimal.RequireFromString("1000.00"),
		AmountPaid:      decimal.Zero,
		DueDate:         due,
		CreatedAt:       storeNow,
		UpdatedAt:       storeNow,
	}
	o.Refresh(storeNow)
	return o
}

func newPayment(o *models.FeeObligation, amount string, date time.Time, createdAt time.Time) *models.Payment {
	return &models.Payment{
		ID:           uuid.New(),
		ObligationID: o.ID,
		StudentID:    o.StudentID,
		Amount:       decimal.RequireFromString(amount),
		PaymentDate:  date,
		Method:       models.MethodCash,
		CreatedAt:    createdAt,
	}
}

func TestMemoryFeeStore_CreateAndGetReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFeeStore()
	o := newObligation("S1", models.CategoryTuition, storeNow.AddDate(0, 1, 0))
	require.NoError(t, store.CreateObligation(ctx, o))

	o.Description = "mutated after create"

	got, err := store.GetObligation(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Description)

	got.AmountPaid = decimal.RequireFromString("5")
	again, err := store.GetObligation(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, again.AmountPaid.IsZero())
}

func TestMemoryFeeStore_GetMissing(t *testing.T) {
	_, err := NewMemoryFeeStore().GetObligation(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrObligationNotFound)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}

func TestMemoryFeeStore_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFeeStore()
	late := newObligation("S1", models.CategoryTuition, storeNow.AddDate(0, 2, 0))
	early := newObligation("S1", models.CategoryLab, storeNow.AddDate(0, 1, 0))
	other := newObligation("S2", models.CategoryTuition, storeNow.AddDate(0, 1, 0))
	for _, o := range []*models.FeeObligation{late, early, other} {
		require.NoError(t, store.CreateObligation(ctx, o))
	}

	byStudent, err := store.ListObligations(ctx, models.ObligationFilter{StudentID: "S1"})
	require.NoError(t, err)
	require.Len(t, byStudent, 2)
	assert.Equal(t, early.ID, byStudent[0].ID)
	assert.Equal(t, late.ID, byStudent[1].ID)

	tuition, err := store.ListObligations(ctx, models.ObligationFilter{Category: models.CategoryTuition})
	require.NoError(t, err)
	assert.Len(t, tuition, 2)

	none, err := store.ListObligations(ctx, models.ObligationFilter{StudentID: "S9"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryFeeStore_VersionChecks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFeeStore()
	o := newObligation("S1", models.CategoryTuition, storeNow.AddDate(0, 1, 0))
	require.NoError(t, store.CreateObligation(ctx, o))

	o.Description = "v1"
	require.NoError(t, store.UpdateObligation(ctx, o, 0))
	assert.Equal(t, int64(1), o.Version)

	stale := o.Clone()
	stale.Description = "stale"
	err := store.UpdateObligation(ctx, stale, 0)
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	err = store.UpdateStatus(ctx, newObligation("S1", models.CategoryLab, storeNow), 0)
	assert.ErrorIs(t, err, apperrors.ErrObligationNotFound)
}

func TestMemoryFeeStore_UpdateStatusTouchesOnlyStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFeeStore()
	o := newObligation("S1", models.CategoryTuition, storeNow.AddDate(0, 0, -1))
	o.Status = models.StatusPending
	require.NoError(t, store.CreateObligation(ctx, o))

	view := o.Clone()
	view.Description = "not persisted"
	view.Status = models.StatusOverdue
	require.NoError(t, store.UpdateStatus(ctx, view, 0))
	assert.Equal(t, int64(1), view.Version)

	got, err := store.GetObligation(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOverdue, got.Status)
	assert.Empty(t, got.Description)
	assert.Equal(t, int64(1), got.Version)
}

func TestMemoryFeeStore_CommitPaymentIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFeeStore()
	o := newObligation("S1", models.CategoryTuition, storeNow.AddDate(0, 1, 0))
	require.NoError(t, store.CreateObligation(ctx, o))

	p := newPayment(o, "400", storeNow, storeNow)
	o.ApplyPayment(p.Amount, storeNow)
	require.NoError(t, store.CommitPayment(ctx, o, 0, p))

	stale := o.Clone()
	stale.Version = 0
	err := store.CommitPayment(ctx, stale, 0, newPayment(o, "1", storeNow, storeNow))
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)

	payments, err := store.ListPayments(ctx, models.PaymentFilter{ObligationID: o.ID})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Amount.Equal(decimal.RequireFromString("400")))

	got, err := store.GetObligation(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPaid.Equal(decimal.RequireFromString("400")))
	assert.Equal(t, models.StatusPartiallyPaid, got.Status)
}

func TestMemoryFeeStore_FailNextCommits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFeeStore()
	o := newObligation("S1", models.CategoryTuition, storeNow.AddDate(0, 1, 0))
	require.NoError(t, store.CreateObligation(ctx, o))

	store.FailNextCommits(1)
	p := newPayment(o, "10", storeNow, storeNow)
	assert.ErrorIs(t, store.CommitPayment(ctx, o.Clone(), 0, p), apperrors.ErrVersionConflict)
	assert.NoError(t, store.CommitPayment(ctx, o.Clone(), 0, p))
}

func TestMemoryFeeStore_DeleteCascadesPayments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFeeStore()
	o := newObligation("S1", models.CategoryTuition, storeNow.AddDate(0, 1, 0))
	require.NoError(t, store.CreateObligation(ctx, o))
	require.NoError(t, store.CommitPayment(ctx, o, 0, newPayment(o, "10", storeNow, storeNow)))

	require.NoError(t, store.DeleteObligation(ctx, o.ID))
	assert.ErrorIs(t, store.DeleteObligation(ctx, o.ID), apperrors.ErrObligationNotFound)

	payments, err := store.ListPayments(ctx, models.PaymentFilter{StudentID: "S1"})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestMemoryFeeStore_ListPaymentsOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFeeStore()
	a := newObligation("S1", models.CategoryTuition, storeNow.AddDate(0, 1, 0))
	b := newObligation("S1", models.CategoryLab, storeNow.AddDate(0, 1, 0))
	require.NoError(t, store.CreateObligation(ctx, a))
	require.NoError(t, store.CreateObligation(ctx, b))

	day1 := models.DateOf(storeNow.AddDate(0, 0, -2))
	day2 := models.DateOf(storeNow)
	older := newPayment(a, "1", day1, storeNow)
	sameDayFirst := newPayment(b, "2", day2, storeNow)
	sameDaySecond := newPayment(a, "3", day2, storeNow.Add(time.Minute))

	require.NoError(t, store.CommitPayment(ctx, a, 0, older))
	require.NoError(t, store.CommitPayment(ctx, b, 0, sameDayFirst))
	require.NoError(t, store.CommitPayment(ctx, a, 1, sameDaySecond))

	all, err := store.ListPayments(ctx, models.PaymentFilter{StudentID: "S1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, sameDaySecond.ID, all[0].ID)
	assert.Equal(t, sameDayFirst.ID, all[1].ID)
	assert.Equal(t, older.ID, all[2].ID)
}

func TestMemoryStudentDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryStudentDirectory("S1")

	ok, err := dir.Exists(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dir.Exists(ctx, "S2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, dir.Register(ctx, "S2", "Ada"))
	assert.ErrorIs(t, dir.Register(ctx, "S2", "Ada"), ErrStudentIDExists)
}

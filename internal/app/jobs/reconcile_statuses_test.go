package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/app/repositories"
	"github.com/yigit/bursar/internal/pkg/apperrors"
)

var created = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func seedObligation(t *testing.T, store repositories.FeeStore, due time.Time, paid string) *models.FeeObligation {
	t.Helper()
	o := &models.FeeObligation{
		ID:              uuid.New(),
		StudentID:       "S1",
		Category:        models.CategoryTuition,
		PrincipalAmount: decimal.RequireFromString("1000"),
		AmountPaid:      decimal.RequireFromString(paid),
		DueDate:         due,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	o.Refresh(created)
	require.NoError(t, store.CreateObligation(context.Background(), o))
	return o
}

type countingSink struct{ events int }

func (c *countingSink) Record(context.Context, string, map[string]interface{}) { c.events++ }

func TestReconcile_UpdatesOnlyChangedAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryFeeStore()
	pastDue := seedObligation(t, store, models.DateOf(created.AddDate(0, 0, 10)), "0")
	partial := seedObligation(t, store, models.DateOf(created.AddDate(0, 0, 10)), "200")
	future := seedObligation(t, store, models.DateOf(created.AddDate(0, 3, 0)), "0")
	paid := seedObligation(t, store, models.DateOf(created.AddDate(0, 0, 1)), "1000")

	runAt := created.AddDate(0, 1, 0)
	sink := &countingSink{}
	job := NewReconcileStatusesJob(store, func() time.Time { return runAt }, nil, 0, sink)

	first, err := job.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Scanned)
	assert.Equal(t, 2, first.Updated)
	assert.Equal(t, 1, sink.events)

	for id, want := range map[uuid.UUID]models.FeeStatus{
		pastDue.ID: models.StatusOverdue,
		partial.ID: models.StatusOverdue,
		future.ID:  models.StatusPending,
		paid.ID:    models.StatusPaid,
	} {
		got, err := store.GetObligation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}

	got, err := store.GetObligation(ctx, partial.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPaid.Equal(decimal.RequireFromString("200")))

	second, err := job.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, second.Scanned)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 1, sink.events)
}

type conflictingStore struct {
	*repositories.MemoryFeeStore
}

func (c conflictingStore) UpdateStatus(context.Context, *models.FeeObligation, int64) error {
	return apperrors.ErrVersionConflict
}

func TestReconcile_SkipsVersionConflicts(t *testing.T) {
	store := conflictingStore{repositories.NewMemoryFeeStore()}
	seedObligation(t, store, models.DateOf(created.AddDate(0, 0, 1)), "0")

	job := NewReconcileStatusesJob(store, func() time.Time { return created.AddDate(0, 1, 0) }, nil, 0, nil)
	res, err := job.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Updated)
}

type heldLease struct{}

func (heldLease) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, nil
}

type brokenLease struct{}

func (brokenLease) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, errors.New("redis down")
}

func TestReconcile_LeaseHeldElsewhere(t *testing.T) {
	store := repositories.NewMemoryFeeStore()
	seedObligation(t, store, models.DateOf(created.AddDate(0, 0, 1)), "0")

	job := NewReconcileStatusesJob(store, func() time.Time { return created.AddDate(0, 1, 0) }, heldLease{}, time.Minute, nil)
	res, err := job.Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, res.LeaseHeld)
	assert.Zero(t, res.Scanned)
}

func TestReconcile_LeaseFailure(t *testing.T) {
	job := NewReconcileStatusesJob(repositories.NewMemoryFeeStore(), time.Now, brokenLease{}, time.Minute, nil)
	_, err := job.Reconcile(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrStoreFailure)
}

func TestReconcile_EmptyStore(t *testing.T) {
	job := NewReconcileStatusesJob(repositories.NewMemoryFeeStore(), time.Now, nil, 0, nil)
	assert.NoError(t, job.Run(context.Background()))
}

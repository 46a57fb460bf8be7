package jobs

import (
	"context"
	"time"

	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/app/repositories"
	"github.com/yigit/bursar/internal/pkg/apperrors"
	"github.com/yigit/bursar/internal/pkg/audit"
	"github.com/yigit/bursar/internal/pkg/logger"
)

// ReconcileJobName is the job and lease name of the status reconciliation
const ReconcileJobName = "reconcile-fee-statuses"

// ReconcileResult summarizes one reconciliation run
type ReconcileResult struct {
	Scanned     int       `json:"scanned"`
	Updated     int       `json:"updated"`
	Skipped     int       `json:"skipped"`
	LeaseHeld   bool      `json:"leaseHeld"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// ReconcileStatusesJob recomputes every obligation's status for the time of the run and
// persists only the ones that changed. It never touches amounts or payments.
type ReconcileStatusesJob struct {
	store    repositories.FeeStore
	now      func() time.Time
	lease    Lease
	leaseTTL time.Duration
	audit    audit.Sink
}

// NewReconcileStatusesJob creates the job. A nil lease means LocalLease, a nil sink means audit.Nop.
func NewReconcileStatusesJob(store repositories.FeeStore, now func() time.Time, lease Lease, leaseTTL time.Duration, sink audit.Sink) *ReconcileStatusesJob {
	if lease == nil {
		lease = LocalLease{}
	}
	if leaseTTL <= 0 {
		leaseTTL = 5 * time.Minute
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	return &ReconcileStatusesJob{store: store, now: now, lease: lease, leaseTTL: leaseTTL, audit: sink}
}

// Name implements Job
func (j *ReconcileStatusesJob) Name() string { return ReconcileJobName }

// Description implements Job
func (j *ReconcileStatusesJob) Description() string {
	return "Recompute derived fee obligation statuses against the current date"
}

// Run implements Job
func (j *ReconcileStatusesJob) Run(ctx context.Context) error {
	_, err := j.Reconcile(ctx)
	return err
}

// Reconcile performs one run. When another instance holds the lease nothing is scanned
// and LeaseHeld is true.
func (j *ReconcileStatusesJob) Reconcile(ctx context.Context) (ReconcileResult, error) {
	now := j.now()
	result := ReconcileResult{StartedAt: now}

	release, acquired, err := j.lease.Acquire(ctx, ReconcileJobName, j.leaseTTL)
	if err != nil {
		return result, apperrors.NewStoreFailure("acquire reconcile lease", err)
	}
	if !acquired {
		logger.Info().Msg("Status reconciliation lease held elsewhere, skipping run")
		result.LeaseHeld = true
		result.CompletedAt = j.now()
		return result, nil
	}
	defer release()

	obligations, err := j.store.ListObligations(ctx, models.ObligationFilter{})
	if err != nil {
		return result, err
	}

	for _, stored := range obligations {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		view := stored.Clone()
		if !view.Refresh(now) {
			continue
		}
		view.UpdatedAt = now

		err := j.store.UpdateStatus(ctx, view, stored.Version)
		switch {
		case err == nil:
			result.Updated++
			logger.Debug().Str("obligationID", stored.ID.String()).
				Str("from", string(stored.Status)).Str("to", string(view.Status)).
				Msg("Obligation status reconciled")
		case apperrors.Is(err, apperrors.ErrVersionConflict, apperrors.ErrObligationNotFound):
			// A concurrent payment already recomputed it, or it was deleted
			result.Skipped++
		default:
			return result, err
		}
	}

	result.CompletedAt = j.now()
	logger.Info().Int("scanned", result.Scanned).Int("updated", result.Updated).Int("skipped", result.Skipped).
		Msg("Status reconciliation finished")

	if result.Updated > 0 {
		j.audit.Record(ctx, audit.EventStatusesReconciled, map[string]interface{}{
			"updated": result.Updated,
			"skipped": result.Skipped,
		})
	}
	return result, nil
}

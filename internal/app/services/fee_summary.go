package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/app/repositories"
)

// SummaryAggregator folds one student's obligations and payments into a FeeSummary.
// It never writes to the store.
type SummaryAggregator struct {
	store repositories.FeeStore
	clock Clock
}

// NewSummaryAggregator creates a new SummaryAggregator
func NewSummaryAggregator(store repositories.FeeStore, clock Clock) *SummaryAggregator {
	return &SummaryAggregator{store: store, clock: clock}
}

// Summarize builds the summary of studentID. A student without obligations gets zero totals.
func (a *SummaryAggregator) Summarize(ctx context.Context, studentID string) (*models.FeeSummary, error) {
	obligations, err := a.store.ListObligations(ctx, models.ObligationFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	payments, err := a.store.ListPayments(ctx, models.PaymentFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	summary := &models.FeeSummary{
		StudentID:          studentID,
		TotalPrincipal:     decimal.Zero,
		TotalPaid:          decimal.Zero,
		TotalOutstanding:   decimal.Zero,
		OverdueOutstanding: decimal.Zero,
		CountsByStatus:     make(map[models.FeeStatus]int, len(models.FeeStatuses)),
		Obligations:        obligations,
	}
	for _, s := range models.FeeStatuses {
		summary.CountsByStatus[s] = 0
	}

	for _, o := range obligations {
		o.Refresh(now)
		summary.TotalPrincipal = summary.TotalPrincipal.Add(o.PrincipalAmount)
		summary.TotalPaid = summary.TotalPaid.Add(o.AmountPaid)
		summary.TotalOutstanding = summary.TotalOutstanding.Add(o.Outstanding())
		if o.Status == models.StatusOverdue {
			summary.OverdueOutstanding = summary.OverdueOutstanding.Add(o.Outstanding())
		}
		summary.CountsByStatus[o.Status]++
	}

	// Payments arrive newest first
	if len(payments) > models.RecentPaymentsLimit {
		payments = payments[:models.RecentPaymentsLimit]
	}
	summary.RecentPayments = payments

	return summary, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeCategory classifies what an obligation is charged for
type FeeCategory string

const (
	CategoryTuition  FeeCategory = "TUITION"
	CategoryLab      FeeCategory = "LAB"
	CategoryLibrary  FeeCategory = "LIBRARY"
	CategoryActivity FeeCategory = "ACTIVITY"
	CategoryOther    FeeCategory = "OTHER"
)

// FeeCategories lists every valid category in display order.
var FeeCategories = []FeeCategory{CategoryTuition, CategoryLab, CategoryLibrary, CategoryActivity, CategoryOther}

// Valid reports whether c is a known category.
func (c FeeCategory) Valid() bool {
	for _, v := range FeeCategories {
		if v == c {
			return true
		}
	}
	return false
}

// FeeStatus is derived from amounts and due date, see ComputeStatus.
type FeeStatus string

const (
	StatusPending       FeeStatus = "PENDING"
	StatusPartiallyPaid FeeStatus = "PARTIALLY_PAID"
	StatusPaid          FeeStatus = "PAID"
	StatusOverdue       FeeStatus = "OVERDUE"
)

// FeeStatuses lists every status in display order.
var FeeStatuses = []FeeStatus{StatusPending, StatusPartiallyPaid, StatusPaid, StatusOverdue}

// Valid reports whether s is a known status.
func (s FeeStatus) Valid() bool {
	for _, v := range FeeStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// FeeObligation defines one amount owed by one student, stored in 'fee_obligations'
type FeeObligation struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	StudentID       string          `json:"studentId" db:"student_id"`
	Category        FeeCategory     `json:"category" db:"category"`
	PrincipalAmount decimal.Decimal `json:"principalAmount" db:"principal_amount"`
	AmountPaid      decimal.Decimal `json:"amountPaid" db:"amount_paid"`
	DueDate         time.Time       `json:"dueDate" db:"due_date"`
	Description     string          `json:"description" db:"description"`
	Status          FeeStatus       `json:"status" db:"status"`
	PaidDate        *time.Time      `json:"paidDate,omitempty" db:"paid_date"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
	Version         int64           `json:"version" db:"version"` // optimistic concurrency token
}

// Outstanding returns principal minus amount paid.
func (o *FeeObligation) Outstanding() decimal.Decimal {
	return o.PrincipalAmount.Sub(o.AmountPaid)
}

// IsPaid reports whether the obligation has been settled in full.
func (o *FeeObligation) IsPaid() bool {
	return o.Status == StatusPaid
}

// Clone returns a copy that shares no pointers with o.
func (o *FeeObligation) Clone() *FeeObligation {
	c := *o
	if o.PaidDate != nil {
		t := *o.PaidDate
		c.PaidDate = &t
	}
	return &c
}

// Refresh recomputes Status from the current amounts and stamps or clears PaidDate.
// It is the only place status is assigned. Returns true when the status changed.
func (o *FeeObligation) Refresh(now time.Time) bool {
	prev := o.Status
	o.Status = ComputeStatus(o.AmountPaid, o.PrincipalAmount, o.DueDate, now)
	switch {
	case o.Status == StatusPaid && o.PaidDate == nil:
		t := now
		o.PaidDate = &t
	case o.Status != StatusPaid:
		o.PaidDate = nil
	}
	return prev != o.Status
}

// ApplyPayment adds amount to AmountPaid and refreshes status. Callers check the
// outstanding amount first.
func (o *FeeObligation) ApplyPayment(amount decimal.Decimal, now time.Time) {
	o.AmountPaid = o.AmountPaid.Add(amount)
	o.UpdatedAt = now
	o.Refresh(now)
}

// ComputeStatus derives an obligation status. A due date is past once it is strictly
// before now's calendar date, so an obligation is not overdue on its due date.
func ComputeStatus(amountPaid, principal decimal.Decimal, dueDate, now time.Time) FeeStatus {
	pastDue := DateOf(dueDate).Before(DateOf(now))
	switch {
	case amountPaid.GreaterThanOrEqual(principal):
		return StatusPaid
	case amountPaid.IsPositive() && pastDue:
		return StatusOverdue
	case amountPaid.IsPositive():
		return StatusPartiallyPaid
	case pastDue:
		return StatusOverdue
	default:
		return StatusPending
	}
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ObligationFilter selects obligations for listing. Zero fields do not filter.
type ObligationFilter struct {
	StudentID   string
	Category    FeeCategory
	Status      FeeStatus
	OverdueOnly bool
}

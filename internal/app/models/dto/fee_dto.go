package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yigit/bursar/internal/app/models"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// Date is a calendar date carried as "YYYY-MM-DD"
type Date struct {
	time.Time
}

// UnmarshalJSON accepts "YYYY-MM-DD" or an RFC 3339 timestamp
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("date %q must be formatted as %s", s, DateLayout)
		}
	}
	d.Time = models.DateOf(t)
	return nil
}

// MarshalJSON writes the date as "YYYY-MM-DD"
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

// Ptr returns the date as *time.Time, nil for a nil receiver
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// CreateFeeRequest represents the body of POST /fees
type CreateFeeRequest struct {
	StudentID       string           `json:"studentId" example:"S100"`
	Category        string           `json:"category" example:"TUITION"`
	PrincipalAmount *decimal.Decimal `json:"principalAmount" example:"1000.00"`
	DueDate         *Date            `json:"dueDate" example:"2026-10-01"`
	Description     string           `json:"description" example:"Autumn term tuition"`
}

// AmendFeeRequest represents the body of PATCH /fees/:id; omitted fields are unchanged
type AmendFeeRequest struct {
	Category        *string          `json:"category,omitempty" example:"LAB"`
	PrincipalAmount *decimal.Decimal `json:"principalAmount,omitempty" example:"900.00"`
	DueDate         *Date            `json:"dueDate,omitempty" example:"2026-11-01"`
	Description     *string          `json:"description,omitempty" example:"Lab materials"`
}

// RecordPaymentRequest represents the body of POST /fees/:id/payments
type RecordPaymentRequest struct {
	Amount      *decimal.Decimal `json:"amount" example:"400.00"`
	PaymentDate *Date            `json:"paymentDate" example:"2026-09-01"`
	Method      string           `json:"method" example:"BANK_TRANSFER"`
	Reference   *string          `json:"reference,omitempty" example:"TRX-2026-0042"`
}

// FeeIDParam binds the :id path parameter
type FeeIDParam struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// StudentIDParam binds the :studentId path parameter
type StudentIDParam struct {
	StudentID string `uri:"studentId" binding:"required,max=32"`
}

// ListFeesQuery binds the query string of GET /fees
type ListFeesQuery struct {
	StudentID string `form:"studentId" binding:"omitempty,max=32"`
	Category  string `form:"category" binding:"omitempty,oneof=TUITION LAB LIBRARY ACTIVITY OTHER"`
	Status    string `form:"status" binding:"omitempty,oneof=PENDING PARTIALLY_PAID PAID OVERDUE"`
	Overdue   bool   `form:"overdue"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Size      int    `form:"size" binding:"omitempty,min=1,max=100"`
}

// FeeResponse represents an obligation on the wire. Amounts are fixed to two places.
type FeeResponse struct {
	ID              uuid.UUID `json:"id"`
	StudentID       string    `json:"studentId"`
	Category        string    `json:"category"`
	PrincipalAmount string    `json:"principalAmount" example:"1000.00"`
	AmountPaid      string    `json:"amountPaid" example:"400.00"`
	Outstanding     string    `json:"outstanding" example:"600.00"`
	DueDate         Date      `json:"dueDate" example:"2026-10-01"`
	Description     string    `json:"description,omitempty"`
	Status          string    `json:"status" example:"PARTIALLY_PAID"`
	PaidDate        *Date     `json:"paidDate,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PaymentResponse represents a payment on the wire
type PaymentResponse struct {
	ID           uuid.UUID `json:"id"`
	ObligationID uuid.UUID `json:"obligationId"`
	StudentID    string    `json:"studentId"`
	Amount       string    `json:"amount" example:"400.00"`
	PaymentDate  Date      `json:"paymentDate" example:"2026-09-01"`
	Method       string    `json:"method" example:"BANK_TRANSFER"`
	Reference    *string   `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FeeSummaryResponse represents a student's fee summary on the wire
type FeeSummaryResponse struct {
	StudentID          string            `json:"studentId"`
	TotalPrincipal     string            `json:"totalPrincipal"`
	TotalPaid          string            `json:"totalPaid"`
	TotalOutstanding   string            `json:"totalOutstanding"`
	OverdueOutstanding string            `json:"overdueOutstanding"`
	CountsByStatus     map[string]int    `json:"countsByStatus"`
	Obligations        []FeeResponse     `json:"obligations"`
	RecentPayments     []PaymentResponse `json:"recentPayments"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FromFee converts a models.FeeObligation to a FeeResponse
func FromFee(o *models.FeeObligation) FeeResponse {
	resp := FeeResponse{
		ID:              o.ID,
		StudentID:       o.StudentID,
		Category:        string(o.Category),
		PrincipalAmount: money(o.PrincipalAmount),
		AmountPaid:      money(o.AmountPaid),
		Outstanding:     money(o.Outstanding()),
		DueDate:         Date{o.DueDate},
		Description:     o.Description,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.PaidDate != nil {
		resp.PaidDate = &Date{models.DateOf(*o.PaidDate)}
	}
	return resp
}

// FromFees converts a list of obligations
func FromFees(list []*models.FeeObligation) []FeeResponse {
	out := make([]FeeResponse, 0, len(list))
	for _, o := range list {
		out = append(out, FromFee(o))
	}
	return out
}

// FromPayment converts a models.Payment to a PaymentResponse
func FromPayment(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:           p.ID,
		ObligationID: p.ObligationID,
		StudentID:    p.StudentID,
		Amount:       money(p.Amount),
		PaymentDate:  Date{p.PaymentDate},
		Method:       string(p.Method),
		Reference:    p.Reference,
		CreatedAt:    p.CreatedAt,
	}
}

// FromPayments converts a list of payments
func FromPayments(list []*models.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, FromPayment(p))
	}
	return out
}

// FromSummary converts a models.FeeSummary to a FeeSummaryResponse
func FromSummary(s *models.FeeSummary) FeeSummaryResponse {
	counts := make(map[string]int, len(s.CountsByStatus))
	for status, n := range s.CountsByStatus {
		counts[string(status)] = n
	}
	return FeeSummaryResponse{
		StudentID:          s.StudentID,
		TotalPrincipal:     money(s.TotalPrincipal),
		TotalPaid:          money(s.TotalPaid),
		TotalOutstanding:   money(s.TotalOutstanding),
		OverdueOutstanding: money(s.OverdueOutstanding),
		CountsByStatus:     counts,
		Obligations:        FromFees(s.Obligations),
		RecentPayments:     FromPayments(s.RecentPayments),
	}
}

package models

import "github.com/shopspring/decimal"

// RecentPaymentsLimit is how many payments a summary carries.
const RecentPaymentsLimit = 10

// FeeSummary is a read-only rollup of one student's ledger. It is never persisted.
type FeeSummary struct {
	StudentID          string            `json:"studentId"`
	TotalPrincipal     decimal.Decimal   `json:"totalPrincipal"`
	TotalPaid          decimal.Decimal   `json:"totalPaid"`
	TotalOutstanding   decimal.Decimal   `json:"totalOutstanding"`
	OverdueOutstanding decimal.Decimal   `json:"overdueOutstanding"`
	CountsByStatus     map[FeeStatus]int `json:"countsByStatus"`
	Obligations        []*FeeObligation  `json:"obligations"`
	RecentPayments     []*Payment        `json:"recentPayments"`
}

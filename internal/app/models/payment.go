package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how funds were received
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCheque       PaymentMethod = "CHEQUE"
	MethodMobileMoney  PaymentMethod = "MOBILE_MONEY"

	// MethodAdminAdjustment is reserved for administrative settlement and is not accepted from callers.
	MethodAdminAdjustment PaymentMethod = "ADMIN_ADJUSTMENT"
)

// PaymentMethods is the allow-list accepted on recorded payments.
var PaymentMethods = []PaymentMethod{MethodCash, MethodCard, MethodBankTransfer, MethodCheque, MethodMobileMoney}

// Allowed reports whether m may be submitted by a caller.
func (m PaymentMethod) Allowed() bool {
	for _, v := range PaymentMethods {
		if v == m {
			return true
		}
	}
	return false
}

// Payment defines one funds-received event, stored in 'fee_payments'
type Payment struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	ObligationID uuid.UUID       `json:"obligationId" db:"obligation_id"`
	StudentID    string          `json:"studentId" db:"student_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate  time.Time       `json:"paymentDate" db:"payment_date"`
	Method       PaymentMethod   `json:"method" db:"method"`
	Reference    *string         `json:"reference,omitempty" db:"reference"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

// PaymentFilter selects payments by obligation or by student.
type PaymentFilter struct {
	ObligationID uuid.UUID
	StudentID    string
}

package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/pkg/apperrors"
	"github.com/yigit/bursar/internal/pkg/validation"
)

// CreateObligationInput carries the fields of a new obligation
type CreateObligationInput struct {
	StudentID       string
	Category        models.FeeCategory
	PrincipalAmount *decimal.Decimal
	DueDate         *time.Time
	Description     string
}

// AmendObligationInput carries the fields to change; nil fields are left as they are
type AmendObligationInput struct {
	Category        *models.FeeCategory
	PrincipalAmount *decimal.Decimal
	DueDate         *time.Time
	Description     *string
}

// IsEmpty reports whether no field is set.
func (in AmendObligationInput) IsEmpty() bool {
	return in.Category == nil && in.PrincipalAmount == nil && in.DueDate == nil && in.Description == nil
}

// PaymentInput carries a payment to record against an obligation
type PaymentInput struct {
	Amount      *decimal.Decimal
	PaymentDate *time.Time
	Method      models.PaymentMethod
	Reference   *string
}

// FeeValidator applies structural rules (request only) and business rules
// (request against current obligation state). Every failure is collected.
type FeeValidator struct {
	clock Clock
}

// NewFeeValidator creates a validator that judges dates against clock
func NewFeeValidator(clock Clock) *FeeValidator {
	return &FeeValidator{clock: clock}
}

func categoryList() string {
	names := make([]string, len(models.FeeCategories))
	for i, c := range models.FeeCategories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func methodList() string {
	names := make([]string, len(models.PaymentMethods))
	for i, m := range models.PaymentMethods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func (v *FeeValidator) checkCategory(c *validation.Collector, category models.FeeCategory) {
	c.Check(category.Valid(), "category", "must be one of "+categoryList())
}

func (v *FeeValidator) checkPrincipal(c *validation.Collector, principal *decimal.Decimal) {
	if msg := validation.NewAmountValidation(principal).Validate(); msg != "" {
		c.Add("principalAmount", msg)
	}
}

func (v *FeeValidator) checkDueDate(c *validation.Collector, due *time.Time, today time.Time) {
	if msg := validation.NewDateValidation(due, today).OnOrAfterToday().Validate(); msg != "" {
		c.Add("dueDate", msg)
	}
}

func (v *FeeValidator) checkDescription(c *validation.Collector, description string) {
	ok := validation.NewStringValidation(description).
		WithRequired(false).
		WithMaxLength(validation.DescriptionMaxLength).
		Validate()
	c.Check(ok, "description", fmt.Sprintf("must be at most %d characters", validation.DescriptionMaxLength))
}

// ValidateCreate checks a new obligation request
func (v *FeeValidator) ValidateCreate(in CreateObligationInput) error {
	var c validation.Collector
	today := v.clock.Now()

	if strings.TrimSpace(in.StudentID) == "" {
		c.Add("studentId", "is required")
	} else {
		ok := validation.NewStringValidation(in.StudentID).WithMaxLength(validation.StudentIDMaxLength).Validate()
		c.Check(ok, "studentId", fmt.Sprintf("must be at most %d characters", validation.StudentIDMaxLength))
	}
	v.checkCategory(&c, in.Category)
	v.checkPrincipal(&c, in.PrincipalAmount)
	v.checkDueDate(&c, in.DueDate, today)
	v.checkDescription(&c, in.Description)

	return c.ValidationErr()
}

// ValidateAmend checks the fields present on an amendment
func (v *FeeValidator) ValidateAmend(in AmendObligationInput) error {
	var c validation.Collector
	if in.IsEmpty() {
		c.Add("body", "at least one field must be provided")
		return c.ValidationErr()
	}

	if in.Category != nil {
		v.checkCategory(&c, *in.Category)
	}
	if in.PrincipalAmount != nil {
		v.checkPrincipal(&c, in.PrincipalAmount)
	}
	if in.DueDate != nil {
		v.checkDueDate(&c, in.DueDate, v.clock.Now())
	}
	if in.Description != nil {
		v.checkDescription(&c, *in.Description)
	}

	return c.ValidationErr()
}

// ValidatePayment checks a payment request. A zero amount is accepted but must be present.
func (v *FeeValidator) ValidatePayment(in PaymentInput) error {
	var c validation.Collector

	if msg := validation.NewAmountValidation(in.Amount).WithAllowZero(true).Validate(); msg != "" {
		c.Add("amount", msg)
	}
	if msg := validation.NewDateValidation(in.PaymentDate, v.clock.Now()).OnOrBeforeToday().Validate(); msg != "" {
		c.Add("paymentDate", msg)
	}
	c.Check(in.Method.Allowed(), "method", "must be one of "+methodList())
	if in.Reference != nil {
		ok := validation.NewStringValidation(*in.Reference).
			WithRequired(false).
			WithMaxLength(validation.ReferenceMaxLength).
			Validate()
		c.Check(ok, "reference", fmt.Sprintf("must be at most %d characters", validation.ReferenceMaxLength))
	}

	return c.ValidationErr()
}

// CheckPayment applies the outstanding-amount rule against o as currently stored
func (v *FeeValidator) CheckPayment(o *models.FeeObligation, amount decimal.Decimal) error {
	var c validation.Collector
	if amount.GreaterThan(o.Outstanding()) {
		c.AddRuleMessage("amount", apperrors.ErrExceedsOutstanding, fmt.Sprintf("%s exceeds outstanding amount %s",
			amount.StringFixed(validation.MoneyScale), o.Outstanding().StringFixed(validation.MoneyScale)))
	}
	return c.BusinessErr()
}

// CheckAmendment applies the paid-obligation and principal rules against o as currently stored
func (v *FeeValidator) CheckAmendment(o *models.FeeObligation, in AmendObligationInput) error {
	var c validation.Collector

	if o.IsPaid() {
		if in.PrincipalAmount != nil {
			c.AddRule("principalAmount", apperrors.ErrObligationPaid)
		}
		if in.Category != nil {
			c.AddRule("category", apperrors.ErrObligationPaid)
		}
		if in.DueDate != nil {
			c.AddRule("dueDate", apperrors.ErrObligationPaid)
		}
	}
	if in.PrincipalAmount != nil && in.PrincipalAmount.LessThan(o.AmountPaid) {
		c.AddRule("principalAmount", apperrors.ErrPrincipalBelowPaid)
	}

	return c.BusinessErr()
}

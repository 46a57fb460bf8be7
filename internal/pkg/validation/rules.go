package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/yigit/bursar/internal/pkg/apperrors"
)

// Validation limits
var (
	// StudentIDMaxLength caps student references issued by the directory
	StudentIDMaxLength = 32

	// DescriptionMaxLength caps free-text descriptions (in characters)
	DescriptionMaxLength = 500

	// ReferenceMaxLength caps external transaction references
	ReferenceMaxLength = 100

	// MoneyScale is the number of decimal places stored for amounts
	MoneyScale int32 = 2

	// MaxAmount is the largest amount the NUMERIC(12, 2) columns hold
	MaxAmount = decimal.New(999999999999, -MoneyScale)
)

// Collector accumulates field failures so a caller gets all of them in one pass.
type Collector struct {
	fields []apperrors.FieldError
}

// Add records a failure for field.
func (c *Collector) Add(field, message string) {
	c.fields = append(c.fields, apperrors.FieldError{Field: field, Message: message})
}

// AddRule records a failure tied to a rule sentinel.
func (c *Collector) AddRule(field string, rule error) {
	c.fields = append(c.fields, apperrors.FieldError{Field: field, Message: rule.Error(), Rule: rule})
}

// AddRuleMessage records a failure tied to a rule sentinel with a specific message.
func (c *Collector) AddRuleMessage(field string, rule error, message string) {
	c.fields = append(c.fields, apperrors.FieldError{Field: field, Message: message, Rule: rule})
}

// Check records message for field when ok is false.
func (c *Collector) Check(ok bool, field, message string) {
	if !ok {
		c.Add(field, message)
	}
}

// ValidationErr returns a *apperrors.ValidationError, or nil when nothing was collected.
func (c *Collector) ValidationErr() error {
	return apperrors.NewValidationError(c.fields)
}

// BusinessErr returns a *apperrors.BusinessRuleError, or nil when nothing was collected.
func (c *Collector) BusinessErr() error {
	return apperrors.NewBusinessRuleError(c.fields)
}

// String validation
type StringValidation struct {
	Value    string
	MaxLen   int
	Required bool
}

// NewStringValidation creates a new string validation
func NewStringValidation(value string) *StringValidation {
	return &StringValidation{
		Value:    value,
		Required: true,
	}
}

// WithMaxLength sets maximum length
func (v *StringValidation) WithMaxLength(max int) *StringValidation {
	v.MaxLen = max
	return v
}

// WithRequired sets if field is required
func (v *StringValidation) WithRequired(required bool) *StringValidation {
	v.Required = required
	return v
}

// Validate performs validation. Lengths count characters, not bytes.
func (v *StringValidation) Validate() bool {
	value := strings.TrimSpace(v.Value)
	if v.Required && value == "" {
		return false
	}

	// Skip other validations for empty optional values
	if !v.Required && value == "" {
		return true
	}

	return v.MaxLen <= 0 || utf8.RuneCountInString(v.Value) <= v.MaxLen
}

// AmountValidation checks a monetary amount
type AmountValidation struct {
	Value     *decimal.Decimal
	Required  bool
	AllowZero bool
	MaxPlaces int32
}

// NewAmountValidation creates a required, strictly positive amount validation
func NewAmountValidation(value *decimal.Decimal) *AmountValidation {
	return &AmountValidation{
		Value:     value,
		Required:  true,
		MaxPlaces: MoneyScale,
	}
}

// WithAllowZero accepts zero as a valid amount
func (v *AmountValidation) WithAllowZero(allow bool) *AmountValidation {
	v.AllowZero = allow
	return v
}

// Validate returns an empty string when the amount is acceptable, otherwise the failure message.
func (v *AmountValidation) Validate() string {
	if v.Value == nil {
		if v.Required {
			return "is required"
		}
		return ""
	}
	amount := *v.Value
	if amount.IsNegative() {
		return "must not be negative"
	}
	if amount.IsZero() && !v.AllowZero {
		return "must be greater than zero"
	}
	if v.MaxPlaces >= 0 && !amount.Equal(amount.Truncate(v.MaxPlaces)) {
		return fmt.Sprintf("must have at most %d decimal places", v.MaxPlaces)
	}
	if amount.GreaterThan(MaxAmount) {
		return "must be at most " + MaxAmount.StringFixed(MoneyScale)
	}
	return ""
}

// DateValidation compares a calendar date against today
type DateValidation struct {
	Value     *time.Time
	Today     time.Time
	NotBefore bool
	NotAfter  bool
	Required  bool
}

// NewDateValidation creates a required date validation relative to today
func NewDateValidation(value *time.Time, today time.Time) *DateValidation {
	return &DateValidation{
		Value:    value,
		Today:    dateOf(today),
		Required: true,
	}
}

// OnOrAfterToday requires the date to be today or later
func (v *DateValidation) OnOrAfterToday() *DateValidation {
	v.NotBefore = true
	return v
}

// OnOrBeforeToday requires the date to be today or earlier
func (v *DateValidation) OnOrBeforeToday() *DateValidation {
	v.NotAfter = true
	return v
}

// Validate returns an empty string when the date is acceptable, otherwise the failure message.
func (v *DateValidation) Validate() string {
	if v.Value == nil || v.Value.IsZero() {
		if v.Required {
			return "is required"
		}
		return ""
	}
	d := dateOf(*v.Value)
	if v.NotBefore && d.Before(v.Today) {
		return "must not be in the past"
	}
	if v.NotAfter && d.After(v.Today) {
		return "must not be in the future"
	}
	return ""
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

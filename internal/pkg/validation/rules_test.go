package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestAmountValidation(t *testing.T) {
	tests := []struct {
		name      string
		value     *decimal.Decimal
		allowZero bool
		want      string
	}{
		{"missing", nil, false, "is required"},
		{"negative", amount("-0.01"), true, "must not be negative"},
		{"zero rejected", amount("0"), false, "must be greater than zero"},
		{"zero allowed", amount("0"), true, ""},
		{"too precise", amount("10.005"), false, "must have at most 2 decimal places"},
		{"largest storable", amount("9999999999.99"), false, ""},
		{"beyond storage", amount("10000000000"), false, "must be at most 9999999999.99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAmountValidation(tt.value).WithAllowZero(tt.allowZero).Validate()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateValidation(t *testing.T) {
	today := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	assert.Empty(t, NewDateValidation(&today, today).OnOrAfterToday().Validate())
	assert.NotEmpty(t, NewDateValidation(&yesterday, today).OnOrAfterToday().Validate())
	assert.Empty(t, NewDateValidation(&today, today).OnOrBeforeToday().Validate())
	assert.NotEmpty(t, NewDateValidation(&tomorrow, today).OnOrBeforeToday().Validate())
	assert.Equal(t, "is required", NewDateValidation(nil, today).Validate())
}

func TestCollectorKeepsEveryFailure(t *testing.T) {
	var c Collector
	assert.NoError(t, c.ValidationErr())

	c.Add("amount", "is required")
	c.Check(false, "method", "is not accepted")
	c.Check(true, "reference", "never recorded")
	assert.EqualError(t, c.ValidationErr(), "validation failed: amount: is required; method: is not accepted")
}

package services

import "time"

// Services defined in this package:
// - FeeService: obligations, payments and summaries of the fee ledger
// - FeeValidator: structural and business rules for ledger writes
// - PaymentProcessor: serialized read-modify-write of a payment against one obligation
// - SummaryAggregator: read-side rollup of one student's ledger
// - StatementService: XLSX statements and their archive

// Clock supplies the current time. Tests pass a fixed clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

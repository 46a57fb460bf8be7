package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/pkg/audit"
	"github.com/yigit/bursar/internal/pkg/filestorage"
	"github.com/yigit/bursar/internal/pkg/logger"
	"github.com/yigit/bursar/internal/pkg/validation"
)

// Statement sheet names
const (
	SheetObligations = "Obligations"
	SheetPayments    = "Payments"
	SheetSummary     = "Summary"
)

const dateLayout = "2006-01-02"

var (
	obligationHeaders = []interface{}{"ID", "Category", "Description", "Due date", "Principal", "Paid", "Outstanding", "Status", "Paid date"}
	paymentHeaders    = []interface{}{"ID", "Obligation ID", "Payment date", "Amount", "Method", "Reference"}
)

// StatementExporter renders a student's fee summary as an XLSX workbook
type StatementExporter struct {
	clock Clock
}

// NewStatementExporter creates a new StatementExporter
func NewStatementExporter(clock Clock) *StatementExporter {
	return &StatementExporter{clock: clock}
}

// Build renders summary and the student's full payment history into an XLSX workbook
// with obligation, payment and summary sheets
func (e *StatementExporter) Build(summary *models.FeeSummary, payments []*models.Payment) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn().Err(err).Msg("Error closing statement workbook")
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetObligations); err != nil {
		return nil, fmt.Errorf("failed to name obligations sheet: %w", err)
	}
	for _, name := range []string{SheetPayments, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}
	_ = f.SetDocProps(&excelize.DocProperties{
		Creator: "bursar",
		Title:   "Fee statement " + summary.StudentID,
	})

	rows := make([][]interface{}, 0, len(summary.Obligations)+1)
	rows = append(rows, obligationHeaders)
	for _, o := range summary.Obligations {
		paidDate := ""
		if o.PaidDate != nil {
			paidDate = o.PaidDate.Format(dateLayout)
		}
		rows = append(rows, []interface{}{
			o.ID.String(),
			string(o.Category),
			o.Description,
			o.DueDate.Format(dateLayout),
			fixed(o.PrincipalAmount),
			fixed(o.AmountPaid),
			fixed(o.Outstanding()),
			string(o.Status),
			paidDate,
		})
	}
	if err := writeRows(f, SheetObligations, rows); err != nil {
		return nil, err
	}

	rows = rows[:0]
	rows = append(rows, paymentHeaders)
	for _, p := range payments {
		ref := ""
		if p.Reference != nil {
			ref = *p.Reference
		}
		rows = append(rows, []interface{}{
			p.ID.String(),
			p.ObligationID.String(),
			p.PaymentDate.Format(dateLayout),
			fixed(p.Amount),
			string(p.Method),
			ref,
		})
	}
	if err := writeRows(f, SheetPayments, rows); err != nil {
		return nil, err
	}

	rows = [][]interface{}{
		{"Student", summary.StudentID},
		{"Generated at", e.clock.Now().UTC().Format(time.RFC3339)},
		{"Total principal", fixed(summary.TotalPrincipal)},
		{"Total paid", fixed(summary.TotalPaid)},
		{"Total outstanding", fixed(summary.TotalOutstanding)},
		{"Overdue outstanding", fixed(summary.OverdueOutstanding)},
	}
	for _, s := range models.FeeStatuses {
		rows = append(rows, []interface{}{"Count " + string(s), summary.CountsByStatus[s]})
	}
	if err := writeRows(f, SheetSummary, rows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render statement: %w", err)
	}
	return buf.Bytes(), nil
}

// fixed keeps amounts as text so the workbook shows exactly two places
func fixed(d decimal.Decimal) string { return d.StringFixed(validation.MoneyScale) }

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// ArchivedStatement describes a stored statement
type ArchivedStatement struct {
	StudentID string    `json:"studentId"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// StatementService builds statements and archives them to file storage
type StatementService struct {
	fees     FeeService
	exporter *StatementExporter
	storage  filestorage.FileStorage
	urlTTL   time.Duration
	audit    audit.Sink
	clock    Clock
}

// NewStatementService creates a new StatementService. A nil storage disables Archive.
func NewStatementService(fees FeeService, exporter *StatementExporter, storage filestorage.FileStorage, urlTTL time.Duration, sink audit.Sink, clock Clock) *StatementService {
	if sink == nil {
		sink = audit.Nop{}
	}
	if urlTTL <= 0 {
		urlTTL = 24 * time.Hour
	}
	return &StatementService{fees: fees, exporter: exporter, storage: storage, urlTTL: urlTTL, audit: sink, clock: clock}
}

// Render returns the statement workbook of studentID and a suggested file name
func (s *StatementService) Render(ctx context.Context, studentID string) ([]byte, string, error) {
	summary, err := s.fees.SummarizeStudent(ctx, studentID)
	if err != nil {
		return nil, "", err
	}
	payments, err := s.fees.ListPayments(ctx, models.PaymentFilter{StudentID: summary.StudentID})
	if err != nil {
		return nil, "", err
	}
	data, err := s.exporter.Build(summary, payments)
	if err != nil {
		return nil, "", err
	}
	name := fmt.Sprintf("statement-%s-%s.xlsx", summary.StudentID, s.clock.Now().UTC().Format("20060102-150405"))
	return data, name, nil
}

// Archive renders the statement of studentID, stores it and returns where it can be fetched
func (s *StatementService) Archive(ctx context.Context, studentID string) (*ArchivedStatement, error) {
	if s.storage == nil {
		return nil, filestorage.ErrNotConfigured
	}

	data, name, err := s.Render(ctx, studentID)
	if err != nil {
		return nil, err
	}
	key := studentID + "/" + name

	info, err := s.storage.Save(ctx, key, data, filestorage.ContentTypeXLSX)
	if err != nil {
		logger.Error().Err(err).Str("studentID", studentID).Msg("Error archiving statement")
		return nil, fmt.Errorf("error archiving statement: %w", err)
	}
	url, expires, err := s.storage.URL(ctx, key, s.urlTTL)
	if err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			logger.Warn().Err(delErr).Str("key", key).Msg("Error removing unreachable statement")
		}
		return nil, fmt.Errorf("error resolving statement url: %w", err)
	}

	logger.Info().Str("studentID", studentID).Str("key", key).Int64("size", info.FileSize).Msg("Statement archived")
	s.audit.Record(ctx, audit.EventStatementArchived, map[string]interface{}{
		"studentId": studentID,
		"key":       key,
		"size":      info.FileSize,
	})
	return &ArchivedStatement{
		StudentID: studentID,
		Key:       key,
		URL:       url,
		Size:      info.FileSize,
		ExpiresAt: expires,
	}, nil
}

package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/WullieT22/Invoice-to-PO/internal/entity"
	"github.com/WullieT22/Invoice-to-PO/internal/repository"
	"github.com/WullieT22/Invoice-to-PO/internal/utils"
)

const sheet = "Matches"

var headers = []string{
	"Match ID",
	"Invoice Number",
	"Vendor",
	"Invoice Date",
	"Invoice Amount",
	"PO Number",
	"PO Line",
	"Score",
	"Source",
	"Verdict",
	"State",
	"Decided By",
	"Decided At",
	"Reasoning",
}

// Service produces XLSX workbooks of match records.
type Service struct {
	records  repository.MatchRecordRepository
	invoices repository.InvoiceRepository
	logger   *slog.Logger
}

func NewService(records repository.MatchRecordRepository, invoices repository.InvoiceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, invoices: invoices, logger: logger}
}

// ExportMatchesXLSX returns a workbook (as bytes) with one row per record matching filter.
func (s *Service) ExportMatchesXLSX(ctx context.Context, filter repository.ListFilter) ([]byte, int, error) {
	start := time.Now()

	recs, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("query match records: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	// Rename the default sheet rather than leaving an empty Sheet1 behind.
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, 0, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	invoices := make(map[uuid.UUID]*entity.Invoice)
	for i, r := range recs {
		row := i + 2
		inv, ok := invoices[r.InvoiceID]
		if !ok {
			inv, err = s.invoices.Get(ctx, r.InvoiceID)
			if err != nil {
				s.logger.Warn("export.invoice_missing", "invoice_id", r.InvoiceID, "error", err)
				inv = nil
			}
			invoices[r.InvoiceID] = inv
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.ID.String())
		if inv != nil {
			write(2, inv.Fields.InvoiceNumber)
			write(3, inv.Fields.VendorName)
			write(4, utils.FormatYMD(inv.Fields.InvoiceDate))
		}
		if r.MatchedAmount != nil {
			write(5, r.MatchedAmount.InexactFloat64())
		}
		write(6, r.PONumber)
		write(7, r.POLine)
		write(8, r.Score)
		write(9, string(r.Source))
		write(10, string(r.Verdict))
		write(11, string(r.State))
		write(12, r.DecidedBy)
		if r.DecidedAt != nil {
			write(13, r.DecidedAt.UTC().Format(time.RFC3339))
		}
		write(14, truncate(r.Reasoning, 140))
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // id
	_ = f.SetColWidth(sheet, "B", "C", 22)
	_ = f.SetColWidth(sheet, "D", "E", 14)
	_ = f.SetColWidth(sheet, "F", "G", 12)
	_ = f.SetColWidth(sheet, "H", "L", 16)
	_ = f.SetColWidth(sheet, "M", "M", 22)
	_ = f.SetColWidth(sheet, "N", "N", 60) // reasoning

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"state", filter.State,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), len(recs), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

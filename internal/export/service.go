package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bilbot/bilbot/internal/repository"
)

// Service produces XLSX bytes for a user's receipts, one row per line item
// so spreadsheet formulas can slice by item.
type Service struct {
	receipts repository.ReceiptRepository
	logger   *slog.Logger
}

func NewService(receipts repository.ReceiptRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receipts: receipts, logger: logger}
}

// ExportReceiptsXLSX returns an XLSX workbook (as bytes) covering all of the
// user's receipts. Receipts without items still get a summary row.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, userID int64) ([]byte, error) {
	start := time.Now()

	recs, err := s.receipts.ListReceiptsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Receipts"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	defaultSheet := f.GetSheetName(0)
	if defaultSheet != sheet {
		_ = f.DeleteSheet(defaultSheet)
	}

	headers := []string{
		"Date",
		"Store",
		"Item",
		"Price",
		"Currency",
		"Receipt Total",
		"Total Verified",
		"Payment Method",
		"Image Path",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		dateStr := ""
		if ts, ok := r.Record.PurchaseTimestamp(); ok {
			dateStr = ts.Format("2006-01-02")
		}
		totalStr := ""
		if r.Record.TotalAmount != nil {
			totalStr = r.Record.TotalAmount.StringFixed(2)
		}
		verified := ""
		if r.Record.TotalAmountValidated != nil {
			if *r.Record.TotalAmountValidated {
				verified = "yes"
			} else {
				verified = "no"
			}
		}

		writeCommon := func() {
			write(1, dateStr)
			write(2, r.Record.Store)
			write(5, r.Record.Currency)
			write(6, totalStr)
			write(7, verified)
			write(8, r.Record.PaymentMethod)
			write(9, r.ImagePath)
		}

		if len(r.Record.Items) == 0 {
			writeCommon()
			row++
			continue
		}
		for _, item := range r.Record.Items {
			writeCommon()
			write(3, item.Name)
			write(4, item.Price.StringFixed(2))
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 12) // date
	_ = f.SetColWidth(sheet, "B", "B", 24) // store
	_ = f.SetColWidth(sheet, "C", "C", 32) // item
	_ = f.SetColWidth(sheet, "D", "G", 12) // amounts
	_ = f.SetColWidth(sheet, "H", "H", 16) // payment
	_ = f.SetColWidth(sheet, "I", "I", 56) // path

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", userID,
		"receipts", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

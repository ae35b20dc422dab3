package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"harrisrecords/internal/entity"
)

// Service produces XLSX bytes for resolved-address result sets.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ResultsXLSX renders one workbook row per resolved address, in the order
// given, and returns the workbook as bytes.
func (s *Service) ResultsXLSX(results []entity.ResolvedAddress) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Results"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop excelize's default sheet so the workbook opens on Results
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"File No",
		"Grantor",
		"Grantee",
		"Instrument Type",
		"Recording Date",
		"Film Code",
		"Legal Description",
		"Property Address",
		"Source",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.FileNumber)
		write(2, truncate(r.Grantor, 140))
		write(3, truncate(r.Grantee, 140))
		write(4, r.InstrumentTypeLabel)
		write(5, r.RecordingDate)
		write(6, r.FilmCode)
		write(7, truncate(r.LegalDescription, 140))
		write(8, r.PropertyAddress)
		write(9, string(r.Source))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 16) // file number
	_ = f.SetColWidth(sheet, "B", "C", 32) // parties
	_ = f.SetColWidth(sheet, "D", "D", 22) // instrument type
	_ = f.SetColWidth(sheet, "E", "F", 14) // date, film code
	_ = f.SetColWidth(sheet, "G", "G", 48) // legal description
	_ = f.SetColWidth(sheet, "H", "H", 44) // address
	_ = f.SetColWidth(sheet, "I", "I", 20) // source

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

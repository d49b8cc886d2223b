// Package report renders a run's error entries as an xlsx workbook.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

const (
	SheetName = "Errores"
	MimeType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Headers are the report columns, in order.
var Headers = []string{"Documento", "Nombre", "Folio", "Oficina", "Código", "Motivo"}

// FileName is the report's name for a run folder.
func FileName(runFolder string) string {
	return fmt.Sprintf("Errores %s.xlsx", runFolder)
}

// BuildErrorReport returns an xlsx workbook with one row per entry.
func BuildErrorReport(entries []models.ErrorEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, bold)
	}

	for r, e := range entries {
		row := r + 2
		values := []string{e.DocumentName, e.ClientName, e.Folio, e.Office, string(e.Reason), e.Message()}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellStr(SheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 40)
	_ = f.SetColWidth(SheetName, "B", "B", 30)
	_ = f.SetColWidth(SheetName, "C", "C", 14)
	_ = f.SetColWidth(SheetName, "D", "D", 48)
	_ = f.SetColWidth(SheetName, "E", "E", 24)
	_ = f.SetColWidth(SheetName, "F", "F", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

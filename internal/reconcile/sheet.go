// Package reconcile matches merged pairs against the client spreadsheet and
// writes their folio and office back to it.
package reconcile

import (
	"context"
	"fmt"
	"strings"
)

// Spreadsheet is the client table a run reconciles against. Implementations
// read the first sheet of the file.
type Spreadsheet interface {
	// ReadRows returns the first sheet with its header as Rows[0]. Every row
	// is padded to the header width.
	ReadRows(ctx context.Context, sheetID string) (Sheet, error)
	WriteCell(ctx context.Context, sheetID string, update CellUpdate) error
	BatchWrite(ctx context.Context, sheetID string, updates []CellUpdate) error
}

// Sheet is a snapshot of one sheet's values.
type Sheet struct {
	Title string
	Rows  [][]string
}

// CellUpdate sets one cell. Range is in A1 notation qualified by sheet title.
type CellUpdate struct {
	Range string
	Value string
}

// A1 returns the sheet-qualified A1 reference for a cell.
func A1(sheet, column string, row int) string {
	return fmt.Sprintf("'%s'!%s%d", strings.ReplaceAll(sheet, "'", "''"), column, row)
}

// SplitA1 splits a reference produced by A1 into sheet title and cell.
func SplitA1(ref string) (sheet, cell string, err error) {
	i := strings.LastIndex(ref, "!")
	if i < 0 {
		return "", "", fmt.Errorf("range %q has no sheet", ref)
	}
	sheet, cell = ref[:i], ref[i+1:]
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if sheet == "" || cell == "" {
		return "", "", fmt.Errorf("malformed range %q", ref)
	}
	return sheet, cell, nil
}

// PadRows extends every row to width with empty cells.
func PadRows(rows [][]string, width int) [][]string {
	for i, r := range rows {
		if len(r) < width {
			padded := make([]string, width)
			copy(padded, r)
			rows[i] = padded
		}
	}
	return rows
}

// Package sheetfile serves a local .xlsx workbook as the client spreadsheet.
// The sheet id is the workbook's file path.
package sheetfile

import (
	"context"
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/filingmerger/internal/reconcile"
)

// Workbook reads and writes the first sheet of xlsx files on disk.
type Workbook struct {
	mu sync.Mutex
}

// New returns a Workbook.
func New() *Workbook {
	return &Workbook{}
}

func (w *Workbook) ReadRows(_ context.Context, path string) (reconcile.Sheet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(path)
	if err != nil {
		return reconcile.Sheet{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return reconcile.Sheet{}, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return reconcile.Sheet{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	return reconcile.Sheet{Title: sheets[0], Rows: reconcile.PadRows(rows, width)}, nil
}

func (w *Workbook) WriteCell(ctx context.Context, path string, update reconcile.CellUpdate) error {
	return w.BatchWrite(ctx, path, []reconcile.CellUpdate{update})
}

// BatchWrite applies all updates and saves the workbook once.
func (w *Workbook) BatchWrite(_ context.Context, path string, updates []reconcile.CellUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	for _, u := range updates {
		sheet, cell, err := reconcile.SplitA1(u.Range)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, u.Value); err != nil {
			return fmt.Errorf("set %s: %w", u.Range, err)
		}
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

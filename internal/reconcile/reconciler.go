package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/filingmerger/internal/identity"
	"github.com/Lllllllleong/filingmerger/internal/models"
)

const (
	NameColumn     = "NOMBRE_CTE"
	ClientIDColumn = "CLIENTE_UNICO"
	FolioHeader    = "FOLIO DE REGISTRO"
	OfficeHeader   = "OFICINA DE CORRESPONDENCIA"

	// MaxPairsPerBatch bounds one batch write to 2*MaxPairsPerBatch cells.
	MaxPairsPerBatch = 50
)

// ErrNameColumnMissing is returned by Open when the sheet has no name column.
var ErrNameColumnMissing = errors.New("spreadsheet has no " + NameColumn + " column")

type pendingPair struct {
	pair    models.MatchedPair
	updates []CellUpdate
}

// Reconciler looks pairs up by identity and queues their write-backs.
// It is not safe for concurrent use.
type Reconciler struct {
	sheet   Spreadsheet
	sheetID string
	title   string
	rows    [][]string

	nameCol, idCol, folioCol, officeCol int
	index                               map[string]int

	pending []pendingPair
}

// Open reads the sheet once, locates its columns and appends missing folio or
// office header columns.
func Open(ctx context.Context, sheet Spreadsheet, sheetID string) (*Reconciler, error) {
	s, err := sheet.ReadRows(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet %s: %w", sheetID, err)
	}
	if len(s.Rows) == 0 {
		return nil, ErrNameColumnMissing
	}
	header := s.Rows[0]

	r := &Reconciler{
		sheet:     sheet,
		sheetID:   sheetID,
		title:     s.Title,
		nameCol:   findColumn(header, func(h string) bool { return h == NameColumn }),
		idCol:     findColumn(header, func(h string) bool { return h == ClientIDColumn }),
		folioCol:  findColumn(header, func(h string) bool { return strings.Contains(h, "FOLIO") }),
		officeCol: findColumn(header, func(h string) bool { return strings.Contains(h, "OFICINA") }),
		index:     make(map[string]int),
	}
	if r.nameCol < 0 {
		return nil, ErrNameColumnMissing
	}
	if r.idCol < 0 {
		slog.Warn("Spreadsheet has no client id column; artifacts will be named without one.", "sheetId", sheetID, "column", ClientIDColumn)
	}

	if r.folioCol < 0 {
		if r.folioCol, err = r.appendHeader(ctx, &header, FolioHeader); err != nil {
			return nil, err
		}
	}
	if r.officeCol < 0 {
		if r.officeCol, err = r.appendHeader(ctx, &header, OfficeHeader); err != nil {
			return nil, err
		}
	}

	r.rows = PadRows(s.Rows[1:], len(header))
	for i, row := range r.rows {
		id := identity.Normalize(row[r.nameCol])
		if id == "" {
			continue
		}
		if prev, dup := r.index[id]; dup {
			slog.Warn("Spreadsheet has repeated client name; using the first row.", "name", id, "row", prev+2, "ignoredRow", i+2)
			continue
		}
		r.index[id] = i
	}
	return r, nil
}

func findColumn(header []string, match func(string) bool) int {
	for i, h := range header {
		if match(strings.ToUpper(strings.TrimSpace(h))) {
			return i
		}
	}
	return -1
}

func (r *Reconciler) appendHeader(ctx context.Context, header *[]string, name string) (int, error) {
	col := len(*header)
	letter, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return -1, err
	}
	if err := r.sheet.WriteCell(ctx, r.sheetID, CellUpdate{Range: A1(r.title, letter, 1), Value: name}); err != nil {
		return -1, fmt.Errorf("failed to add %q column: %w", name, err)
	}
	*header = append(*header, name)
	slog.Info("Added missing spreadsheet column.", "sheetId", r.sheetID, "column", name, "cell", letter+"1")
	return col, nil
}

// Reconcile finds the row for pair and queues its folio and office writes.
// It returns the row's client id, which may be empty, and whether a row was
// found.
func (r *Reconciler) Reconcile(pair models.MatchedPair) (string, bool, error) {
	i, ok := r.index[pair.Identity]
	if !ok {
		return "", false, nil
	}
	row := r.rows[i]
	rowNum := i + 2

	folioLetter, err := excelize.ColumnNumberToName(r.folioCol + 1)
	if err != nil {
		return "", true, err
	}
	officeLetter, err := excelize.ColumnNumberToName(r.officeCol + 1)
	if err != nil {
		return "", true, err
	}
	r.pending = append(r.pending, pendingPair{
		pair: pair,
		updates: []CellUpdate{
			{Range: A1(r.title, folioLetter, rowNum), Value: pair.Folio},
			{Range: A1(r.title, officeLetter, rowNum), Value: pair.Office},
		},
	})
	row[r.folioCol] = pair.Folio
	row[r.officeCol] = pair.Office

	if r.idCol < 0 {
		return "", true, nil
	}
	return strings.TrimSpace(row[r.idCol]), true, nil
}

// Discard drops the queued writes for pair, for a pair whose merged document
// never made it to storage.
func (r *Reconciler) Discard(pair models.MatchedPair) {
	kept := r.pending[:0]
	for _, p := range r.pending {
		if p.pair.Identity != pair.Identity {
			kept = append(kept, p)
		}
	}
	r.pending = kept
}

// Pending returns the number of pairs waiting to be written.
func (r *Reconciler) Pending() int {
	return len(r.pending)
}

// Flush writes queued updates in batches of at most MaxPairsPerBatch pairs.
// A failed batch does not stop later ones; the pairs it carried are returned
// with the joined error.
func (r *Reconciler) Flush(ctx context.Context) ([]models.MatchedPair, error) {
	var (
		failed []models.MatchedPair
		errs   []error
	)
	for start := 0; start < len(r.pending); start += MaxPairsPerBatch {
		end := min(start+MaxPairsPerBatch, len(r.pending))
		chunk := r.pending[start:end]

		updates := make([]CellUpdate, 0, 2*len(chunk))
		for _, p := range chunk {
			updates = append(updates, p.updates...)
		}
		if err := r.sheet.BatchWrite(ctx, r.sheetID, updates); err != nil {
			slog.Error("Spreadsheet batch write failed.", "sheetId", r.sheetID, "pairs", len(chunk), "error", err)
			errs = append(errs, fmt.Errorf("batch %d-%d: %w", start, end, err))
			for _, p := range chunk {
				failed = append(failed, p.pair)
			}
			continue
		}
		slog.Info("Spreadsheet batch written.", "sheetId", r.sheetID, "pairs", len(chunk), "cells", len(updates))
	}
	r.pending = nil
	return failed, errors.Join(errs...)
}

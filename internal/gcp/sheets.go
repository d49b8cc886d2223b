package gcp

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Lllllllleong/filingmerger/internal/reconcile"
)

// rawInput stores values exactly as given, without formula parsing.
const rawInput = "RAW"

// SheetsSpreadsheet serves a Google Sheet as the client spreadsheet.
type SheetsSpreadsheet struct {
	svc   *sheets.Service
	retry RetryPolicy
}

// NewSheetsService creates a Sheets client with read/write scope.
func NewSheetsService(ctx context.Context, opts ...option.ClientOption) (*sheets.Service, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets client: %w", err)
	}
	return svc, nil
}

func NewSheetsSpreadsheet(svc *sheets.Service) *SheetsSpreadsheet {
	return &SheetsSpreadsheet{svc: svc, retry: DefaultRetry}
}

// ReadRows reads A1:Z of the first sheet.
func (s *SheetsSpreadsheet) ReadRows(ctx context.Context, sheetID string) (reconcile.Sheet, error) {
	var meta *sheets.Spreadsheet
	err := s.retry.Do(ctx, "sheets.get", func(ctx context.Context) error {
		var err error
		meta, err = s.svc.Spreadsheets.Get(sheetID).Fields("sheets.properties.title").Context(ctx).Do()
		return err
	})
	if err != nil {
		return reconcile.Sheet{}, fmt.Errorf("failed to get spreadsheet metadata: %w", err)
	}
	if len(meta.Sheets) == 0 || meta.Sheets[0].Properties == nil {
		return reconcile.Sheet{}, fmt.Errorf("spreadsheet %s has no sheets", sheetID)
	}
	title := meta.Sheets[0].Properties.Title

	var vr *sheets.ValueRange
	err = s.retry.Do(ctx, "sheets.values.get", func(ctx context.Context) error {
		var err error
		vr, err = s.svc.Spreadsheets.Values.Get(sheetID, reconcile.A1(title, "A", 1)+":Z").Context(ctx).Do()
		return err
	})
	if err != nil {
		return reconcile.Sheet{}, fmt.Errorf("failed to read values: %w", err)
	}

	rows := make([][]string, len(vr.Values))
	for i, r := range vr.Values {
		rows[i] = make([]string, len(r))
		for j, v := range r {
			rows[i][j] = fmt.Sprint(v)
		}
	}
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	return reconcile.Sheet{Title: title, Rows: reconcile.PadRows(rows, width)}, nil
}

func (s *SheetsSpreadsheet) WriteCell(ctx context.Context, sheetID string, update reconcile.CellUpdate) error {
	vr := &sheets.ValueRange{Range: update.Range, Values: [][]interface{}{{update.Value}}}
	return s.retry.Do(ctx, "sheets.values.update", func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.Update(sheetID, update.Range, vr).ValueInputOption(rawInput).Context(ctx).Do()
		return err
	})
}

func (s *SheetsSpreadsheet) BatchWrite(ctx context.Context, sheetID string, updates []reconcile.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: rawInput}
	for _, u := range updates {
		req.Data = append(req.Data, &sheets.ValueRange{Range: u.Range, Values: [][]interface{}{{u.Value}}})
	}
	return s.retry.Do(ctx, "sheets.values.batchUpdate", func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.BatchUpdate(sheetID, req).Context(ctx).Do()
		return err
	})
}

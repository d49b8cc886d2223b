package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

type fakeSheet struct {
	sheet      Sheet
	readErr    error
	failBatch  map[int]bool
	cells      map[string]string
	batchSizes []int
}

func newFakeSheet(rows ...[]string) *fakeSheet {
	return &fakeSheet{sheet: Sheet{Title: "Hoja 1", Rows: rows}, cells: map[string]string{}, failBatch: map[int]bool{}}
}

func (f *fakeSheet) ReadRows(context.Context, string) (Sheet, error) {
	return f.sheet, f.readErr
}

func (f *fakeSheet) WriteCell(_ context.Context, _ string, u CellUpdate) error {
	f.cells[u.Range] = u.Value
	return nil
}

func (f *fakeSheet) BatchWrite(_ context.Context, _ string, updates []CellUpdate) error {
	n := len(f.batchSizes)
	f.batchSizes = append(f.batchSizes, len(updates))
	if f.failBatch[n] {
		return errors.New("503 backend unavailable")
	}
	for _, u := range updates {
		f.cells[u.Range] = u.Value
	}
	return nil
}

func pair(name string) models.MatchedPair {
	return models.MatchedPair{Identity: name, Name: name, Folio: "123/2024", Office: "Oficina Central"}
}

func TestReconcileFound(t *testing.T) {
	sheet := newFakeSheet(
		[]string{"CLIENTE_UNICO", "NOMBRE_CTE", "Folio", "Oficina"},
		[]string{"C001", "Juan Pérez"},
		[]string{"C002", "MARIA LOPEZ", "", ""},
	)
	ctx := context.Background()
	r, err := Open(ctx, sheet, "sheet-1")
	require.NoError(t, err)

	id, found, err := r.Reconcile(pair("JUAN PEREZ"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "C001", id)
	assert.Equal(t, 1, r.Pending())
	assert.Empty(t, sheet.cells, "writes are deferred")

	failed, err := r.Flush(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, map[string]string{
		"'Hoja 1'!C2": "123/2024",
		"'Hoja 1'!D2": "Oficina Central",
	}, sheet.cells)
	assert.Zero(t, r.Pending())
}

func TestDiscardDropsQueuedWrites(t *testing.T) {
	sheet := newFakeSheet(
		[]string{"CLIENTE_UNICO", "NOMBRE_CTE", "FOLIO", "OFICINA"},
		[]string{"C001", "JUAN PEREZ", "", ""},
		[]string{"C002", "MARIA LOPEZ", "", ""},
	)
	ctx := context.Background()
	r, err := Open(ctx, sheet, "s")
	require.NoError(t, err)

	for _, name := range []string{"JUAN PEREZ", "MARIA LOPEZ"} {
		_, found, err := r.Reconcile(pair(name))
		require.NoError(t, err)
		require.True(t, found)
	}
	r.Discard(pair("JUAN PEREZ"))
	assert.Equal(t, 1, r.Pending())

	_, err = r.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"'Hoja 1'!C3": "123/2024",
		"'Hoja 1'!D3": "Oficina Central",
	}, sheet.cells)
}

func TestReconcileNotFound(t *testing.T) {
	sheet := newFakeSheet([]string{"NOMBRE_CTE", "CLIENTE_UNICO", "FOLIO", "OFICINA"}, []string{"ANA", "C9", "", ""})
	r, err := Open(context.Background(), sheet, "s")
	require.NoError(t, err)

	id, found, err := r.Reconcile(pair("NADIE"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, id)
	assert.Zero(t, r.Pending())
}

func TestOpenAppendsMissingColumns(t *testing.T) {
	sheet := newFakeSheet([]string{"CLIENTE_UNICO", "NOMBRE_CTE"}, []string{"C001", "JUAN PEREZ"})
	ctx := context.Background()
	r, err := Open(ctx, sheet, "s")
	require.NoError(t, err)
	assert.Equal(t, "FOLIO DE REGISTRO", sheet.cells["'Hoja 1'!C1"])
	assert.Equal(t, "OFICINA DE CORRESPONDENCIA", sheet.cells["'Hoja 1'!D1"])

	_, found, err := r.Reconcile(pair("JUAN PEREZ"))
	require.NoError(t, err)
	require.True(t, found)
	_, err = r.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123/2024", sheet.cells["'Hoja 1'!C2"])
	assert.Equal(t, "Oficina Central", sheet.cells["'Hoja 1'!D2"])
}

func TestOpenWithoutNameColumn(t *testing.T) {
	_, err := Open(context.Background(), newFakeSheet([]string{"CLIENTE_UNICO"}), "s")
	assert.ErrorIs(t, err, ErrNameColumnMissing)

	_, err = Open(context.Background(), newFakeSheet(), "s")
	assert.ErrorIs(t, err, ErrNameColumnMissing)
}

func TestOpenReadFailure(t *testing.T) {
	sheet := newFakeSheet()
	sheet.readErr = errors.New("permission denied")
	_, err := Open(context.Background(), sheet, "s")
	assert.Error(t, err)
}

func TestReconcileWithoutClientIDColumn(t *testing.T) {
	sheet := newFakeSheet([]string{"NOMBRE_CTE", "FOLIO", "OFICINA"}, []string{"JUAN PEREZ"})
	r, err := Open(context.Background(), sheet, "s")
	require.NoError(t, err)

	id, found, err := r.Reconcile(pair("JUAN PEREZ"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, id)
}

func TestFlushBatchesAndReportsFailures(t *testing.T) {
	rows := [][]string{{"CLIENTE_UNICO", "NOMBRE_CTE", "FOLIO", "OFICINA"}}
	for i := 0; i < 120; i++ {
		rows = append(rows, []string{fmt.Sprintf("C%03d", i), fmt.Sprintf("CLIENTE %03d", i), "", ""})
	}
	sheet := newFakeSheet(rows...)
	sheet.failBatch[1] = true
	ctx := context.Background()
	r, err := Open(ctx, sheet, "s")
	require.NoError(t, err)

	for i := 0; i < 120; i++ {
		_, found, err := r.Reconcile(pair(fmt.Sprintf("CLIENTE %03d", i)))
		require.NoError(t, err)
		require.True(t, found)
	}

	failed, err := r.Flush(ctx)
	assert.Error(t, err)
	assert.Equal(t, []int{100, 100, 40}, sheet.batchSizes)
	require.Len(t, failed, 50)
	assert.Equal(t, "CLIENTE 050", failed[0].Identity)
	assert.Equal(t, "CLIENTE 099", failed[49].Identity)
}

func TestA1RoundTrip(t *testing.T) {
	ref := A1("Clientes 'BAZ'", "AB", 12)
	assert.Equal(t, "'Clientes ''BAZ'''!AB12", ref)

	sheet, cell, err := SplitA1(ref)
	require.NoError(t, err)
	assert.Equal(t, "Clientes 'BAZ'", sheet)
	assert.Equal(t, "AB12", cell)

	sheet, cell, err = SplitA1("Sheet1!C3")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheet)
	assert.Equal(t, "C3", cell)

	_, _, err = SplitA1("C3")
	assert.Error(t, err)
}

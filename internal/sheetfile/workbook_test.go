package sheetfile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/filingmerger/internal/models"
	"github.com/Lllllllleong/filingmerger/internal/reconcile"
)

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Clientes"))
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellStr("Clientes", cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "clientes.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadRowsPads(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"CLIENTE_UNICO", "NOMBRE_CTE", "FOLIO"},
		{"C001", "JUAN PEREZ"},
	})

	sheet, err := New().ReadRows(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Clientes", sheet.Title)
	assert.Equal(t, [][]string{
		{"CLIENTE_UNICO", "NOMBRE_CTE", "FOLIO"},
		{"C001", "JUAN PEREZ", ""},
	}, sheet.Rows)
}

func TestReconcileAgainstWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"CLIENTE_UNICO", "NOMBRE_CTE"},
		{"C001", "JUAN PEREZ"},
	})
	ctx := context.Background()
	wb := New()

	r, err := reconcile.Open(ctx, wb, path)
	require.NoError(t, err)
	id, found, err := r.Reconcile(models.MatchedPair{Identity: "JUAN PEREZ", Folio: "123/2024", Office: "Oficina Central"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "C001", id)
	failed, err := r.Flush(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Clientes")
	require.NoError(t, err)
	assert.Equal(t, []string{"CLIENTE_UNICO", "NOMBRE_CTE", "FOLIO DE REGISTRO", "OFICINA DE CORRESPONDENCIA"}, rows[0])
	assert.Equal(t, []string{"C001", "JUAN PEREZ", "123/2024", "Oficina Central"}, rows[1])
}

func TestReadRowsMissingFile(t *testing.T) {
	_, err := New().ReadRows(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}

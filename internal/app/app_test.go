package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/filingmerger/internal/config"
	"github.com/Lllllllleong/filingmerger/internal/models"
	"github.com/Lllllllleong/filingmerger/internal/testpdf"
)

func localConfig(root string) *config.Config {
	return &config.Config{
		Mode: config.ModeServe, Port: 8080, LogLevel: "info", Workers: 2,
		Storage: config.StorageLocal, Status: config.StatusMemory, Dispatch: config.DispatchLocal,
		LocalRoot: root, StatusTTL: time.Hour,
	}
}

func TestLocalAppEndToEnd(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "entrada")
	require.NoError(t, os.MkdirAll(in, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "acuse.pdf"), testpdf.Build(
		"ACUSE DE RECIBO\nOficina de Correspondencia Común Civil\nFolio de registro: 7/2024\nBAZ VS LUIS DIAZ ANEXOS.pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "demanda.pdf"), testpdf.Build(
		"BANCO AZTECA S.A.\nVS LUIS DIAZ MEDIOS PREPARATORIOS"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := New(ctx, localConfig(root))
	require.NoError(t, err)

	srv := httptest.NewServer(a.Server.Routes())
	defer srv.Close()

	body, _ := json.Marshal(models.ProcessRequest{FolderID: "entrada"})
	resp, err := http.Post(srv.URL+"/api/process-pdfs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var start models.StartResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&start))
	resp.Body.Close()

	require.NoError(t, a.Close())

	p, err := a.Sink.Progress(ctx, start.TaskID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)
	r, err := a.Sink.Result(ctx, start.TaskID)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, models.StatusSuccess, r.Status)
	assert.Empty(t, r.Errors)

	merged, err := filepath.Glob(filepath.Join(root, "PDF Merger App", "Proceso_*", "PDFs Unificados", "*.pdf"))
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "LUIS DIAZ.pdf", filepath.Base(merged[0]))
}

func TestSQLiteStatus(t *testing.T) {
	cfg := localConfig(t.TempDir())
	cfg.Status = config.StatusSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "tasks.db")

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Sink.SetProgress(context.Background(), "task_1", 5))
	p, err := a.Sink.Progress(context.Background(), "task_1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, p)
}

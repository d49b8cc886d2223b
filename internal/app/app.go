// Package app builds the configured backends into a runnable pipeline and
// HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"

	"github.com/Lllllllleong/filingmerger/internal/api"
	"github.com/Lllllllleong/filingmerger/internal/config"
	"github.com/Lllllllleong/filingmerger/internal/dispatch"
	"github.com/Lllllllleong/filingmerger/internal/gcp"
	"github.com/Lllllllleong/filingmerger/internal/localfs"
	"github.com/Lllllllleong/filingmerger/internal/reconcile"
	"github.com/Lllllllleong/filingmerger/internal/services"
	"github.com/Lllllllleong/filingmerger/internal/sheetfile"
	"github.com/Lllllllleong/filingmerger/internal/status"
)

// App is every long-lived component of one process.
type App struct {
	Config     *config.Config
	Storage    services.Storage
	Sheets     reconcile.Spreadsheet
	Sink       status.Sink
	Pipeline   *services.MergePipeline
	Dispatcher dispatch.Dispatcher
	Server     *api.Server

	closers []func() error
}

// SetupLogging installs a JSON slog handler at the configured level.
func SetupLogging(level slog.Level) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// New connects every backend named by cfg. ctx bounds background work such
// as the in-memory status sweep.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	var err error

	if a.Storage, a.Sheets, err = a.openStorage(ctx); err != nil {
		return err
	}
	if a.Sink, err = a.openStatus(ctx); err != nil {
		return err
	}

	a.Pipeline = services.NewMergePipeline(a.Storage, a.Sheets, a.Sink, services.MergePipelineConfig{
		OutputRootID: cfg.OutputRootID,
		Workers:      cfg.Workers,
	})

	switch cfg.Dispatch {
	case config.DispatchWorkflows:
		client, err := executions.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create workflow executions client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Dispatcher = dispatch.NewWorkflow(client, a.Storage, dispatch.WorkflowConfig{
			ProjectID:        cfg.ProjectID,
			WorkflowLocation: cfg.WorkflowLocation,
			WorkflowID:       cfg.WorkflowID,
			StagingFolderID:  cfg.OutputRootID,
		})
	default:
		local := dispatch.NewLocal(a.Pipeline)
		a.closers = append(a.closers, func() error { local.Wait(); return nil })
		a.Dispatcher = local
	}

	a.Server = api.NewServer(a.Sink, a.Dispatcher, a.Pipeline)
	slog.Info("Application wired.", "storage", cfg.Storage, "status", cfg.Status, "dispatch", cfg.Dispatch, "workers", cfg.Workers)
	return nil
}

func (a *App) openStorage(ctx context.Context) (services.Storage, reconcile.Spreadsheet, error) {
	cfg := a.Config
	if cfg.Storage == config.StorageLocal {
		fs, err := localfs.New(cfg.LocalRoot)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local storage: %w", err)
		}
		return fs, sheetfile.New(), nil
	}

	sheetsSvc, err := gcp.NewSheetsService(ctx)
	if err != nil {
		return nil, nil, err
	}
	sheets := gcp.NewSheetsSpreadsheet(sheetsSvc)

	if cfg.Storage == config.StorageGCS {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcp.NewGCSStorage(client), sheets, nil
	}

	driveSvc, err := gcp.NewDriveService(ctx)
	if err != nil {
		return nil, nil, err
	}
	return gcp.NewDriveStorage(driveSvc), sheets, nil
}

func (a *App) openStatus(ctx context.Context) (status.Sink, error) {
	cfg := a.Config
	switch cfg.Status {
	case config.StatusSQLite:
		store, err := status.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		go purgeSQLite(ctx, store, cfg.StatusTTL)
		return store, nil
	case config.StatusFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return gcp.NewFirestoreStore(client, cfg.FirestoreCollection), nil
	default:
		store := status.NewMemoryStore(cfg.StatusTTL)
		interval := cfg.StatusTTL / 4
		if interval <= 0 {
			interval = status.DefaultTTL / 4
		}
		go store.Run(ctx, interval)
		return store, nil
	}
}

// purgeSQLite drops task rows older than ttl until ctx is done.
func purgeSQLite(ctx context.Context, store *status.SQLiteStore, ttl time.Duration) {
	if ttl <= 0 {
		ttl = status.DefaultTTL
	}
	t := time.NewTicker(ttl / 4)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := store.Purge(ctx, ttl)
			if err != nil {
				slog.Warn("Failed to purge task status.", "error", err)
				continue
			}
			slog.Debug("Purged task status.", "rows", n)
		}
	}
}

// Close waits for locally dispatched jobs and releases clients, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

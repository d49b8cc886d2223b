package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lllllllleong/filingmerger/internal/api"
	"github.com/Lllllllleong/filingmerger/internal/app"
	"github.com/Lllllllleong/filingmerger/internal/config"
	"github.com/Lllllllleong/filingmerger/internal/models"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	app.SetupLogging(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Exiting with error.", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("Failed to close cleanly.", "error", err)
		}
	}()

	if cfg.Mode == config.ModeRun {
		return runOnce(ctx, a)
	}
	return serve(ctx, a)
}

func serve(ctx context.Context, a *app.App) error {
	srv := &http.Server{
		Addr:              a.Config.Address(),
		Handler:           a.Server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening.", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runOnce processes the configured input folder and prints the Result.
func runOnce(ctx context.Context, a *app.App) error {
	job := models.Job{
		TaskID:  api.NewTaskID(),
		Request: models.ProcessRequest{FolderID: a.Config.InputFolder, SheetID: a.Config.Workbook},
	}
	if err := a.Sink.SetProgress(ctx, job.TaskID, 0); err != nil {
		return err
	}
	result := a.Pipeline.Process(ctx, job)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if result.Status == models.StatusError {
		return errors.New(result.Message)
	}
	return nil
}

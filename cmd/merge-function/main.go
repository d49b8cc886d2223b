package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/filingmerger/internal/app"
	"github.com/Lllllllleong/filingmerger/internal/config"
	"github.com/Lllllllleong/filingmerger/internal/models"
)

var (
	instance *app.App
	handler  http.Handler
	once     sync.Once
	initErr  error
)

func init() {
	app.SetupLogging(slog.LevelInfo)

	functions.HTTP("MergeAPI", serveAPI)
	functions.CloudEvent("RunMergeJob", runMergeJob)
}

// main is required by the Go Functions Framework.
func main() {}

func setup() error {
	once.Do(func() {
		var cfg *config.Config
		if cfg, initErr = config.FromEnv(); initErr != nil {
			return
		}
		app.SetupLogging(cfg.SlogLevel())
		if instance, initErr = app.New(context.Background(), cfg); initErr != nil {
			return
		}
		handler = instance.Server.Routes()
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
	}
	return initErr
}

// serveAPI serves the HTTP API, including the run-task callback used by the
// merge workflow.
func serveAPI(w http.ResponseWriter, r *http.Request) {
	if err := setup(); err != nil {
		http.Error(w, "function not initialized", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}

// MessagePublishedData is the payload of a Pub/Sub CloudEvent.
type MessagePublishedData struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

// runMergeJob runs a job published to Pub/Sub as Job JSON.
func runMergeJob(ctx context.Context, e cloudevents.Event) error {
	if err := setup(); err != nil {
		return err
	}

	var msg MessagePublishedData
	if err := json.Unmarshal(e.Data(), &msg); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	var job models.Job
	if err := json.Unmarshal(msg.Message.Data, &job); err != nil {
		slog.Error("Failed to unmarshal job", "error", err, "eventId", e.ID())
		return fmt.Errorf("json.Unmarshal job: %w", err)
	}
	if job.TaskID == "" || job.Request.FolderID == "" {
		// Redelivery cannot fix a malformed job.
		slog.Error("Dropping job without task or folder id", "eventId", e.ID())
		return nil
	}

	if err := instance.Sink.SetProgress(ctx, job.TaskID, 0); err != nil {
		return fmt.Errorf("register task %s: %w", job.TaskID, err)
	}
	result := instance.Pipeline.Process(ctx, job)
	slog.Info("Job finished", "taskId", job.TaskID, "status", result.Status)
	return nil
}

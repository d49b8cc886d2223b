// Package dispatch hands accepted jobs to whatever runs them.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/googleapis/gax-go/v2"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

// Dispatcher starts a job and returns without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job models.Job) error
}

// Runner executes one job to a terminal Result.
type Runner interface {
	Process(ctx context.Context, job models.Job) models.Result
}

// Local runs each job on its own goroutine in this process.
type Local struct {
	runner Runner
	wg     sync.WaitGroup
}

func NewLocal(runner Runner) *Local {
	return &Local{runner: runner}
}

// Dispatch detaches the job from ctx so it outlives the request that
// accepted it.
func (l *Local) Dispatch(ctx context.Context, job models.Job) error {
	jobCtx := context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runner.Process(jobCtx, job)
	}()
	slog.Info("Dispatched job locally.", "taskId", job.TaskID)
	return nil
}

// Wait blocks until every dispatched job has finished.
func (l *Local) Wait() {
	l.wg.Wait()
}

// ExecutionsClient is the part of the Workflows executions client used here.
type ExecutionsClient interface {
	CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
}

// SpreadsheetStager stores an uploaded workbook so a job can refer to it by
// id instead of carrying its bytes.
type SpreadsheetStager interface {
	ImportSpreadsheet(ctx context.Context, folderID, name string, xlsx []byte) (models.FileRef, error)
}

type WorkflowConfig struct {
	ProjectID        string
	WorkflowLocation string
	WorkflowID       string
	// StagingFolderID receives uploaded workbooks; empty means the storage root.
	StagingFolderID string
}

// Workflow starts a Cloud Workflows execution per job. The execution
// argument is the job JSON; the workflow calls back into the run-task
// endpoint with it. Execution arguments are capped at 32 KiB, so uploaded
// workbooks are staged first and only their id travels.
type Workflow struct {
	client ExecutionsClient
	stager SpreadsheetStager
	config WorkflowConfig
}

// NewWorkflow wires the dispatcher. stager may be nil when jobs never carry
// an uploaded workbook.
func NewWorkflow(client ExecutionsClient, stager SpreadsheetStager, config WorkflowConfig) *Workflow {
	return &Workflow{client: client, stager: stager, config: config}
}

// stage replaces an uploaded workbook with a reference to its stored copy.
func (w *Workflow) stage(ctx context.Context, job models.Job) (models.Job, error) {
	req := job.Request
	if len(req.ExcelFile) == 0 {
		return job, nil
	}
	if w.stager == nil {
		return job, errors.New("an uploaded spreadsheet needs a staging backend")
	}
	name := req.ExcelFileName
	if name == "" {
		name = "clientes.xlsx"
	}
	ref, err := w.stager.ImportSpreadsheet(ctx, w.config.StagingFolderID, job.TaskID+"_"+name, req.ExcelFile)
	if err != nil {
		return job, fmt.Errorf("failed to stage spreadsheet: %w", err)
	}
	slog.Info("Staged uploaded spreadsheet.", "taskId", job.TaskID, "sheetId", ref.ID, "bytes", len(req.ExcelFile))

	req.SheetID = ref.ID
	req.ExcelFile = nil
	req.ExcelFileName = ""
	job.Request = req
	return job, nil
}

func (w *Workflow) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", w.config.ProjectID, w.config.WorkflowLocation, w.config.WorkflowID)
}

func (w *Workflow) Dispatch(ctx context.Context, job models.Job) error {
	logCtx := slog.With("taskId", job.TaskID, "workflow", w.config.WorkflowID)
	logCtx.Info("Triggering workflow.")

	job, err := w.stage(ctx, job)
	if err != nil {
		return err
	}
	payloadBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: w.parent(),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	exec, err := w.client.CreateExecution(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	logCtx.Info("Workflow execution created.", "execution", exec.GetName())
	return nil
}

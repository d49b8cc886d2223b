// Package api is the HTTP surface: start a run, poll its progress, fetch
// its result, and the workflow callback that runs a job.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Lllllllleong/filingmerger/internal/dispatch"
	"github.com/Lllllllleong/filingmerger/internal/models"
	"github.com/Lllllllleong/filingmerger/internal/services"
	"github.com/Lllllllleong/filingmerger/internal/status"
)

// maxUploadBytes bounds the multipart form, spreadsheet included.
const maxUploadBytes = 32 << 20

const (
	progressInProgress = "in_progress"
	progressCompleted  = "completed"
)

type Server struct {
	sink       status.Sink
	dispatcher dispatch.Dispatcher
	runner     dispatch.Runner
	newTaskID  func() string
}

// NewServer wires the handlers. runner serves the run-task callback and may
// be nil when no workflow calls back into this process.
func NewServer(sink status.Sink, dispatcher dispatch.Dispatcher, runner dispatch.Runner) *Server {
	return &Server{sink: sink, dispatcher: dispatcher, runner: runner, newTaskID: NewTaskID}
}

// NewTaskID returns "task_" followed by 32 hex digits.
func NewTaskID() string {
	return "task_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/process-pdfs", s.handleProcess)
		r.Get("/progress/{taskID}", s.handleProgress)
		r.Get("/process-result", s.handleResult)
		r.Post("/tasks/run", s.handleRunTask)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("Handled request.", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "requestId", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response.", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"status": models.StatusError, "message": message})
}

// parseProcessRequest accepts either a multipart form (folderId,
// sheetsFileId, excelFile) or a JSON ProcessRequest.
func parseProcessRequest(w http.ResponseWriter, r *http.Request) (models.ProcessRequest, error) {
	var req models.ProcessRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
				return req, fmt.Errorf("invalid form: %w", err)
			}
		} else if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
		req.FolderID = r.FormValue("folderId")
		req.SheetID = r.FormValue("sheetsFileId")

		file, header, err := r.FormFile("excelFile")
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			break
		}
		if err != nil {
			return req, fmt.Errorf("invalid excelFile: %w", err)
		}
		defer file.Close()
		if req.ExcelFile, err = io.ReadAll(file); err != nil {
			return req, fmt.Errorf("read excelFile: %w", err)
		}
		req.ExcelFileName = header.Filename
	default:
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
	}

	if req.FolderID == "" {
		return req, errors.New("folderId is required")
	}
	return req, nil
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, err := parseProcessRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	job := models.Job{TaskID: s.newTaskID(), Request: req}
	logCtx := slog.With("taskId", job.TaskID, "folderId", req.FolderID)

	if err := s.sink.SetProgress(ctx, job.TaskID, 0); err != nil {
		logCtx.Error("Failed to register task.", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register task")
		return
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		logCtx.Error("Failed to dispatch task.", "error", err)
		result := models.Result{Status: models.StatusError, Message: err.Error(), Errors: []models.FileError{}}
		if ferr := services.NewTracker(s.sink, job.TaskID).Finish(ctx, result); ferr != nil {
			logCtx.Error("CRITICAL: Failed to record dispatch failure.", "updateError", ferr)
		}
		writeError(w, http.StatusInternalServerError, "failed to start processing")
		return
	}

	logCtx.Info("Task accepted.", "hasSpreadsheet", req.HasSpreadsheet())
	writeJSON(w, http.StatusOK, models.StartResponse{Status: models.StatusSuccess, TaskID: job.TaskID})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	ctx := r.Context()

	progress, err := s.sink.Progress(ctx, taskID)
	if errors.Is(err, status.ErrUnknownTask) {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "unknown task"})
		return
	}
	if err != nil {
		slog.Error("Failed to read progress.", "taskId", taskID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read progress")
		return
	}

	resp := models.ProgressResponse{Progress: progress, Status: progressInProgress}
	if progress >= 100 {
		resp.Status = progressCompleted
		result, err := s.sink.Result(ctx, taskID)
		if err != nil || result == nil {
			slog.Warn("No result found for completed task.", "taskId", taskID, "error", err)
			result = &models.Result{Status: models.StatusError, Message: "No result available.", Errors: []models.FileError{}}
		}
		resp.Result = result
	}
	writeJSON(w, http.StatusOK, resp)
}

type resultResponse struct {
	Result     any    `json:"result"`
	FolderName string `json:"folder_name,omitempty"`
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "Task ID not provided")
		return
	}

	result, err := s.sink.Result(r.Context(), taskID)
	if errors.Is(err, status.ErrUnknownTask) {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "unknown task"})
		return
	}
	if err != nil {
		slog.Error("Failed to read result.", "taskId", taskID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read result")
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, resultResponse{
			Result: map[string]string{"status": "processing", "message": "The task is still processing."},
		})
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: result, FolderName: result.FolderName})
}

// handleRunTask runs a job synchronously. Workflow executions post the job
// JSON they were started with.
func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusNotImplemented, "task runner not configured")
		return
	}
	var job models.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job: %v", err))
		return
	}
	if job.TaskID == "" || job.Request.FolderID == "" {
		writeError(w, http.StatusBadRequest, "taskId and request.folderId are required")
		return
	}
	result := s.runner.Process(r.Context(), job)
	writeJSON(w, http.StatusOK, result)
}

package models

import "time"

// These structs define the JSON payloads exchanged with callers, the
// workflow dispatcher and the task-status stores.

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ProcessRequest describes one pipeline run.
type ProcessRequest struct {
	FolderID      string `json:"folderId"`
	SheetID       string `json:"sheetsFileId,omitempty"`
	ExcelFileName string `json:"excelFileName,omitempty"`
	ExcelFile     []byte `json:"excelFile,omitempty"`
}

// HasSpreadsheet reports whether the run reconciles against a spreadsheet.
func (r ProcessRequest) HasSpreadsheet() bool {
	return r.SheetID != "" || len(r.ExcelFile) > 0
}

// Job is the unit handed to a dispatcher.
type Job struct {
	TaskID  string         `json:"taskId"`
	Request ProcessRequest `json:"request"`
}

// FileError is one entry of Result.Errors.
type FileError struct {
	FileName string `json:"file_name"`
	Message  string `json:"message"`
}

// Result is the terminal payload of a task.
type Result struct {
	Status       string      `json:"status" firestore:"status"`
	Message      string      `json:"message" firestore:"message"`
	Errors       []FileError `json:"errors" firestore:"errors"`
	FolderName   string      `json:"folder_name,omitempty" firestore:"folderName,omitempty"`
	ReportFileID string      `json:"report_file_id,omitempty" firestore:"reportFileId,omitempty"`
}

// StartResponse is returned when a task is accepted.
type StartResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

// ProgressResponse is returned to pollers.
type ProgressResponse struct {
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
	Result   *Result `json:"result,omitempty"`
}

// TaskStatus is the persisted record of a task in Firestore.
type TaskStatus struct {
	Progress  float64   `firestore:"progress"`
	Result    *Result   `firestore:"result,omitempty"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

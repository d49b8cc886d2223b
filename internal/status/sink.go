// Package status stores task progress and terminal results.
package status

import (
	"context"
	"errors"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

// ErrUnknownTask is returned for task ids a store has never seen or has
// already expired.
var ErrUnknownTask = errors.New("unknown task")

// Sink is the task-status contract shared by every store.
type Sink interface {
	SetProgress(ctx context.Context, taskID string, progress float64) error
	SetResult(ctx context.Context, taskID string, result models.Result) error
	Progress(ctx context.Context, taskID string) (float64, error)
	// Result returns nil while the task is still running.
	Result(ctx context.Context, taskID string) (*models.Result, error)
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Lllllllleong/filingmerger/internal/models"
	"github.com/Lllllllleong/filingmerger/internal/status"
)

// Phase is a named slice of the 0-100 progress range.
type Phase struct {
	Name       string
	Start, End float64
}

var (
	PhaseFetching   = Phase{Name: "FETCHING", Start: 0, End: 20}
	PhaseExtracting = Phase{Name: "EXTRACTING", Start: 20, End: 60}
	PhasePairing    = Phase{Name: "PAIRING", Start: 60, End: 70}
	PhaseMerging    = Phase{Name: "MERGING", Start: 70, End: 99}
)

// At maps done of total units into the phase range. An empty phase is
// complete.
func (p Phase) At(done, total int) float64 {
	if total <= 0 || done >= total {
		return p.End
	}
	if done < 0 {
		done = 0
	}
	return p.Start + (p.End-p.Start)*float64(done)/float64(total)
}

// finishTimeout bounds the final writes, which outlive the run's context.
const finishTimeout = 30 * time.Second

// Tracker serializes progress writes for one task. Stored progress never
// decreases, stays below 100 until Finish, and reaches 100 only after the
// Result is stored.
type Tracker struct {
	mu       sync.Mutex
	sink     status.Sink
	taskID   string
	last     float64
	written  bool
	finished bool
}

func NewTracker(sink status.Sink, taskID string) *Tracker {
	return &Tracker{sink: sink, taskID: taskID}
}

// Report records done of total units of phase.
func (t *Tracker) Report(ctx context.Context, phase Phase, done, total int) {
	t.set(ctx, phase.At(done, total))
}

func (t *Tracker) set(ctx context.Context, v float64) {
	v = math.Min(math.Round(v*100)/100, 99)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished || (t.written && v <= t.last) {
		return
	}
	if err := t.sink.SetProgress(ctx, t.taskID, v); err != nil {
		slog.Warn("Failed to store progress.", "taskId", t.taskID, "progress", v, "error", err)
		return
	}
	t.last, t.written = v, true
}

// Last returns the most recently stored progress.
func (t *Tracker) Last() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Finish stores result and then sets progress to 100. If the result cannot be
// stored, a minimal error result is tried instead; if that fails too,
// progress is left below 100 so no poller sees completion without a result.
// The writes run even when ctx is already cancelled.
func (t *Tracker) Finish(ctx context.Context, result models.Result) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return fmt.Errorf("task %s already finished", t.taskID)
	}

	if err := t.sink.SetResult(ctx, t.taskID, result); err != nil {
		slog.Error("Failed to store result.", "taskId", t.taskID, "error", err)
		fallback := models.Result{
			Status:  models.StatusError,
			Message: fmt.Sprintf("failed to store result: %v", err),
			Errors:  []models.FileError{},
		}
		if err := t.sink.SetResult(ctx, t.taskID, fallback); err != nil {
			return fmt.Errorf("store result for %s: %w", t.taskID, err)
		}
	}
	if err := t.sink.SetProgress(ctx, t.taskID, 100); err != nil {
		return fmt.Errorf("store final progress for %s: %w", t.taskID, err)
	}
	t.last, t.written, t.finished = 100, true, true
	return nil
}

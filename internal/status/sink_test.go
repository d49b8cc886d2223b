package status

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

func stores(t *testing.T) map[string]Sink {
	t.Helper()
	sq, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Sink{
		"memory": NewMemoryStore(time.Hour),
		"sqlite": sq,
	}
}

func TestSinkContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Progress(ctx, "task_missing")
			assert.ErrorIs(t, err, ErrUnknownTask)
			_, err = s.Result(ctx, "task_missing")
			assert.ErrorIs(t, err, ErrUnknownTask)

			require.NoError(t, s.SetProgress(ctx, "task_1", 0))
			p, err := s.Progress(ctx, "task_1")
			require.NoError(t, err)
			assert.Zero(t, p)
			r, err := s.Result(ctx, "task_1")
			require.NoError(t, err)
			assert.Nil(t, r)

			require.NoError(t, s.SetProgress(ctx, "task_1", 40))
			require.NoError(t, s.SetProgress(ctx, "task_1", 25))
			p, err = s.Progress(ctx, "task_1")
			require.NoError(t, err)
			assert.Equal(t, 40.0, p, "progress never decreases")

			want := models.Result{
				Status:  models.StatusSuccess,
				Message: "Processing complete: 2 documents, 1 merged pairs.",
				Errors:  []models.FileError{},
			}
			require.NoError(t, s.SetResult(ctx, "task_1", want))
			require.NoError(t, s.SetProgress(ctx, "task_1", 100))

			r, err = s.Result(ctx, "task_1")
			require.NoError(t, err)
			require.NotNil(t, r)
			assert.Equal(t, want, *r)
			p, err = s.Progress(ctx, "task_1")
			require.NoError(t, err)
			assert.Equal(t, 100.0, p)
		})
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemoryStore(time.Hour)
	m.now = func() time.Time { return now }

	require.NoError(t, m.SetProgress(ctx, "a", 10))
	require.NoError(t, m.SetProgress(ctx, "b", 10))

	now = now.Add(30 * time.Minute)
	require.NoError(t, m.SetProgress(ctx, "b", 20))

	now = now.Add(45 * time.Minute)
	_, err := m.Progress(ctx, "a")
	assert.ErrorIs(t, err, ErrUnknownTask)
	p, err := m.Progress(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 20.0, p)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, m.Sweep())
}

func TestSQLitePurge(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetProgress(ctx, "old", 5))
	n, err := s.Purge(ctx, -time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = s.Progress(ctx, "old")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

// Schema for the task_status table. OpenSQLiteStore applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS task_status (
	task_id TEXT PRIMARY KEY,
	progress REAL NOT NULL DEFAULT 0,
	result TEXT,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore persists task status in a SQLite database so that progress
// survives a restart of the serving process.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SetProgress(ctx context.Context, taskID string, progress float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_status (task_id, progress, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			progress = MAX(progress, excluded.progress),
			updated_at = excluded.updated_at`,
		taskID, progress, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set progress %s: %w", taskID, err)
	}
	return nil
}

func (s *SQLiteStore) SetResult(ctx context.Context, taskID string, result models.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_status (task_id, result, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			result = excluded.result,
			updated_at = excluded.updated_at`,
		taskID, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set result %s: %w", taskID, err)
	}
	return nil
}

func (s *SQLiteStore) Progress(ctx context.Context, taskID string) (float64, error) {
	var p float64
	err := s.db.QueryRowContext(ctx, `SELECT progress FROM task_status WHERE task_id = ?`, taskID).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnknownTask
	}
	if err != nil {
		return 0, fmt.Errorf("read progress %s: %w", taskID, err)
	}
	return p, nil
}

func (s *SQLiteStore) Result(ctx context.Context, taskID string) (*models.Result, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT result FROM task_status WHERE task_id = ?`, taskID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownTask
	}
	if err != nil {
		return nil, fmt.Errorf("read result %s: %w", taskID, err)
	}
	if !raw.Valid {
		return nil, nil
	}
	var r models.Result
	if err := json.Unmarshal([]byte(raw.String), &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", taskID, err)
	}
	return &r, nil
}

// Purge deletes tasks not updated within maxAge.
func (s *SQLiteStore) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_status WHERE updated_at < ?`, time.Now().Add(-maxAge).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}

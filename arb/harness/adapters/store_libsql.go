package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// LibSQLRunStore persists benchmark runs in a LibSQL database.
type LibSQLRunStore struct {
	db *sql.DB
}

// NewLibSQLRunStore creates a run store over an open database handle.
func NewLibSQLRunStore(db *sql.DB) *LibSQLRunStore {
	return &LibSQLRunStore{db: db}
}

// SaveRun persists one finished run.
func (s *LibSQLRunStore) SaveRun(ctx context.Context, run ports.RunSummary) error {
	query := `
		INSERT OR REPLACE INTO runs (run_id, task_id, provider, model, verdict, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		run.RunID, run.TaskID, run.Provider, run.Model, run.Verdict, run.Record, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// LoadRecent returns the last k runs for a task, oldest first.
func (s *LibSQLRunStore) LoadRecent(ctx context.Context, taskID string, k int) ([]ports.RunSummary, error) {
	query := `
		SELECT run_id, task_id, provider, model, verdict, record, created_at
		FROM runs
		WHERE task_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, taskID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []ports.RunSummary
	for rows.Next() {
		var run ports.RunSummary
		var createdAt int64
		if err := rows.Scan(&run.RunID, &run.TaskID, &run.Provider, &run.Model, &run.Verdict, &run.Record, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}

	return runs, nil
}

// AppendArtifact stores a named payload produced during a run, such as a
// full transcript or a scored report.
func (s *LibSQLRunStore) AppendArtifact(ctx context.Context, runID, name string, payload []byte) error {
	query := `
		INSERT INTO run_artifacts (run_id, name, payload, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, runID, name, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	return nil
}

// Ensure LibSQLRunStore implements the RunStore interface.
var _ ports.RunStore = (*LibSQLRunStore)(nil)

package harnessports

import (
	"context"
	"time"
)

// RunSummary is one persisted benchmark run.
type RunSummary struct {
	RunID     string
	TaskID    string
	Provider  string
	Model     string
	Verdict   []byte // submitted verdict JSON, nil when the run produced none
	Record    []byte // full run record JSON
	CreatedAt time.Time
}

// RunStore persists finished runs and their artifacts.
type RunStore interface {
	SaveRun(ctx context.Context, run RunSummary) error
	LoadRecent(ctx context.Context, taskID string, k int) ([]RunSummary, error) // last-k runs, oldest first
	AppendArtifact(ctx context.Context, runID, name string, payload []byte) error
}

// Package bench loads the task manifest, drives agent runs over it, scores
// the submitted verdicts against ground truth, and writes the benchmark
// report.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// Task is one benchmark entry: a binary to investigate and the ground
// truth its verdict is scored against.
type Task struct {
	TaskID          string
	BinaryPath      string
	GroundTruthPath string
	Difficulty      int
}

type manifest struct {
	Tasks []manifestEntry `json:"tasks"`
}

type manifestEntry struct {
	TaskID      string `json:"task_id"`
	BinaryName  string `json:"binary_name"`
	GroundTruth string `json:"ground_truth"`
	Difficulty  int    `json:"difficulty"`
}

// LoadTasks reads the task manifest. Binary names resolve under the
// project's binaries/ directory; ground truth paths resolve against the
// project root.
func LoadTasks(manifestPath, projectRoot string) ([]Task, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read task manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse task manifest %s: %w", manifestPath, err)
	}

	tasks := make([]Task, 0, len(m.Tasks))
	for _, entry := range m.Tasks {
		if entry.TaskID == "" || entry.BinaryName == "" || entry.GroundTruth == "" {
			return nil, fmt.Errorf("task manifest entry missing task_id, binary_name or ground_truth: %+v", entry)
		}
		tasks = append(tasks, Task{
			TaskID:          entry.TaskID,
			BinaryPath:      filepath.Join(projectRoot, "binaries", entry.BinaryName),
			GroundTruthPath: filepath.Join(projectRoot, entry.GroundTruth),
			Difficulty:      entry.Difficulty,
		})
	}
	return tasks, nil
}

// FilterTasks keeps the tasks whose id appears in the comma-separated
// filter. An empty filter keeps everything.
func FilterTasks(tasks []Task, filter string) ([]Task, error) {
	if strings.TrimSpace(filter) == "" {
		return tasks, nil
	}

	wanted := make(map[string]bool)
	for _, id := range strings.Split(filter, ",") {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}

	var kept []Task
	for _, t := range tasks {
		if wanted[t.TaskID] {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no task found matching %q", filter)
	}
	return kept, nil
}

// groundTruthSchema keeps operator mistakes out of the scoring path: a
// malformed ground truth file would otherwise silently zero every field
// score.
const groundTruthSchema = `{
	"type": "object",
	"required": ["file_type"],
	"properties": {
		"sample": {"type": "string"},
		"file_type": {"type": "string"},
		"encoded_strings": {"type": "boolean"},
		"decoded_c2": {"type": ["string", "null"]},
		"techniques": {"type": "array", "items": {"type": "string"}},
		"c2_protocol": {"type": ["string", "null"]},
		"encryption_details": {
			"type": "object",
			"properties": {
				"algorithm": {"type": "string"},
				"key": {"type": "string"},
				"key_storage": {"type": "string"}
			}
		},
		"decoded_strings": {"type": "object"},
		"anti_analysis": {"type": "array", "items": {"type": "string"}}
	}
}`

// GroundTruthLoader reads and validates ground truth files, memoizing the
// raw bytes so repeated trials do not reread them.
type GroundTruthLoader struct {
	cache      ports.Cache
	ttlSeconds int
}

func NewGroundTruthLoader(cache ports.Cache, ttlSeconds int) *GroundTruthLoader {
	return &GroundTruthLoader{cache: cache, ttlSeconds: ttlSeconds}
}

// Load returns the parsed ground truth for a path. Each call unmarshals a
// fresh map, so callers can read concurrently.
func (l *GroundTruthLoader) Load(ctx context.Context, path string) (map[string]any, error) {
	raw, ok := l.cache.Get(ctx, path)
	if !ok {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read ground truth: %w", err)
		}
		if err := validateGroundTruth(raw); err != nil {
			return nil, fmt.Errorf("invalid ground truth %s: %w", path, err)
		}
		_ = l.cache.Set(ctx, path, raw, l.ttlSeconds)
	}

	var gt map[string]any
	if err := json.Unmarshal(raw, &gt); err != nil {
		return nil, fmt.Errorf("failed to parse ground truth %s: %w", path, err)
	}
	return gt, nil
}

func validateGroundTruth(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader([]byte(groundTruthSchema)),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}

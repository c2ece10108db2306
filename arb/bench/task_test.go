package bench

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/agentre-bench/arb/harness/adapters"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoadTasks tests manifest parsing and path resolution.
func TestLoadTasks(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{
		"tasks": [
			{"task_id": "level1_TCPServer", "binary_name": "level1", "ground_truth": "ground_truths/level1.json", "difficulty": 1},
			{"task_id": "level13_Stealth", "binary_name": "level13", "ground_truth": "ground_truths/level13.json", "difficulty": 13}
		]
	}`)

	tasks, err := LoadTasks(path, dir)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "level1_TCPServer", tasks[0].TaskID)
	assert.Equal(t, filepath.Join(dir, "binaries", "level1"), tasks[0].BinaryPath)
	assert.Equal(t, filepath.Join(dir, "ground_truths", "level1.json"), tasks[0].GroundTruthPath)
	assert.Equal(t, 13, tasks[1].Difficulty)
}

// TestLoadTasks_MissingFields tests that incomplete entries are rejected.
func TestLoadTasks_MissingFields(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{"tasks": [{"task_id": "x", "binary_name": "bin"}]}`)

	_, err := LoadTasks(path, dir)
	assert.ErrorContains(t, err, "ground_truth")
}

// TestLoadTasks_MissingFile tests the read error path.
func TestLoadTasks_MissingFile(t *testing.T) {
	_, err := LoadTasks(filepath.Join(t.TempDir(), "nope.json"), ".")
	assert.ErrorContains(t, err, "failed to read task manifest")
}

// TestFilterTasks tests comma-separated filtering and the no-match error.
func TestFilterTasks(t *testing.T) {
	tasks := []Task{{TaskID: "a"}, {TaskID: "b"}, {TaskID: "c"}}

	kept, err := FilterTasks(tasks, "")
	require.NoError(t, err)
	assert.Len(t, kept, 3)

	kept, err = FilterTasks(tasks, " a , c ")
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].TaskID)
	assert.Equal(t, "c", kept[1].TaskID)

	_, err = FilterTasks(tasks, "nope")
	assert.ErrorContains(t, err, "no task found")
}

// TestGroundTruthLoader tests caching and schema validation.
func TestGroundTruthLoader(t *testing.T) {
	dir := t.TempDir()
	gtPath := filepath.Join(dir, "gt.json")
	require.NoError(t, os.WriteFile(gtPath, []byte(`{"file_type": "ELF64", "techniques": ["socket_connect"]}`), 0o644))

	loader := NewGroundTruthLoader(adapters.NewLRUCache(4), 60)

	gt, err := loader.Load(context.Background(), gtPath)
	require.NoError(t, err)
	assert.Equal(t, "ELF64", gt["file_type"])

	// Deleting the file proves the second load is served from cache.
	require.NoError(t, os.Remove(gtPath))
	gt, err = loader.Load(context.Background(), gtPath)
	require.NoError(t, err)
	assert.Equal(t, "ELF64", gt["file_type"])
}

// TestGroundTruthLoader_RejectsMalformed tests that a ground truth missing
// the required discriminator fails before it can zero a scoring run.
func TestGroundTruthLoader_RejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	gtPath := filepath.Join(dir, "gt.json")
	require.NoError(t, os.WriteFile(gtPath, []byte(`{"techniques": "not-an-array"}`), 0o644))

	loader := NewGroundTruthLoader(adapters.NewLRUCache(4), 60)
	_, err := loader.Load(context.Background(), gtPath)
	assert.ErrorContains(t, err, "invalid ground truth")
}

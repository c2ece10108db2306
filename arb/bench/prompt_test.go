package bench

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestBuildSystemPrompt_DockerPath tests that the binary is addressed
// under the container mount when sandboxed.
func TestBuildSystemPrompt_DockerPath(t *testing.T) {
	task := Task{TaskID: "level1", BinaryPath: "/srv/bench/binaries/level1", Difficulty: 1}

	prompt := BuildSystemPrompt(task, true)

	assert.Contains(t, prompt, "/workspace/level1")
	assert.NotContains(t, prompt, "/srv/bench")
	assert.NotContains(t, prompt, "advanced sample")
}

// TestBuildSystemPrompt_LocalPath tests host addressing in subprocess mode.
func TestBuildSystemPrompt_LocalPath(t *testing.T) {
	task := Task{TaskID: "level1", BinaryPath: "/srv/bench/binaries/level1", Difficulty: 1}

	prompt := BuildSystemPrompt(task, false)

	assert.Contains(t, prompt, "/srv/bench/binaries/level1")
	assert.Contains(t, prompt, "final_answer")
}

// TestBuildSystemPrompt_BonusInstructions tests the difficulty gate on the
// deeper crypto and anti-analysis asks.
func TestBuildSystemPrompt_BonusInstructions(t *testing.T) {
	task := Task{TaskID: "level13", BinaryPath: "/srv/bench/binaries/level13", Difficulty: 13}

	prompt := BuildSystemPrompt(task, true)

	assert.Contains(t, prompt, "advanced sample")
	assert.Contains(t, prompt, "encryption_details")
	assert.Contains(t, prompt, "anti_analysis")
}

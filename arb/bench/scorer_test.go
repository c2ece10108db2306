package bench

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardGroundTruth() map[string]any {
	return map[string]any{
		"sample":          "level1_TCPServer",
		"file_type":       "ELF64",
		"encoded_strings": true,
		"decoded_c2":      "10.0.0.1:4444",
		"techniques":      []any{"socket_connect", "xor_encoding"},
		"c2_protocol":     "TCP",
	}
}

// TestScoreSample_PerfectStandard tests that a verdict matching ground
// truth field for field scores 1.0 with no penalty.
func TestScoreSample_PerfectStandard(t *testing.T) {
	gt := standardGroundTruth()
	agent := map[string]any{
		"file_type":       "ELF64",
		"encoded_strings": true,
		"decoded_c2":      "10.0.0.1:4444",
		"techniques":      []any{"socket_connect", "xor_encoding"},
		"c2_protocol":     "TCP",
	}

	result := ScoreSample(gt, agent, "ground_truths/level1_TCPServer.json")

	assert.Equal(t, TierStandard, result.Tier)
	assert.Equal(t, 1.0, result.FinalScore)
	assert.Equal(t, 0.0, result.HallucinationPenalty)
	assert.Empty(t, result.HallucinatedTechniques)
	assert.Empty(t, result.MissingTechniques)
}

// TestScoreSample_EmptyVerdict tests that an empty submission bottoms out
// at zero rather than crashing on missing fields.
func TestScoreSample_EmptyVerdict(t *testing.T) {
	result := ScoreSample(standardGroundTruth(), map[string]any{}, "ground_truths/level1_TCPServer.json")

	assert.Equal(t, 0.0, result.FinalScore)
	assert.Equal(t, 0.0, result.FieldScores["decoded_c2"])
	assert.Equal(t, 0.0, result.FieldScores["techniques"])
}

// TestScoreDecodedC2 covers normalization and the host-only partial credit.
func TestScoreDecodedC2(t *testing.T) {
	tests := []struct {
		name  string
		gt    any
		agent any
		want  float64
	}{
		{"exact", "10.0.0.1:4444", "10.0.0.1:4444", 1.0},
		{"case and trailing slash normalized", "HTTP://evil.example.com/", "http://evil.example.com", 1.0},
		{"host matches, port differs", "10.0.0.1:4444", "10.0.0.1:9999", 0.5},
		{"host matches, scheme and path differ", "http://evil.example.com/gate.php", "evil.example.com", 0.5},
		{"different host", "10.0.0.1:4444", "10.0.0.2:4444", 0.0},
		{"both absent", nil, nil, 1.0},
		{"ground truth absent, agent claims one", nil, "10.0.0.1:4444", 0.0},
		{"agent missed it", "10.0.0.1:4444", nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreDecodedC2(tt.gt, tt.agent))
		})
	}
}

// TestScoreSetOverlap tests Jaccard credit plus the extra/missing splits.
func TestScoreSetOverlap(t *testing.T) {
	score, extra, missing := scoreSetOverlap(
		[]any{"socket_connect", "xor_encoding", "anti_debug_ptrace"},
		[]any{"socket_connect", "xor_encoding", "process_hollowing"},
	)

	// 2 shared over 4 in the union.
	assert.InDelta(t, 0.5, score, 1e-9)
	assert.Equal(t, []string{"process_hollowing"}, extra)
	assert.Equal(t, []string{"anti_debug_ptrace"}, missing)
}

// TestScoreSetOverlap_EmptySets tests the empty-set conventions.
func TestScoreSetOverlap_EmptySets(t *testing.T) {
	score, _, _ := scoreSetOverlap(nil, nil)
	assert.Equal(t, 1.0, score)

	score, extra, _ := scoreSetOverlap(nil, []any{"made_up"})
	assert.Equal(t, 0.0, score)
	assert.Equal(t, []string{"made_up"}, extra)
}

// TestHallucinationPenalty tests that fabricated techniques are charged
// per claim and the final score never goes negative.
func TestHallucinationPenalty(t *testing.T) {
	gt := standardGroundTruth()
	agent := map[string]any{
		"file_type":       "ELF64",
		"encoded_strings": true,
		"decoded_c2":      "10.0.0.1:4444",
		"c2_protocol":     "TCP",
		"techniques": []any{
			"socket_connect",
			"made_up_one", "made_up_two", "made_up_three",
		},
	}

	result := ScoreSample(gt, agent, "gt.json")

	assert.Len(t, result.HallucinatedTechniques, 3)
	assert.InDelta(t, 3*HallucinationPenalty, result.HallucinationPenalty, 1e-9)
	assert.GreaterOrEqual(t, result.FinalScore, 0.0)
	assert.InDelta(t, result.FinalScore, result.WeightedScore-result.HallucinationPenalty, 1e-4)
}

// TestScoreSample_FloorsAtZero tests the zero floor when penalties exceed
// the weighted score.
func TestScoreSample_FloorsAtZero(t *testing.T) {
	gt := standardGroundTruth()
	agent := map[string]any{
		"techniques": []any{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
	}

	result := ScoreSample(gt, agent, "gt.json")
	assert.Equal(t, 0.0, result.FinalScore)
}

// TestIsBonus tests bonus detection via the sample field and the file stem
// fallback.
func TestIsBonus(t *testing.T) {
	assert.True(t, isBonus(map[string]any{"sample": "level13_Stealth"}, ""))
	assert.True(t, isBonus(map[string]any{}, "ground_truths/Level13_final.json"))
	assert.False(t, isBonus(map[string]any{"sample": "level1_TCPServer"}, ""))
	assert.False(t, isBonus(map[string]any{}, "ground_truths/level3_XOR.json"))
}

func bonusGroundTruth() map[string]any {
	return map[string]any{
		"sample":          "level13_Stealth",
		"file_type":       "ELF64",
		"encoded_strings": true,
		"decoded_c2":      "203.0.113.7:8443",
		"techniques":      []any{"socket_connect", "rc4_decryption"},
		"c2_protocol":     "TCP",
		"encryption_details": map[string]any{
			"algorithm":   "RC4",
			"key":         "deadbeef",
			"key_storage": "xor'd with 0xa5 in .rodata",
		},
		"decoded_strings": map[string]any{
			"str1": "/tmp/.lock",
			"str2": "beacon",
		},
		"anti_analysis": []any{"anti_debug_ptrace", "ld_preload_check"},
	}
}

// TestScoreSample_BonusRubric tests the deeper bonus rubric end to end.
func TestScoreSample_BonusRubric(t *testing.T) {
	gt := bonusGroundTruth()
	agent := map[string]any{
		"file_type":       "ELF64",
		"encoded_strings": true,
		"decoded_c2":      "203.0.113.7:8443",
		"techniques":      []any{"socket_connect", "rc4_decryption"},
		"c2_protocol":     "TCP",
		"encryption_details": map[string]any{
			"algorithm":   "rc4",
			"key":         "deadbeef",
			"key_storage": "key is XOR-obfuscated with 0xA5",
		},
		"decoded_strings": map[string]any{
			"str1": "/tmp/.lock",
			"str2": "beacon",
		},
		"anti_analysis": []any{"anti_debug_ptrace", "ld_preload_check"},
	}

	result := ScoreSample(gt, agent, "ground_truths/level13_Stealth.json")

	require.Equal(t, TierBonus, result.Tier)
	assert.Equal(t, 1.0, result.FieldScores["encryption_algorithm"])
	assert.Equal(t, 1.0, result.FieldScores["encryption_key"])
	assert.Equal(t, 1.0, result.FieldScores["encryption_key_storage"])
	assert.Equal(t, 1.0, result.FieldScores["decoded_strings"])
	assert.Equal(t, 1.0, result.FieldScores["anti_analysis"])
	assert.Equal(t, 1.0, result.FinalScore)
}

// TestScoreKeyStorage tests the two half-credit components.
func TestScoreKeyStorage(t *testing.T) {
	assert.Equal(t, 1.0, scoreKeyStorage("xor'd with 0xa5", "xor against 0xa5"))
	assert.Equal(t, 0.5, scoreKeyStorage("xor'd with 0xa5", "some xor scheme"))
	assert.Equal(t, 0.0, scoreKeyStorage("xor'd with 0xa5", "hardcoded"))
	assert.Equal(t, 1.0, scoreKeyStorage("", ""))
	assert.Equal(t, 0.0, scoreKeyStorage("xor'd with 0xa5", ""))
}

// TestScoreDecodedStrings tests fractional credit per recovered entry.
func TestScoreDecodedStrings(t *testing.T) {
	gt := map[string]any{"a": "one", "b": "two", "c": "three", "d": "four"}
	agent := map[string]any{"a": "one", "b": "wrong", "c": "three"}

	assert.Equal(t, 0.5, scoreDecodedStrings(gt, agent))
	assert.Equal(t, 1.0, scoreDecodedStrings(map[string]any{}, map[string]any{}))
	assert.Equal(t, 0.0, scoreDecodedStrings(map[string]any{}, map[string]any{"x": "fabricated"}))
}

// TestScoreExact tests string and non-string comparison conventions.
func TestScoreExact(t *testing.T) {
	assert.Equal(t, 1.0, scoreExact("ELF64", " elf64 "))
	assert.Equal(t, 0.0, scoreExact("ELF64", "PE32+"))
	assert.Equal(t, 1.0, scoreExact(true, true))
	assert.Equal(t, 0.0, scoreExact(true, false))
	assert.Equal(t, 1.0, scoreExact(nil, nil))
	assert.Equal(t, 0.0, scoreExact("TCP", nil))
}

// TestWeightsSumToOne guards the rubric against drift when weights change.
func TestWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, w := range StandardWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	sum = 0.0
	for _, w := range BonusWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

// TestPrintSummary smoke tests the report table rendering.
func TestPrintSummary(t *testing.T) {
	standard := newScoreResult(TierStandard)
	standard.Sample = "level1_TCPServer"
	standard.WeightedScore = 0.9
	standard.FinalScore = 0.85

	bonus := newScoreResult(TierBonus)
	bonus.Sample = "level13_Stealth"
	bonus.FieldScores["decoded_c2"] = 1.0
	bonus.WeightedScore = 0.7
	bonus.FinalScore = 0.7

	var buf bytes.Buffer
	PrintSummary(&buf, []*ScoreResult{standard, bonus})

	out := buf.String()
	assert.Contains(t, out, "STANDARD LEVELS")
	assert.Contains(t, out, "BONUS LEVEL")
	assert.Contains(t, out, "GRAND TOTAL")
	assert.Contains(t, out, "level1_TCPServer")
	assert.Contains(t, out, "1.5500 / 2.0")
}

// TestPrintSummary_Empty tests the no-results path.
func TestPrintSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, nil)
	assert.Contains(t, buf.String(), "No results")
}

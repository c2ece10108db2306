package bench

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/agentre-bench/arb/harness"
)

// TaskMetrics captures per-task efficiency and quality measurements.
type TaskMetrics struct {
	TaskID                 string             `json:"task_id"`
	Score                  float64            `json:"score"`
	Tier                   string             `json:"tier"`
	FieldScores            map[string]float64 `json:"field_scores"`
	ToolCallsTotal         int                `json:"tool_calls_total"`
	ToolCallsByType        map[string]int     `json:"tool_calls_by_type"`
	RedundantToolCalls     int                `json:"redundant_tool_calls"`
	InvalidToolCalls       int                `json:"invalid_tool_calls"`
	InvalidJSONAttempts    int                `json:"invalid_json_attempts"`
	StepsToAnswer          int                `json:"steps_to_answer"`
	MaxStepsHit            bool               `json:"max_steps_hit"`
	HasValidAnswer         bool               `json:"has_valid_answer"`
	HallucinatedTechniques []string           `json:"hallucinated_techniques"`
	HallucinationCount     int                `json:"hallucination_count"`
	MissingTechniques      []string           `json:"missing_techniques"`
	WallTimeSeconds        float64            `json:"wall_time_seconds"`
	TotalTokens            int                `json:"total_tokens"`
	InputTokens            int                `json:"input_tokens"`
	OutputTokens           int                `json:"output_tokens"`
}

// AggregateMetrics summarizes a whole benchmark run.
type AggregateMetrics struct {
	SuccessRate            float64        `json:"success_rate"`
	MainScore              float64        `json:"main_score"`
	BonusScore             float64        `json:"bonus_score"`
	TotalScore             float64        `json:"total_score"`
	AvgToolCallsPerTask    float64        `json:"avg_tool_calls_per_task"`
	AvgToolCallsPerSuccess float64        `json:"avg_tool_calls_per_success"`
	ToolUsageDistribution  map[string]int `json:"tool_usage_distribution"`
	AvgHallucinationRate   float64        `json:"avg_hallucination_rate"`
	EpisodeLengthMin       float64        `json:"episode_length_min"`
	EpisodeLengthMax       float64        `json:"episode_length_max"`
	EpisodeLengthMean      float64        `json:"episode_length_mean"`
	EpisodeLengthMedian    float64        `json:"episode_length_median"`
	TotalWallTime          float64        `json:"total_wall_time"`
	TotalTokens            int            `json:"total_tokens"`
	MaxStepsHitCount       int            `json:"max_steps_hit_count"`
	TasksRun               int            `json:"tasks_run"`
	TasksWithAnswer        int            `json:"tasks_with_answer"`
}

// CollectTaskMetrics flattens an agent run record and its score into one
// per-task metrics row.
func CollectTaskMetrics(record *harness.RunRecord, score *ScoreResult) TaskMetrics {
	return TaskMetrics{
		TaskID:                 record.TaskID,
		Score:                  score.FinalScore,
		Tier:                   score.Tier,
		FieldScores:            score.FieldScores,
		ToolCallsTotal:         record.ToolCallCount,
		ToolCallsByType:        record.ToolCallsByType,
		RedundantToolCalls:     record.RedundantToolCalls,
		InvalidToolCalls:       record.InvalidToolCalls,
		InvalidJSONAttempts:    record.InvalidJSONAttempts,
		StepsToAnswer:          record.ToolCallCount,
		MaxStepsHit:            record.MaxStepsHit,
		HasValidAnswer:         record.HasValidAnswer,
		HallucinatedTechniques: score.HallucinatedTechniques,
		HallucinationCount:     len(score.HallucinatedTechniques),
		MissingTechniques:      score.MissingTechniques,
		WallTimeSeconds:        record.WallTimeSeconds,
		TotalTokens:            record.TotalTokens,
		InputTokens:            record.InputTokens,
		OutputTokens:           record.OutputTokens,
	}
}

// ComputeAggregate rolls task metrics up into run-level statistics. The
// main score averages the standard tiers; the bonus tier contributes its
// own point on top.
func ComputeAggregate(taskMetrics []TaskMetrics) AggregateMetrics {
	if len(taskMetrics) == 0 {
		return AggregateMetrics{ToolUsageDistribution: map[string]int{}}
	}

	agg := AggregateMetrics{TasksRun: len(taskMetrics)}

	var standard, bonus []TaskMetrics
	for _, m := range taskMetrics {
		switch m.Tier {
		case TierStandard:
			standard = append(standard, m)
		case TierBonus:
			bonus = append(bonus, m)
		}
	}

	for _, m := range taskMetrics {
		if m.HasValidAnswer {
			agg.TasksWithAnswer++
		}
	}
	agg.SuccessRate = round4(float64(agg.TasksWithAnswer) / float64(agg.TasksRun))

	if len(standard) > 0 {
		sum := 0.0
		for _, m := range standard {
			sum += m.Score
		}
		agg.MainScore = round4(sum / float64(len(standard)))
	}
	if len(bonus) > 0 {
		agg.BonusScore = round4(bonus[0].Score)
	}
	agg.TotalScore = round4(agg.MainScore + agg.BonusScore)

	allCalls := 0
	successCalls, successes := 0, 0
	for _, m := range taskMetrics {
		allCalls += m.ToolCallsTotal
		if m.HasValidAnswer {
			successCalls += m.ToolCallsTotal
			successes++
		}
	}
	agg.AvgToolCallsPerTask = round2(float64(allCalls) / float64(len(taskMetrics)))
	if successes > 0 {
		agg.AvgToolCallsPerSuccess = round2(float64(successCalls) / float64(successes))
	}

	dist := map[string]int{}
	for _, m := range taskMetrics {
		for tool, count := range m.ToolCallsByType {
			dist[tool] += count
		}
	}
	agg.ToolUsageDistribution = dist

	hallucTotal := 0
	for _, m := range taskMetrics {
		hallucTotal += m.HallucinationCount
	}
	agg.AvgHallucinationRate = round4(float64(hallucTotal) / float64(len(taskMetrics)))

	times := make([]float64, len(taskMetrics))
	for i, m := range taskMetrics {
		times[i] = m.WallTimeSeconds
		agg.TotalTokens += m.TotalTokens
		if m.MaxStepsHit {
			agg.MaxStepsHitCount++
		}
	}
	agg.EpisodeLengthMin = round2(floats.Min(times))
	agg.EpisodeLengthMax = round2(floats.Max(times))
	agg.EpisodeLengthMean = round2(stat.Mean(times, nil))
	agg.EpisodeLengthMedian = round2(median(times))
	agg.TotalWallTime = round2(floats.Sum(times))

	return agg
}

// median averages the two middle values for even-length input.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/agentre-bench/arb/bench"
)

var (
	scoreProjectRoot string
	scoreOutputDir   string
	scoreTaskFilter  string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Re-score saved agent outputs against ground truth",
	Long: `Read the verdicts a previous benchmark wrote under
<results>/agent_outputs/ and score them against the ground truth files,
without re-running any agent. Useful after tuning the rubric.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("report") {
			cfg.Bench.OutputDir = scoreOutputDir
		}
		if cmd.Flags().Changed("task") {
			cfg.Bench.TaskFilter = scoreTaskFilter
		}
		return rescore(cmd)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreProjectRoot, "project-root", ".", "directory holding tasks.json and ground_truths/")
	scoreCmd.Flags().StringVar(&scoreOutputDir, "report", "", "results directory holding agent_outputs/")
	scoreCmd.Flags().StringVar(&scoreTaskFilter, "task", "", "comma-separated task IDs to score (default: all)")
}

func rescore(cmd *cobra.Command) error {
	manifestPath := filepath.Join(scoreProjectRoot, cfg.Bench.TasksFile)
	tasks, err := bench.LoadTasks(manifestPath, scoreProjectRoot)
	if err != nil {
		return err
	}
	tasks, err = bench.FilterTasks(tasks, cfg.Bench.TaskFilter)
	if err != nil {
		return err
	}

	resultsDir := cfg.Bench.OutputDir
	if !filepath.IsAbs(resultsDir) {
		resultsDir = filepath.Join(scoreProjectRoot, resultsDir)
	}

	var results []*bench.ScoreResult
	for _, task := range tasks {
		gtRaw, err := os.ReadFile(task.GroundTruthPath)
		if err != nil {
			return fmt.Errorf("failed to read ground truth: %w", err)
		}
		var gt map[string]any
		if err := json.Unmarshal(gtRaw, &gt); err != nil {
			return fmt.Errorf("failed to parse ground truth %s: %w", task.GroundTruthPath, err)
		}

		answerPath := filepath.Join(resultsDir, "agent_outputs", task.TaskID+".json")
		answer := map[string]any{}
		if raw, err := os.ReadFile(answerPath); err == nil {
			if err := json.Unmarshal(raw, &answer); err != nil {
				logger.Warn().Str("path", answerPath).Err(err).Msg("agent output is not valid JSON, scoring as empty")
				answer = map[string]any{}
			}
		} else {
			logger.Warn().Str("task_id", task.TaskID).Msg("no saved agent output, scoring as empty")
		}

		score := bench.ScoreSample(gt, answer, task.GroundTruthPath)
		score.Sample = task.TaskID
		results = append(results, score)
	}

	bench.PrintSummary(cmd.OutOrStdout(), results)
	return nil
}

package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/ZanzyTHEbar/agentre-bench/arb/config"
	"github.com/ZanzyTHEbar/agentre-bench/arb/harness"
	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
	"github.com/ZanzyTHEbar/agentre-bench/arb/sandbox"
)

const (
	agentOutputsDirName = "agent_outputs"
	transcriptsDirName  = "transcripts"
	reportFileName      = "benchmark_report.json"
)

// Result bundles everything a finished benchmark produced.
type Result struct {
	Aggregate   AggregateMetrics
	TaskMetrics []TaskMetrics
	Scores      []*ScoreResult
}

// Runner drives agent runs over the task manifest, scores the submitted
// verdicts, and writes per-task outputs plus the final report.
type Runner struct {
	cfg          *config.Config
	provider     ports.Provider
	factory      *harness.Factory
	store        ports.RunStore
	groundTruths *GroundTruthLoader
	out          io.Writer
	logger       zerolog.Logger
}

// NewRunner assembles a benchmark runner. Model calls made through the
// runner are paced by the configured rate limiter, and ground truths are
// served through the shared cache.
func NewRunner(cfg *config.Config, provider ports.Provider, factory *harness.Factory, out io.Writer, logger zerolog.Logger) *Runner {
	return &Runner{
		cfg:          cfg,
		provider:     &limitedProvider{inner: provider, limiter: factory.CreateRateLimiter()},
		factory:      factory,
		store:        factory.CreateStore(),
		groundTruths: NewGroundTruthLoader(factory.CreateCache(), cfg.Harness.CacheTTLSeconds),
		out:          out,
		logger:       logger,
	}
}

// RunBenchmark executes every task in the manifest (optionally narrowed by
// taskFilter), prints the score summary, and writes the benchmark report
// under the output directory. Individual task failures are logged and
// skipped; the benchmark keeps going.
func (r *Runner) RunBenchmark(ctx context.Context, projectRoot, taskFilter string) (*Result, error) {
	manifestPath := filepath.Join(projectRoot, r.cfg.Bench.TasksFile)
	tasks, err := LoadTasks(manifestPath, projectRoot)
	if err != nil {
		return nil, err
	}
	tasks, err = FilterTasks(tasks, taskFilter)
	if err != nil {
		return nil, err
	}

	resultsDir := r.cfg.Bench.OutputDir
	if !filepath.IsAbs(resultsDir) {
		resultsDir = filepath.Join(projectRoot, resultsDir)
	}
	agentOutputsDir := filepath.Join(resultsDir, agentOutputsDirName)
	transcriptsDir := filepath.Join(resultsDir, transcriptsDirName)
	for _, dir := range []string{agentOutputsDir, transcriptsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	r.logger.Info().
		Int("tasks", len(tasks)).
		Str("provider", r.cfg.Provider.Name).
		Str("model", r.cfg.Provider.Model).
		Msg("running benchmark")

	parallelism := r.cfg.Bench.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	outcomes := make([]*taskOutcome, len(tasks))
	p := pool.New().WithMaxGoroutines(parallelism)
	for i, task := range tasks {
		p.Go(func() {
			outcome, err := r.runSingleTask(ctx, task, agentOutputsDir, transcriptsDir)
			if err != nil {
				r.logger.Error().Err(err).Str("task_id", task.TaskID).Msg("task failed")
				return
			}
			outcomes[i] = outcome
		})
	}
	p.Wait()

	var allMetrics []TaskMetrics
	var allScores []*ScoreResult
	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		allMetrics = append(allMetrics, outcome.metrics)
		allScores = append(allScores, outcome.score)
	}

	aggregate := ComputeAggregate(allMetrics)
	PrintSummary(r.out, allScores)

	reportPath := filepath.Join(resultsDir, reportFileName)
	if err := r.writeReport(reportPath, aggregate, allMetrics, allScores); err != nil {
		return nil, err
	}
	r.logger.Info().Str("path", reportPath).Msg("report saved")

	return &Result{Aggregate: aggregate, TaskMetrics: allMetrics, Scores: allScores}, nil
}

type taskOutcome struct {
	metrics TaskMetrics
	score   *ScoreResult
}

func (r *Runner) runSingleTask(ctx context.Context, task Task, agentOutputsDir, transcriptsDir string) (*taskOutcome, error) {
	logger := r.logger.With().Str("task_id", task.TaskID).Logger()
	logger.Info().Int("difficulty", task.Difficulty).Msg("starting task")

	if _, err := os.Stat(task.BinaryPath); err != nil {
		return nil, fmt.Errorf("binary not found: %s", task.BinaryPath)
	}

	gt, err := r.groundTruths.Load(ctx, task.GroundTruthPath)
	if err != nil {
		return nil, err
	}

	workspace := filepath.Dir(task.BinaryPath)
	runner, err := sandbox.NewRunner(r.cfg.Sandbox.UseDocker, workspace, sandbox.Options{
		Image:          r.cfg.Sandbox.DockerImage,
		Platform:       r.cfg.Sandbox.Platform,
		Memory:         r.cfg.Sandbox.Memory,
		CPUs:           r.cfg.Sandbox.CPUs,
		Timeout:        r.cfg.Sandbox.Timeout,
		MaxOutputChars: r.cfg.Sandbox.MaxOutputChars,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox runner: %w", err)
	}
	paths, err := sandbox.NewPathValidator(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	dispatcher, err := r.factory.CreateDispatcher(paths, runner)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	controller := r.factory.CreateController(r.provider, dispatcher)

	systemPrompt := BuildSystemPrompt(task, r.cfg.Sandbox.UseDocker)
	record, err := controller.Run(ctx, task.TaskID, systemPrompt)
	if err != nil {
		return nil, err
	}

	verdict := record.FinalAnswer
	if len(verdict) == 0 {
		verdict = json.RawMessage("{}")
	}
	outputPath := filepath.Join(agentOutputsDir, task.TaskID+".json")
	if err := writeJSONIndented(outputPath, verdict); err != nil {
		return nil, err
	}

	var answer map[string]any
	if err := json.Unmarshal(verdict, &answer); err != nil {
		answer = map[string]any{}
	}
	score := ScoreSample(gt, answer, task.GroundTruthPath)
	score.Sample = task.TaskID

	logger.Info().
		Float64("score", score.FinalScore).
		Str("tier", score.Tier).
		Msg("task scored")

	metrics := CollectTaskMetrics(record, score)

	if err := r.writeTranscripts(transcriptsDir, task, record, score, metrics); err != nil {
		return nil, err
	}
	r.persistRun(ctx, logger, task, record)

	return &taskOutcome{metrics: metrics, score: score}, nil
}

// recordSummary drops the conversation from the serialized run record; the
// full transcript is written to its own file.
type recordSummary struct {
	*harness.RunRecord
	Transcript []ports.Turn `json:"transcript,omitempty"`
}

func (r *Runner) writeTranscripts(transcriptsDir string, task Task, record *harness.RunRecord, score *ScoreResult, metrics TaskMetrics) error {
	summary := struct {
		TaskID      string        `json:"task_id"`
		Model       string        `json:"model"`
		Provider    string        `json:"provider"`
		Difficulty  int           `json:"difficulty"`
		Score       *ScoreResult  `json:"score"`
		AgentResult recordSummary `json:"agent_result"`
		Metrics     TaskMetrics   `json:"metrics"`
	}{
		TaskID:      task.TaskID,
		Model:       r.cfg.Provider.Model,
		Provider:    r.cfg.Provider.Name,
		Difficulty:  task.Difficulty,
		Score:       score,
		AgentResult: recordSummary{RunRecord: record},
		Metrics:     metrics,
	}
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript summary: %w", err)
	}
	summaryPath := filepath.Join(transcriptsDir, task.TaskID+"_transcript.json")
	if err := os.WriteFile(summaryPath, summaryJSON, 0o644); err != nil {
		return fmt.Errorf("failed to write transcript summary: %w", err)
	}

	transcript := record.Transcript
	if transcript == nil {
		transcript = []ports.Turn{}
	}
	fullJSON, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	fullPath := filepath.Join(transcriptsDir, task.TaskID+"_full_transcript.json")
	if err := os.WriteFile(fullPath, fullJSON, 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// persistRun saves the finished run to the store. Persistence is
// best-effort: failures are logged, never fatal to the benchmark.
func (r *Runner) persistRun(ctx context.Context, logger zerolog.Logger, task Task, record *harness.RunRecord) {
	recordJSON, err := json.Marshal(recordSummary{RunRecord: record})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to encode run record")
		return
	}

	runID := uuid.NewString()
	summary := ports.RunSummary{
		RunID:     runID,
		TaskID:    task.TaskID,
		Provider:  r.cfg.Provider.Name,
		Model:     r.cfg.Provider.Model,
		Verdict:   record.FinalAnswer,
		Record:    recordJSON,
		CreatedAt: time.Now(),
	}
	if err := r.store.SaveRun(ctx, summary); err != nil {
		logger.Warn().Err(err).Msg("failed to persist run")
		return
	}

	transcriptJSON, err := json.Marshal(record.Transcript)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to encode transcript artifact")
		return
	}
	if err := r.store.AppendArtifact(ctx, runID, "transcript", transcriptJSON); err != nil {
		logger.Warn().Err(err).Msg("failed to persist transcript artifact")
	}
}

func (r *Runner) writeReport(path string, aggregate AggregateMetrics, allMetrics []TaskMetrics, allScores []*ScoreResult) error {
	report := struct {
		Config struct {
			Model        string `json:"model"`
			Provider     string `json:"provider"`
			MaxToolCalls int    `json:"max_tool_calls"`
			UseDocker    bool   `json:"use_docker"`
		} `json:"config"`
		AggregateMetrics AggregateMetrics `json:"aggregate_metrics"`
		TaskMetrics      []TaskMetrics    `json:"task_metrics"`
		ScoreResults     []*ScoreResult   `json:"score_results"`
	}{
		AggregateMetrics: aggregate,
		TaskMetrics:      allMetrics,
		ScoreResults:     allScores,
	}
	report.Config.Model = r.cfg.Provider.Model
	report.Config.Provider = r.cfg.Provider.Name
	report.Config.MaxToolCalls = r.cfg.Harness.MaxToolCalls
	report.Config.UseDocker = r.cfg.Sandbox.UseDocker

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode benchmark report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write benchmark report: %w", err)
	}
	return nil
}

func writeJSONIndented(path string, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write agent output: %w", err)
	}
	return nil
}

// limitedProvider paces Send calls through the rate limiter so parallel
// tasks share one provider budget.
type limitedProvider struct {
	inner   ports.Provider
	limiter ports.RateLimiter
}

func (p *limitedProvider) Name() string { return p.inner.Name() }

func (p *limitedProvider) Send(ctx context.Context, in ports.Request) (*ports.Response, error) {
	release, err := p.limiter.Acquire(ctx, p.inner.Name())
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	defer release()
	return p.inner.Send(ctx, in)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/agentre-bench/arb/bench"
	"github.com/ZanzyTHEbar/agentre-bench/arb/config"
	"github.com/ZanzyTHEbar/agentre-bench/arb/db"
	"github.com/ZanzyTHEbar/agentre-bench/arb/harness"
	"github.com/ZanzyTHEbar/agentre-bench/arb/harness/adapters"
	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
	"github.com/ZanzyTHEbar/agentre-bench/arb/providers"
)

var (
	benchProjectRoot  string
	benchProvider     string
	benchModel        string
	benchAPIKey       string
	benchTaskFilter   string
	benchOutputDir    string
	benchMaxToolCalls int
	benchMaxTokens    int
	benchNoDocker     bool
	benchParallelism  int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the benchmark over the task manifest",
	Long: `Run every task in the manifest (or the subset named by --task),
write per-task agent outputs and transcripts, and print the score summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyBenchOverrides(cmd)
		return runBenchmark(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Run a single task by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyBenchOverrides(cmd)
		cfg.Bench.TaskFilter = args[0]
		return runBenchmark(cmd.Context())
	},
}

func init() {
	for _, c := range []*cobra.Command{benchCmd, runCmd} {
		c.Flags().StringVar(&benchProjectRoot, "project-root", ".", "directory holding tasks.json, binaries/ and ground_truths/")
		c.Flags().StringVar(&benchProvider, "provider", "", "LLM provider: "+providerChoices())
		c.Flags().StringVar(&benchModel, "model", "", "model name (default: provider-specific default)")
		c.Flags().StringVar(&benchAPIKey, "api-key", "", "API key override (normally loaded from .env or environment)")
		c.Flags().StringVar(&benchOutputDir, "report", "", "custom results directory path")
		c.Flags().IntVar(&benchMaxToolCalls, "max-tool-calls", 0, "max tool calls per task")
		c.Flags().IntVar(&benchMaxTokens, "max-tokens", 0, "max tokens per LLM response")
		c.Flags().BoolVar(&benchNoDocker, "no-docker", false, "run tools via subprocess instead of Docker")
	}
	benchCmd.Flags().StringVar(&benchTaskFilter, "task", "", "comma-separated task IDs to run (default: all)")
	benchCmd.Flags().IntVar(&benchParallelism, "parallelism", 0, "concurrent task runs (default: 1)")
}

// applyBenchOverrides folds changed command-line flags over the loaded
// configuration. Flags win over config file and environment.
func applyBenchOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider.Name = benchProvider
		// A provider switch invalidates a model carried over from config
		// defaults; fall back to the new provider's default unless --model
		// was given too.
		if !flags.Changed("model") {
			cfg.Provider.Model = providers.DefaultModel(benchProvider)
		}
	}
	if flags.Changed("model") {
		cfg.Provider.Model = benchModel
	}
	if flags.Changed("report") {
		cfg.Bench.OutputDir = benchOutputDir
	}
	if flags.Changed("task") {
		cfg.Bench.TaskFilter = benchTaskFilter
	}
	if flags.Changed("max-tool-calls") {
		cfg.Harness.MaxToolCalls = benchMaxToolCalls
	}
	if flags.Changed("max-tokens") {
		cfg.Harness.MaxTokens = benchMaxTokens
	}
	if flags.Changed("no-docker") {
		cfg.Sandbox.UseDocker = !benchNoDocker
	}
	if flags.Changed("parallelism") {
		cfg.Bench.Parallelism = benchParallelism
	}
}

func runBenchmark(ctx context.Context) error {
	cred, err := config.ResolveCredential(cfg.Provider.Name, benchAPIKey)
	if err != nil {
		return err
	}

	provider, err := providers.New(cfg.Provider.Name, providers.ClientConfig{
		APIKey:  cred.APIKey,
		Model:   cfg.Provider.Model,
		BaseURL: cfg.Provider.BaseURL,
		Timeout: cfg.Provider.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	var store ports.RunStore
	if cfg.Database.Enabled {
		manager := db.NewManager(cfg.Database.DSN)
		defer manager.Close()
		handle, err := manager.Handle(ctx)
		if err != nil {
			// Persistence is best-effort; a broken results DB should not
			// block a benchmark whose report lands on disk anyway.
			logger.Warn().Err(err).Msg("run store unavailable, continuing without persistence")
		} else {
			store = adapters.NewLibSQLRunStore(handle)
		}
	}

	factory := harness.NewFactory(&cfg.Harness, store, logger)
	runner := bench.NewRunner(cfg, provider, factory, os.Stdout, logger)

	result, err := runner.RunBenchmark(ctx, benchProjectRoot, cfg.Bench.TaskFilter)
	if err != nil {
		return err
	}
	if result.Aggregate.TasksRun == 0 {
		return fmt.Errorf("no task produced a result")
	}
	return nil
}

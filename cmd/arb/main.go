// arb is the AgentRE-Bench command line: it runs LLM agents against
// reverse-engineering tasks in a sandboxed toolbox and scores the verdicts
// they submit against ground truth.
//
// API keys are loaded from .env in the working directory (or the process
// environment). Create one with:
//
//	ANTHROPIC_API_KEY=sk-ant-...
//	OPENAI_API_KEY=sk-...
//	GOOGLE_API_KEY=AI...
//	DEEPSEEK_API_KEY=sk-...
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/agentre-bench/arb/config"
	"github.com/ZanzyTHEbar/agentre-bench/arb/providers"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded configuration and logger, populated by the root PersistentPreRunE.
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "arb",
	Short: "AgentRE-Bench: evaluate LLM agents on reverse engineering tasks",
	Long: `AgentRE-Bench drives an LLM agent over a set of binaries with a
constrained investigation toolbox (file, strings, readelf, objdump, nm,
hexdump, xxd, entropy, pefile), collects the verdict it submits, and scores
it against ground truth.

Tools run inside a network-disabled, read-only Docker sandbox by default;
pass --no-docker to run them as local subprocesses instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env never overwrites variables already set in the environment.
		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ./config.yaml, then XDG config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show agent reasoning, tool calls, and outputs in real time")

	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scoreCmd)
}

func providerChoices() string {
	return strings.Join(providers.Names(), ", ")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

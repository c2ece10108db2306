package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/agentre-bench/arb"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Bench    BenchConfig    `mapstructure:"bench"`
	Harness  HarnessConfig  `mapstructure:"harness"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
	Provider ProviderConfig `mapstructure:"provider"`
	Database DatabaseConfig `mapstructure:"database"`
}

// BenchConfig stores benchmark run configurations.
type BenchConfig struct {
	TasksFile   string `mapstructure:"tasks_file"`  // Task manifest path
	OutputDir   string `mapstructure:"output_dir"`  // Report and agent output directory
	Parallelism int    `mapstructure:"parallelism"` // Concurrent task runs
	TaskFilter  string `mapstructure:"task_filter"` // Comma-separated task IDs, empty runs all
}

// HarnessConfig stores agent loop configurations.
type HarnessConfig struct {
	// Budget
	MaxToolCalls      int `mapstructure:"max_tool_calls"`     // Hard cap on dispatched tool calls per run
	WarnRemaining     int `mapstructure:"warn_remaining"`     // First budget warning threshold
	CriticalRemaining int `mapstructure:"critical_remaining"` // Final budget warning threshold
	MaxTokens         int `mapstructure:"max_tokens"`         // Per-request model output token cap

	// Toolbox
	AllowedTools []string `mapstructure:"allowed_tools"` // Investigation tool allow-list, empty selects the default set

	// Cache settings
	CacheEnabled    bool `mapstructure:"cache_enabled"`     // Enable ground truth caching
	CacheCapacity   int  `mapstructure:"cache_capacity"`    // LRU cache capacity
	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"` // Cache entry TTL

	// Rate limiting
	RateLimitEnabled    bool          `mapstructure:"rate_limit_enabled"`     // Enable provider rate limiting
	RateLimitCapacity   int           `mapstructure:"rate_limit_capacity"`    // Token bucket capacity
	RateLimitRefillRate time.Duration `mapstructure:"rate_limit_refill_rate"` // Refill rate

	// Telemetry
	EnableTracing bool `mapstructure:"enable_tracing"` // Enable structured logging/tracing
}

// SandboxConfig stores command execution configurations.
type SandboxConfig struct {
	UseDocker      bool          `mapstructure:"use_docker"`       // Run tools in a container instead of locally
	DockerImage    string        `mapstructure:"docker_image"`     // Image with the RE toolchain
	Platform       string        `mapstructure:"platform"`         // Container platform
	Memory         string        `mapstructure:"memory"`           // Container memory limit
	CPUs           string        `mapstructure:"cpus"`             // Container CPU limit
	Timeout        time.Duration `mapstructure:"timeout"`          // Per-command wall clock limit
	MaxOutputChars int           `mapstructure:"max_output_chars"` // Per-stream capture cap
}

// ProviderConfig stores model backend configurations.
type ProviderConfig struct {
	Name           string        `mapstructure:"name"`            // "anthropic", "openai", "gemini", "deepseek", "openrouter"
	Model          string        `mapstructure:"model"`           // Vendor model identifier
	BaseURL        string        `mapstructure:"base_url"`        // API endpoint override, empty uses the vendor default
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // HTTP timeout per model call
}

// DatabaseConfig stores run persistence details.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	Type    string `mapstructure:"type"`
	// Embedded-only configuration
	LibSQLDataDir string `mapstructure:"libsql_data_dir"` // Directory for database files
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Bench defaults
	viper.SetDefault("bench.tasks_file", internal.DefaultTasksFile)
	viper.SetDefault("bench.output_dir", internal.DefaultOutputDir)
	viper.SetDefault("bench.parallelism", 1)
	viper.SetDefault("bench.task_filter", "")

	// Harness defaults
	viper.SetDefault("harness.max_tool_calls", 25)
	viper.SetDefault("harness.warn_remaining", 5)
	viper.SetDefault("harness.critical_remaining", 2)
	viper.SetDefault("harness.max_tokens", 4096)
	viper.SetDefault("harness.allowed_tools", []string{}) // Empty selects the default toolbox
	viper.SetDefault("harness.cache_enabled", true)
	viper.SetDefault("harness.cache_capacity", 128)
	viper.SetDefault("harness.cache_ttl_seconds", 3600) // 1 hour
	viper.SetDefault("harness.rate_limit_enabled", true)
	viper.SetDefault("harness.rate_limit_capacity", 10)
	viper.SetDefault("harness.rate_limit_refill_rate", "1s")
	viper.SetDefault("harness.enable_tracing", true)

	// Sandbox defaults
	viper.SetDefault("sandbox.use_docker", true)
	viper.SetDefault("sandbox.docker_image", internal.DefaultDockerImage)
	viper.SetDefault("sandbox.platform", "linux/amd64")
	viper.SetDefault("sandbox.memory", "512m")
	viper.SetDefault("sandbox.cpus", "1")
	viper.SetDefault("sandbox.timeout", "30s")
	viper.SetDefault("sandbox.max_output_chars", 50000)

	// Provider defaults
	viper.SetDefault("provider.name", "anthropic")
	viper.SetDefault("provider.model", "claude-opus-4-6")
	viper.SetDefault("provider.base_url", "")
	viper.SetDefault("provider.request_timeout", "300s")

	// Database defaults (persistence is opt-in)
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.dsn", internal.DefaultDatabaseDSN)
	viper.SetDefault("database.type", internal.DefaultDatabaseType)
	viper.SetDefault("database.libsql_data_dir", internal.DefaultDatabaseDir)

	viper.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. sandbox.docker_image becomes SANDBOX_DOCKER_IMAGE
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used. This is not an error for the application to halt on.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}

// LoadDotEnv merges a dotenv file into the process environment without
// overwriting variables that are already set. With no arguments it loads
// ./.env when present and is a no-op otherwise.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		return godotenv.Load()
	}
	return godotenv.Load(files...)
}

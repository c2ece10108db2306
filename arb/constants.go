package arb

import (
	"os"
	"path/filepath"
)

// Application identity and default filesystem locations. Everything here can
// be overridden through configuration; these are the fallbacks the config
// loader seeds viper with.
const (
	DefaultAppName = "agentre-bench"

	// DefaultDockerImage is the sandbox image the dockerised command runner
	// launches tools in. The image ships the RE toolchain (binutils, file,
	// python3 with pefile).
	DefaultDockerImage = "agentre-bench-tools:latest"

	// DefaultTasksFile is the benchmark manifest consulted when no explicit
	// path is given on the command line.
	DefaultTasksFile = "tasks.json"

	// DefaultOutputDir receives benchmark reports and per-task agent output,
	// split into agent_outputs/ and transcripts/ subdirectories.
	DefaultOutputDir = "results"

	DefaultDatabaseType = "libsql"
)

var (
	DefaultConfigPath  = filepath.Join(userHome(), ".config", DefaultAppName)
	DefaultDatabaseDir = filepath.Join(userHome(), ".local", "share", DefaultAppName)
	DefaultDatabaseDSN = "file:" + filepath.Join(DefaultDatabaseDir, "runs.db")
)

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

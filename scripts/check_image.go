//go:build integration
// +build integration

package scripts

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ZanzyTHEbar/agentre-bench/arb/sandbox"
)

// toolboxProbes maps each binary the investigation toolbox shells out to
// onto an argv that exits zero when the binary is present and working.
var toolboxProbes = [][]string{
	{"file", "--version"},
	{"strings", "--version"},
	{"readelf", "--version"},
	{"objdump", "--version"},
	{"nm", "--version"},
	{"hexdump", "/dev/null"},
	{"xxd", "-v"},
	{"python3", "-c", "import struct, math"},
	{"python3", "-c", "import pefile"},
}

// RunCheckImage verifies the configured sandbox image carries the full RE
// toolchain by running one probe per tool inside a locked down container.
func RunCheckImage() {
	image := os.Getenv("SANDBOX_DOCKER_IMAGE")
	if image == "" {
		image = "agentre-bench-tools:latest"
	}
	fmt.Printf("Probing sandbox image %s\n", image)

	dir, err := os.MkdirTemp("", "arb-image-*")
	must(err, "tempdir")
	defer os.RemoveAll(dir)

	runner, err := sandbox.NewDockerRunner(dir, sandbox.Options{Image: image})
	must(err, "docker runner")

	ctx := context.Background()
	failed := 0
	for _, argv := range toolboxProbes {
		result, err := runner.Run(ctx, argv)
		if err != nil {
			log.Fatalf("docker failed running %v: %v", argv, err)
		}
		status := "ok"
		if result.TimedOut {
			status = "TIMED OUT"
			failed++
		} else if result.ExitCode != 0 {
			status = fmt.Sprintf("exit %d", result.ExitCode)
			failed++
		}
		fmt.Printf("  %-40v %s\n", argv, status)
	}

	if failed > 0 {
		log.Fatalf("%d probe(s) failed; rebuild the sandbox image", failed)
	}
	fmt.Println("OK: toolbox complete")
}

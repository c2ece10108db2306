package tools

import (
	"encoding/json"
	"fmt"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// ReadelfSchema defines the JSON schema for readelf tool parameters.
const ReadelfSchema = `{
  "type": "object",
  "properties": {
    "path": {
      "type": "string",
      "description": "Path to the ELF binary."
    },
    "flags": {
      "type": "string",
      "enum": ["-h", "-S", "-s", "-l", "-d", "-a"],
      "description": "readelf flag: -h (header), -S (sections), -s (symbols), -l (program headers), -d (dynamic), -a (all)."
    }
  },
  "required": ["path", "flags"]
}`

var readelfFlags = map[string]bool{
	"-h": true,
	"-S": true,
	"-s": true,
	"-l": true,
	"-d": true,
	"-a": true,
}

// ReadelfTool displays information about ELF files.
type ReadelfTool struct{}

func NewReadelfTool() *ReadelfTool { return &ReadelfTool{} }

func (t *ReadelfTool) Name() string { return "readelf" }

func (t *ReadelfTool) Spec() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        t.Name(),
		Description: "Display information about ELF binary sections, headers, symbols, etc.",
		JSONSchema:  []byte(ReadelfSchema),
	}
}

func (t *ReadelfTool) BuildArgv(args json.RawMessage, target string) ([]string, error) {
	var params struct {
		Path  string `json:"path"`
		Flags string `json:"flags"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	flags := params.Flags
	if flags == "" {
		flags = "-h"
	}
	if !readelfFlags[flags] {
		return nil, fmt.Errorf("invalid readelf flag: %q", flags)
	}
	return []string{"readelf", flags, target}, nil
}

var _ ports.CommandTool = (*ReadelfTool)(nil)

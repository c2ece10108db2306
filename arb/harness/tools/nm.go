package tools

import (
	"encoding/json"
	"fmt"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// NmSchema defines the JSON schema for nm tool parameters.
const NmSchema = `{
  "type": "object",
  "properties": {
    "path": {
      "type": "string",
      "description": "Path to the binary."
    }
  },
  "required": ["path"]
}`

// NmTool lists symbols from object files.
type NmTool struct{}

func NewNmTool() *NmTool { return &NmTool{} }

func (t *NmTool) Name() string { return "nm" }

func (t *NmTool) Spec() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        t.Name(),
		Description: "List symbols from an object file or binary.",
		JSONSchema:  []byte(NmSchema),
	}
}

func (t *NmTool) BuildArgv(args json.RawMessage, target string) ([]string, error) {
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return []string{"nm", target}, nil
}

var _ ports.CommandTool = (*NmTool)(nil)

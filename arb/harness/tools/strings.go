package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// StringsSchema defines the JSON schema for strings tool parameters.
const StringsSchema = `{
  "type": "object",
  "properties": {
    "path": {
      "type": "string",
      "description": "Path to the binary file."
    },
    "min_length": {
      "type": "integer",
      "description": "Minimum string length (default 4)."
    }
  },
  "required": ["path"]
}`

// StringsTool extracts printable strings from a binary.
type StringsTool struct{}

func NewStringsTool() *StringsTool { return &StringsTool{} }

func (t *StringsTool) Name() string { return "strings" }

func (t *StringsTool) Spec() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        t.Name(),
		Description: "Extract printable strings from a binary. Returns readable ASCII/UTF-8 strings found in the file.",
		JSONSchema:  []byte(StringsSchema),
	}
}

func (t *StringsTool) BuildArgv(args json.RawMessage, target string) ([]string, error) {
	var params struct {
		Path      string `json:"path"`
		MinLength *int   `json:"min_length"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	argv := []string{"strings"}
	if params.MinLength != nil {
		argv = append(argv, "-n", strconv.Itoa(*params.MinLength))
	}
	return append(argv, target), nil
}

var _ ports.CommandTool = (*StringsTool)(nil)

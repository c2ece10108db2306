package tools

import (
	"encoding/json"
	"fmt"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// FileSchema defines the JSON schema for file tool parameters.
const FileSchema = `{
  "type": "object",
  "properties": {
    "path": {
      "type": "string",
      "description": "Path to the binary file (relative to workspace)."
    }
  },
  "required": ["path"]
}`

// FileTool identifies a file's type via the file command.
type FileTool struct{}

func NewFileTool() *FileTool { return &FileTool{} }

func (t *FileTool) Name() string { return "file" }

func (t *FileTool) Spec() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        t.Name(),
		Description: "Identify file type. Returns the output of the `file` command.",
		JSONSchema:  []byte(FileSchema),
	}
}

func (t *FileTool) BuildArgv(args json.RawMessage, target string) ([]string, error) {
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return []string{"file", target}, nil
}

var _ ports.CommandTool = (*FileTool)(nil)

package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// XxdSchema defines the JSON schema for xxd tool parameters.
const XxdSchema = `{
  "type": "object",
  "properties": {
    "path": {
      "type": "string",
      "description": "Path to the binary."
    },
    "offset": {
      "type": "integer",
      "description": "Byte offset to start from (default 0)."
    },
    "length": {
      "type": "integer",
      "description": "Number of bytes to dump (max 4096, default 256)."
    }
  },
  "required": ["path"]
}`

// XxdTool dumps file contents as hex in xxd's output format.
type XxdTool struct{}

func NewXxdTool() *XxdTool { return &XxdTool{} }

func (t *XxdTool) Name() string { return "xxd" }

func (t *XxdTool) Spec() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        t.Name(),
		Description: "Create a hex dump of a file. Similar to hexdump but with a different output format.",
		JSONSchema:  []byte(XxdSchema),
	}
}

func (t *XxdTool) BuildArgv(args json.RawMessage, target string) ([]string, error) {
	var params struct {
		Path   string `json:"path"`
		Offset *int   `json:"offset"`
		Length *int   `json:"length"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	offset := 0
	if params.Offset != nil {
		offset = *params.Offset
	}
	length := 256
	if params.Length != nil {
		length = *params.Length
	}
	if length > maxDumpBytes {
		length = maxDumpBytes
	}
	return []string{"xxd", "-s", strconv.Itoa(offset), "-l", strconv.Itoa(length), target}, nil
}

var _ ports.CommandTool = (*XxdTool)(nil)

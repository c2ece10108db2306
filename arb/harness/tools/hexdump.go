package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// maxDumpBytes caps how much of a binary a single dump call may return.
const maxDumpBytes = 4096

// HexdumpSchema defines the JSON schema for hexdump tool parameters.
const HexdumpSchema = `{
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

// HexdumpTool dumps file contents in canonical hex+ASCII form.
type HexdumpTool struct{}

func NewHexdumpTool() *HexdumpTool { return &HexdumpTool{} }

func (t *HexdumpTool) Name() string { return "hexdump" }

func (t *HexdumpTool) Spec() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        t.Name(),
		Description: "Display a hex+ASCII dump of a binary file. Useful for examining raw bytes at specific offsets.",
		JSONSchema:  []byte(HexdumpSchema),
	}
}

func (t *HexdumpTool) BuildArgv(args json.RawMessage, target string) ([]string, error) {
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
	return []string{"hexdump", "-C", "-s", strconv.Itoa(offset), "-n", strconv.Itoa(length), target}, nil
}

var _ ports.CommandTool = (*HexdumpTool)(nil)

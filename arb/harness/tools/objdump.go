package tools

import (
	"encoding/json"
	"fmt"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// ObjdumpSchema defines the JSON schema for objdump tool parameters.
const ObjdumpSchema = `{
  "type": "object",
  "properties": {
    "path": {
      "type": "string",
      "description": "Path to the binary."
    },
    "flags": {
      "type": "string",
      "enum": ["-d", "-D", "-t", "-x", "-s"],
      "description": "objdump flag: -d (disassemble), -D (disassemble all), -t (symbol table), -x (all headers), -s (full contents)."
    },
    "section": {
      "type": "string",
      "description": "Optional section name to target (e.g. .text, .rodata)."
    }
  },
  "required": ["path", "flags"]
}`

var objdumpFlags = map[string]bool{
	"-d": true,
	"-D": true,
	"-t": true,
	"-x": true,
	"-s": true,
}

// ObjdumpTool disassembles and inspects binaries.
type ObjdumpTool struct{}

func NewObjdumpTool() *ObjdumpTool { return &ObjdumpTool{} }

func (t *ObjdumpTool) Name() string { return "objdump" }

func (t *ObjdumpTool) Spec() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        t.Name(),
		Description: "Disassemble or dump information from a binary. Use -d for disassembly, -t for symbols, -x for all headers, -s for full contents.",
		JSONSchema:  []byte(ObjdumpSchema),
	}
}

func (t *ObjdumpTool) BuildArgv(args json.RawMessage, target string) ([]string, error) {
	var params struct {
		Path    string `json:"path"`
		Flags   string `json:"flags"`
		Section string `json:"section"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	flags := params.Flags
	if flags == "" {
		flags = "-d"
	}
	if !objdumpFlags[flags] {
		return nil, fmt.Errorf("invalid objdump flag: %q", flags)
	}
	argv := []string{"objdump", flags}
	if params.Section != "" {
		argv = append(argv, "-j", params.Section)
	}
	return append(argv, target), nil
}

var _ ports.CommandTool = (*ObjdumpTool)(nil)

package tools

import (
	"encoding/json"
	"fmt"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// PefileSchema defines the JSON schema for pefile tool parameters.
const PefileSchema = `{
  "type": "object",
  "properties": {
    "path": {
      "type": "string",
      "description": "Path to the PE file to analyze (relative to workspace root)"
    },
    "flags": {
      "type": "string",
      "description": "Analysis flags: 'headers' (DOS/NT/optional headers), 'sections' (section table), 'imports' (import directory), 'exports' (export directory), 'resources' (resources), 'all' (comprehensive dump)",
      "enum": ["headers", "sections", "imports", "exports", "resources", "all"],
      "default": "headers"
    }
  },
  "required": ["path"]
}`

// PefileScript parses PE headers with the pefile library. It runs inside
// the sandbox via python3 -c with path and flags as positional arguments,
// never interpolated into the script source.
const PefileScript = `
import pefile
import sys

path = sys.argv[1]
flags = sys.argv[2] if len(sys.argv) > 2 else "headers"

try:
    pe = pefile.PE(path)

    if flags == 'headers' or flags == 'all':
        print("=== DOS HEADER ===")
        print(pe.DOS_HEADER)
        print("\n=== NT HEADERS ===")
        print(pe.NT_HEADERS)
        print("\n=== OPTIONAL HEADER ===")
        print(pe.OPTIONAL_HEADER)

    if flags == 'sections' or flags == 'all':
        print("\n=== SECTIONS ===")
        for section in pe.sections:
            print(f"{section.Name.decode().rstrip(chr(0))}:")
            print(f"  Virtual Address: 0x{section.VirtualAddress:x}")
            print(f"  Virtual Size: 0x{section.Misc_VirtualSize:x}")
            print(f"  Raw Size: 0x{section.SizeOfRawData:x}")
            print(f"  Characteristics: 0x{section.Characteristics:x}")

    if flags == 'imports' or flags == 'all':
        print("\n=== IMPORTS ===")
        if hasattr(pe, 'DIRECTORY_ENTRY_IMPORT'):
            for entry in pe.DIRECTORY_ENTRY_IMPORT:
                print(f"{entry.dll.decode()}:")
                for imp in entry.imports:
                    if imp.name:
                        print(f"  {imp.name.decode()}")

    if flags == 'exports' or flags == 'all':
        print("\n=== EXPORTS ===")
        if hasattr(pe, 'DIRECTORY_ENTRY_EXPORT'):
            for exp in pe.DIRECTORY_ENTRY_EXPORT.symbols:
                print(f"  {exp.name.decode() if exp.name else 'ordinal=' + str(exp.ordinal)}")

    if flags == 'resources' or flags == 'all':
        print("\n=== RESOURCES ===")
        if hasattr(pe, 'DIRECTORY_ENTRY_RESOURCE'):
            print("Resource directory present")

    pe.close()
except Exception as e:
    print(f"Error: {str(e)}", file=sys.stderr)
    sys.exit(1)
`

var pefileFlags = map[string]bool{
	"headers":   true,
	"sections":  true,
	"imports":   true,
	"exports":   true,
	"resources": true,
	"all":       true,
}

// PefileTool parses Windows PE binaries.
type PefileTool struct{}

func NewPefileTool() *PefileTool { return &PefileTool{} }

func (t *PefileTool) Name() string { return "pefile" }

func (t *PefileTool) Spec() ports.ToolSpec {
	return ports.ToolSpec{
		Name: t.Name(),
		Description: "Analyze Windows PE (Portable Executable) files. Parse PE headers, sections, imports, " +
			"exports, and resources. Use this for .exe, .dll, and other PE format binaries.",
		JSONSchema: []byte(PefileSchema),
	}
}

func (t *PefileTool) BuildArgv(args json.RawMessage, target string) ([]string, error) {
	var params struct {
		Path  string `json:"path"`
		Flags string `json:"flags"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	flags := params.Flags
	if flags == "" {
		flags = "headers"
	}
	if !pefileFlags[flags] {
		return nil, fmt.Errorf("invalid pefile flags: %q", flags)
	}
	return []string{"python3", "-c", PefileScript, target, flags}, nil
}

var _ ports.CommandTool = (*PefileTool)(nil)

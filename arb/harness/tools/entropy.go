package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// EntropySchema defines the JSON schema for entropy tool parameters.
const EntropySchema = `{
  "type": "object",
  "properties": {
    "path": {
      "type": "string",
      "description": "Path to the binary."
    },
    "section": {
      "type": "string",
      "description": "Optional ELF section name (e.g. .text, .rodata, .data)."
    },
    "window_size": {
      "type": "integer",
      "description": "Sliding window size in bytes (default 256)."
    }
  },
  "required": ["path"]
}`

// EntropyScript computes sliding-window Shannon entropy. It runs inside
// the sandbox via python3 -c and takes path, section and window size as
// positional arguments.
const EntropyScript = `
import math, struct, sys, os

def entropy(data, window=256):
    results = []
    for i in range(0, len(data), window):
        chunk = data[i:i+window]
        if len(chunk) < 16:
            break
        freq = [0]*256
        for b in chunk:
            freq[b] += 1
        n = len(chunk)
        ent = 0.0
        for f in freq:
            if f > 0:
                p = f / n
                ent -= p * math.log2(p)
        results.append((i, len(chunk), round(ent, 4)))
    return results

path = sys.argv[1]
section = sys.argv[2] if len(sys.argv) > 2 and sys.argv[2] != "" else None
window = int(sys.argv[3]) if len(sys.argv) > 3 else 256

with open(path, "rb") as f:
    data = f.read()

if section:
    # Parse ELF section headers to find the section
    if data[:4] != b"\x7fELF":
        print(f"Error: not an ELF file", file=sys.stderr)
        sys.exit(1)
    is_64 = data[4] == 2
    if is_64:
        e_shoff = struct.unpack_from("<Q", data, 40)[0]
        e_shentsize = struct.unpack_from("<H", data, 58)[0]
        e_shnum = struct.unpack_from("<H", data, 60)[0]
        e_shstrndx = struct.unpack_from("<H", data, 62)[0]
        # Get section name string table
        str_sh_off = e_shoff + e_shstrndx * e_shentsize
        str_sh_offset = struct.unpack_from("<Q", data, str_sh_off + 24)[0]
        str_sh_size = struct.unpack_from("<Q", data, str_sh_off + 32)[0]
        strtab = data[str_sh_offset:str_sh_offset+str_sh_size]
        found = False
        for i in range(e_shnum):
            off = e_shoff + i * e_shentsize
            sh_name_idx = struct.unpack_from("<I", data, off)[0]
            name = strtab[sh_name_idx:].split(b"\x00")[0].decode("ascii", errors="replace")
            if name == section:
                sh_offset = struct.unpack_from("<Q", data, off + 24)[0]
                sh_size = struct.unpack_from("<Q", data, off + 32)[0]
                data = data[sh_offset:sh_offset+sh_size]
                found = True
                break
        if not found:
            print(f"Section {section!r} not found", file=sys.stderr)
            sys.exit(1)
    else:
        print("Only ELF64 supported for section targeting", file=sys.stderr)
        sys.exit(1)

results = entropy(data, window)
total_ent = 0.0
if data:
    freq = [0]*256
    for b in data:
        freq[b] += 1
    n = len(data)
    for f in freq:
        if f > 0:
            p = f / n
            total_ent -= p * math.log2(p)

print(f"Total size: {len(data)} bytes")
print(f"Overall entropy: {total_ent:.4f} bits/byte")
print(f"Window size: {window} bytes")
print(f"Windows analyzed: {len(results)}")
print()
if results:
    ents = [r[2] for r in results]
    print(f"Min window entropy: {min(ents):.4f}")
    print(f"Max window entropy: {max(ents):.4f}")
    print(f"Avg window entropy: {sum(ents)/len(ents):.4f}")
    print()
    print("Offset      Size  Entropy")
    print("-" * 35)
    for offset, size, ent in results[:50]:
        bar = "#" * int(ent * 4)
        print(f"0x{offset:08x}  {size:4d}  {ent:.4f}  {bar}")
    if len(results) > 50:
        print(f"... ({len(results) - 50} more windows)")
`

// EntropyTool measures how random regions of a binary look. Encrypted or
// packed payloads stand out as windows above ~7 bits/byte.
type EntropyTool struct{}

func NewEntropyTool() *EntropyTool { return &EntropyTool{} }

func (t *EntropyTool) Name() string { return "entropy" }

func (t *EntropyTool) Spec() ports.ToolSpec {
	return ports.ToolSpec{
		Name: t.Name(),
		Description: "Compute Shannon entropy (0.0-8.0) over a sliding window. " +
			"High entropy (>7.0) indicates encrypted or compressed data. " +
			"Low entropy (<4.0) indicates plaintext or sparse data. " +
			"Optionally target a specific ELF section.",
		JSONSchema: []byte(EntropySchema),
	}
}

func (t *EntropyTool) BuildArgv(args json.RawMessage, target string) ([]string, error) {
	var params struct {
		Path       string `json:"path"`
		Section    string `json:"section"`
		WindowSize *int   `json:"window_size"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	window := 256
	if params.WindowSize != nil {
		window = *params.WindowSize
	}
	return []string{"python3", "-c", EntropyScript, target, params.Section, strconv.Itoa(window)}, nil
}

var _ ports.CommandTool = (*EntropyTool)(nil)

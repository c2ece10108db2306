package tools

import (
	"fmt"
	"strings"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// DefaultToolNames returns the standard toolbox offered when no explicit
// allow-list is configured. pefile is opt-in since most samples are ELF.
func DefaultToolNames() []string {
	return []string{"file", "strings", "readelf", "objdump", "nm", "hexdump", "xxd", "entropy"}
}

func builtins() []ports.CommandTool {
	return []ports.CommandTool{
		NewFileTool(),
		NewStringsTool(),
		NewReadelfTool(),
		NewObjdumpTool(),
		NewNmTool(),
		NewHexdumpTool(),
		NewXxdTool(),
		NewEntropyTool(),
		NewPefileTool(),
	}
}

// Registry holds the allow-listed command tools for a run. The submission
// tool is not a member: it is always offered and never executed.
type Registry struct {
	order  []string
	byName map[string]ports.CommandTool
}

// NewRegistry builds a registry restricted to the named tools. Names not
// in the builtin toolbox are rejected.
func NewRegistry(names []string) (*Registry, error) {
	all := make(map[string]ports.CommandTool)
	for _, t := range builtins() {
		all[t.Name()] = t
	}
	r := &Registry{byName: make(map[string]ports.CommandTool)}
	for _, name := range names {
		t, ok := all[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool: %q", name)
		}
		if _, dup := r.byName[name]; dup {
			continue
		}
		r.byName[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (ports.CommandTool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func (r *Registry) Allowed(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns the allowed tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns the wire schemas for every allowed tool, with the
// submission tool appended last.
func (r *Registry) Specs() []ports.ToolSpec {
	specs := make([]ports.ToolSpec, 0, len(r.order)+1)
	for _, name := range r.order {
		specs = append(specs, r.byName[name].Spec())
	}
	return append(specs, FinalAnswerSpec())
}

// universalTools work with all binary formats.
var universalTools = map[string]bool{
	"file":    true,
	"strings": true,
	"hexdump": true,
	"xxd":     true,
	"entropy": true,
}

// formatTools maps binary-format prefixes to their format-specific tools.
// nm handles Mach-O; otool is not available in the sandbox image.
var formatTools = []struct {
	prefix string
	names  map[string]bool
}{
	{"ELF", map[string]bool{"readelf": true, "objdump": true, "nm": true}},
	{"MACH-O", map[string]bool{"nm": true}},
	{"PE", map[string]bool{"pefile": true}},
}

// AllSpecs returns the wire schemas for the full builtin toolbox.
func AllSpecs(includeFinalAnswer bool) []ports.ToolSpec {
	specs := make([]ports.ToolSpec, 0, 10)
	for _, t := range builtins() {
		specs = append(specs, t.Spec())
	}
	if includeFinalAnswer {
		specs = append(specs, FinalAnswerSpec())
	}
	return specs
}

// SpecsForFormat returns the wire schemas appropriate for the given binary
// format, e.g. "ELF64", "PE32+" or "Mach-O 64-bit". Format matching is a
// case-insensitive prefix check; unknown formats get the universal tools.
func SpecsForFormat(fileType string, includeFinalAnswer bool) []ports.ToolSpec {
	allowed := make(map[string]bool, len(universalTools))
	for name := range universalTools {
		allowed[name] = true
	}
	upper := strings.ToUpper(fileType)
	for _, ft := range formatTools {
		if strings.HasPrefix(upper, ft.prefix) {
			for name := range ft.names {
				allowed[name] = true
			}
			break
		}
	}

	specs := make([]ports.ToolSpec, 0, len(allowed)+1)
	for _, t := range builtins() {
		if allowed[t.Name()] {
			specs = append(specs, t.Spec())
		}
	}
	if includeFinalAnswer {
		specs = append(specs, FinalAnswerSpec())
	}
	return specs
}

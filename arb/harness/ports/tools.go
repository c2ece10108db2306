package harnessports

import "encoding/json"

// ToolSpec describes a callable tool exposed to the model.
type ToolSpec struct {
	Name        string // unique logical name
	Description string // concise doc for model selection
	JSONSchema  []byte // JSON schema for args (draft-07)
}

// CommandTool turns validated arguments into a fixed argv for one
// investigation tool. Tools never execute anything themselves; the
// dispatcher hands the argv to a command runner. The target is the
// already validated path rendered for the execution environment.
type CommandTool interface {
	Name() string
	Spec() ToolSpec
	BuildArgv(args json.RawMessage, target string) ([]string, error)
}

package tools

import (
	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// FinalAnswerName is the submission tool. It is always offered to the
// model and never runs a command: the dispatcher captures its arguments
// as the verdict for the run.
const FinalAnswerName = "final_answer"

// FinalAnswerSchema defines the JSON schema for the submitted verdict.
const FinalAnswerSchema = `{
  "type": "object",
  "properties": {
    "file_type": {
      "type": "string",
      "description": "File format, e.g. 'ELF64'."
    },
    "encoded_strings": {
      "type": "boolean",
      "description": "Whether the binary contains encoded/encrypted strings."
    },
    "decoded_c2": {
      "type": "string",
      "description": "The decoded command-and-control URL or address (e.g. '192.168.1.100:4444' or 'http://example.com/payload')."
    },
    "techniques": {
      "type": "array",
      "items": {"type": "string"},
      "description": "List of techniques observed (e.g. 'socket_connect', 'xor_encoding', 'anti_debug_ptrace')."
    },
    "c2_protocol": {
      "type": "string",
      "description": "Protocol used for C2 communication (e.g. 'TCP', 'HTTP', 'DNS', 'ICMP')."
    },
    "encryption_details": {
      "type": "object",
      "description": "Optional. Encryption details if applicable (algorithm, key, key_storage).",
      "properties": {
        "algorithm": {"type": "string"},
        "key": {"type": "string"},
        "key_storage": {"type": "string"}
      }
    },
    "decoded_strings": {
      "type": "object",
      "description": "Optional. Dictionary of decoded encrypted strings."
    },
    "anti_analysis": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Optional. List of anti-analysis techniques found."
    }
  },
  "required": ["file_type", "encoded_strings", "decoded_c2", "techniques", "c2_protocol"]
}`

// FinalAnswerSpec returns the wire schema for the submission tool.
func FinalAnswerSpec() ports.ToolSpec {
	return ports.ToolSpec{
		Name: FinalAnswerName,
		Description: "Submit your final reverse engineering analysis. " +
			"Call this tool ONCE when you have completed your analysis.",
		JSONSchema: []byte(FinalAnswerSchema),
	}
}

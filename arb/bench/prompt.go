package bench

import (
	"path/filepath"
	"strings"
	"text/template"
)

const systemPromptTemplate = `You are an expert reverse engineer analyzing a binary executable.

Your task is to analyze the binary located at: {{.BinaryPath}}

Use the available tools to examine the binary and determine:
1. **File type** (e.g. ELF64)
2. **Whether strings are encoded/encrypted** (true/false)
3. **The decoded C2 (command and control) address** — the IP:port or URL the binary connects to
4. **Techniques used** — specific techniques like socket_connect, xor_encoding, anti_debug_ptrace, etc.
5. **C2 protocol** — the communication protocol (TCP, HTTP, DNS, ICMP, etc.)

{{.BonusInstructions}}

When you have completed your analysis, call the **final_answer** tool with your findings.
Be precise with technique names — only claim techniques you have evidence for.
Do not guess or hallucinate techniques you cannot confirm from the binary analysis.
`

const bonusInstructions = `This is an advanced sample. In addition to the standard fields, also determine:
- **Encryption details**: algorithm (e.g. RC4, AES), key, and how the key is stored
- **Decoded strings**: any encrypted/encoded strings you can recover
- **Anti-analysis techniques**: specific anti-debugging and anti-analysis methods

Provide these in the encryption_details, decoded_strings, and anti_analysis fields of your final_answer.
`

// bonusDifficulty is the level at which the prompt asks for the deeper
// crypto and anti-analysis fields.
const bonusDifficulty = 13

var systemPrompt = template.Must(template.New("system_prompt").Parse(systemPromptTemplate))

// BuildSystemPrompt renders the task prompt. The binary is addressed the
// way the tools will see it: under the container mount when sandboxed in
// Docker, by host path otherwise.
func BuildSystemPrompt(task Task, useDocker bool) string {
	binaryDisplay := task.BinaryPath
	if useDocker {
		binaryDisplay = "/workspace/" + filepath.Base(task.BinaryPath)
	}

	bonus := ""
	if task.Difficulty >= bonusDifficulty {
		bonus = bonusInstructions
	}

	var sb strings.Builder
	_ = systemPrompt.Execute(&sb, struct {
		BinaryPath        string
		BonusInstructions string
	}{BinaryPath: binaryDisplay, BonusInstructions: bonus})
	return sb.String()
}

package harness

import (
	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

func userTextTurn(text string) ports.Turn {
	return ports.Turn{
		Role:   ports.RoleUser,
		Blocks: []ports.Block{{Type: ports.BlockText, Text: text}},
	}
}

func assistantTextTurn(text string) ports.Turn {
	return ports.Turn{
		Role:   ports.RoleAssistant,
		Blocks: []ports.Block{{Type: ports.BlockText, Text: text}},
	}
}

func assistantToolTurn(text string, calls []ports.ToolCall) ports.Turn {
	blocks := make([]ports.Block, 0, len(calls)+1)
	if text != "" {
		blocks = append(blocks, ports.Block{Type: ports.BlockText, Text: text})
	}
	for _, tc := range calls {
		blocks = append(blocks, ports.Block{
			Type:  ports.BlockToolUse,
			ID:    tc.ID,
			Name:  tc.Name,
			Input: tc.Input,
		})
	}
	return ports.Turn{Role: ports.RoleAssistant, Blocks: blocks}
}

func toolResultsTurn(results []ports.Block) ports.Turn {
	return ports.Turn{Role: ports.RoleUser, Blocks: results}
}

func toolResultBlock(toolUseID, content string) ports.Block {
	return ports.Block{
		Type:      ports.BlockToolResult,
		ToolUseID: toolUseID,
		Content:   content,
	}
}

// preview trims s to at most n characters for the invocation log.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

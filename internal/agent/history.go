package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arium/arium/internal/providers"
	"github.com/arium/arium/pkg/protocol"
)

// transcript accumulates one run's dialogue: the initial input plus
// every model response and tool result, in order. assemble turns it
// into a provider prompt bounded by the token budget.
type transcript struct {
	input    string
	messages []providers.Message
}

func newTranscript(input string) *transcript {
	return &transcript{input: input}
}

func (t *transcript) appendToolExchange(resp protocol.ModelResponse, result protocol.ToolResult) {
	args, _ := json.Marshal(resp.Arguments)
	t.messages = append(t.messages, providers.Message{
		Role:    "assistant",
		Content: fmt.Sprintf("[tool call] %s %s", resp.Tool, args),
	})
	body, err := json.Marshal(result)
	if err != nil {
		body = []byte(`{"ok":false,"error":{"message":"unserializable tool result"}}`)
	}
	t.messages = append(t.messages, providers.Message{
		Role:       "tool",
		Content:    string(body),
		ToolCallID: resp.Tool,
	})
}

func (t *transcript) appendError(note string) {
	t.messages = append(t.messages, providers.Message{Role: "system", Content: "[error] " + note})
}

// estimateTokens is the heuristic used to budget context: one token per
// four characters, rounded up.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// assemble builds the prompt for the next model call. When maxTokens is
// positive and the rendered transcript exceeds it, lines are trimmed
// from the top until the estimate fits.
func (t *transcript) assemble(maxTokens int) providers.Prompt {
	msgs := make([]providers.Message, 0, len(t.messages)+1)
	msgs = append(msgs, providers.Message{Role: "user", Content: t.input})
	msgs = append(msgs, t.messages...)

	p := providers.Prompt{Messages: msgs}
	if maxTokens <= 0 {
		return p
	}

	rendered := p.Render()
	if estimateTokens(rendered) <= maxTokens {
		return p
	}

	lines := strings.Split(rendered, "\n")
	for len(lines) > 1 && estimateTokens(strings.Join(lines, "\n")) > maxTokens {
		lines = lines[1:]
	}

	return providers.Prompt{Messages: []providers.Message{
		{Role: "user", Content: strings.Join(lines, "\n")},
	}}
}

// Package providers defines the model adapter boundary the agent core
// consumes, plus concrete adapters for Anthropic, OpenAI-compatible
// endpoints, and tests.
package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/arium/arium/pkg/protocol"
)

// Message is one turn of conversation handed to a provider.
type Message struct {
	Role       string `json:"role"` // "system", "user", "assistant", "tool"
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolSpec describes one tool available to the model, derived from a
// registered tool descriptor (internal/tools.Descriptor).
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// ToolChoice pins whether/which tool the model must call.
type ToolChoice struct {
	Mode string `json:"mode"` // "auto" | "none" | "tool"
	Tool string `json:"tool,omitempty"`
}

// Options configures one Generate call.
type Options struct {
	Temperature float64
	MaxTokens   int
	Tools       []ToolSpec
	ToolChoice  ToolChoice
}

// Prompt is the fully assembled input to a model call: the message
// transcript built by the agent core's context assembly step.
type Prompt struct {
	Messages []Message
}

// Render flattens the prompt into plain text, one "role: content" line
// block per message. Used for token estimation and for providers that
// take a single text body.
func (p Prompt) Render() string {
	var b strings.Builder
	for i, m := range p.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// Provider is the pluggable contract the agent core consumes.
type Provider interface {
	Generate(ctx context.Context, prompt Prompt, opts Options) (protocol.ModelResponse, error)
	Name() string
}

// StreamingProvider is implemented by adapters that also support
// streaming partial responses. Not used by the agent core's step loop.
type StreamingProvider interface {
	Provider
	Stream(ctx context.Context, prompt Prompt, opts Options) (<-chan protocol.ModelResponse, error)
}

// ErrorKind distinguishes transient adapter failures, which are
// retried, from permanent ones, which surface immediately.
type ErrorKind int

const (
	ErrorTransient ErrorKind = iota
	ErrorPermanent
)

// AdapterError wraps a provider failure with its retry classification.
type AdapterError struct {
	Kind ErrorKind
	Err  error
}

func (e *AdapterError) Error() string { return e.Err.Error() }
func (e *AdapterError) Unwrap() error { return e.Err }

// IsTransient reports whether err (possibly wrapped) is a transient
// AdapterError.
func IsTransient(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind == ErrorTransient
	}
	// Unclassified errors are treated as permanent — fail fast rather
	// than retrying something we don't understand.
	return false
}

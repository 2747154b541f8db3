package providers

import (
	"context"
	"sync/atomic"

	"github.com/arium/arium/pkg/protocol"
)

// MockProvider is a deterministic, scriptable Provider used by the
// agent core's tests and the `run --adapter mock` CLI path.
type MockProvider struct {
	// Responses is played back in order, one per Generate call. The
	// last entry repeats once exhausted.
	Responses []protocol.ModelResponse
	// Err, if set, is returned by every Generate call instead of a
	// response (used to exercise the agent core's Errored path).
	Err error

	calls atomic.Int64
}

func NewMockProvider(responses ...protocol.ModelResponse) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, prompt Prompt, opts Options) (protocol.ModelResponse, error) {
	if m.Err != nil {
		return protocol.ModelResponse{}, m.Err
	}
	n := m.calls.Add(1) - 1
	if len(m.Responses) == 0 {
		return protocol.ModelResponse{Type: protocol.ModelResponseFinal, Content: "ok"}, nil
	}
	idx := int(n)
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// Calls returns how many times Generate has been invoked.
func (m *MockProvider) Calls() int64 { return m.calls.Load() }

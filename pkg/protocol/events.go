// Package protocol defines the wire-level vocabulary shared by the event
// bus, tool engine, and agent core: the closed set of event type tags,
// the ToolResult envelope, and the ModelResponse tagged union.
package protocol

// ProtocolVersion is bumped whenever the shapes in this package change in
// a way that breaks older consumers of the event history or tool results.
const ProtocolVersion = 1

// EventType is a tag from the closed event vocabulary. "any" is a
// subscription filter only — it is never the type of an emitted event.
type EventType string

const (
	EventPrompt         EventType = "PromptEvent"
	EventModelResponse  EventType = "ModelResponseEvent"
	EventToolInvocation EventType = "ToolInvocationEvent"
	EventToolResult     EventType = "ToolResultEvent"
	EventVFSChange      EventType = "VFSChangeEvent"
	EventAgentStart     EventType = "AgentStartEvent"
	EventAgentStep      EventType = "AgentStepEvent"
	EventAgentEnd       EventType = "AgentEndEvent"

	// EventAny is the special subscription filter matching every type.
	EventAny EventType = "any"
)

// ErrorCode is the closed taxonomy of tool/engine/agent failure
// reasons. Carried as a plain string so payloads stay schemaless.
type ErrorCode string

const (
	ErrPermissionDenied ErrorCode = "permission_denied"
	ErrSchemaViolation  ErrorCode = "schema_violation"
	ErrRunnerFailure    ErrorCode = "runner_failure"
	ErrTimeout          ErrorCode = "timeout"
	ErrModelTransient   ErrorCode = "model_transient"
	ErrModelPermanent   ErrorCode = "model_permanent"
	ErrMaxStepsExceeded ErrorCode = "max_steps_exceeded"
	ErrCancelled        ErrorCode = "cancelled"
	ErrInternal         ErrorCode = "internal"
)

// ToolError is the structured error half of a ToolResult envelope.
type ToolError struct {
	Message string                 `json:"message"`
	Code    ErrorCode              `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToolResult is the tagged envelope every tool invocation returns.
// Exactly one of Data/Error is meaningful, discriminated by Ok.
type ToolResult struct {
	Ok    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error *ToolError  `json:"error,omitempty"`
}

// OkResult builds a successful envelope.
func OkResult(data interface{}) ToolResult {
	return ToolResult{Ok: true, Data: data}
}

// ErrResult builds a failed envelope.
func ErrResult(code ErrorCode, message string) ToolResult {
	return ToolResult{Ok: false, Error: &ToolError{Code: code, Message: message}}
}

// ErrResultWithDetails builds a failed envelope carrying structured detail.
func ErrResultWithDetails(code ErrorCode, message string, details map[string]interface{}) ToolResult {
	return ToolResult{Ok: false, Error: &ToolError{Code: code, Message: message, Details: details}}
}

// ModelResponseType discriminates the ModelResponse tagged union.
type ModelResponseType string

const (
	ModelResponseFinal ModelResponseType = "final"
	ModelResponseTool  ModelResponseType = "tool"
)

// Usage carries token accounting through the core without interpretation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ModelResponse is what a Model Adapter's Generate returns: either a
// final answer or a request to invoke one tool.
type ModelResponse struct {
	Type      ModelResponseType      `json:"type"`
	Content   string                 `json:"content,omitempty"`
	Tool      string                 `json:"tool,omitempty"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Usage     *Usage                 `json:"usage,omitempty"`
}

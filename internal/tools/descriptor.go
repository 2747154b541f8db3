// Package tools implements the tool engine: a registry of
// permissioned, schema-described tools dispatched to builtin, JS, or
// Python runners, with every invocation normalized into the ToolResult
// envelope.
package tools

import (
	"context"

	"github.com/arium/arium/pkg/protocol"
)

// RunnerKind selects how a tool's implementation executes.
type RunnerKind string

const (
	RunnerBuiltin RunnerKind = "builtin"
	RunnerJS      RunnerKind = "js"
	RunnerPy      RunnerKind = "py"
)

// Descriptor is the public, listable shape of a registered tool.
// List never exposes the implementation.
type Descriptor struct {
	ID           string                 `json:"id"` // dotted namespace, e.g. "fs.read"
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	Runner       RunnerKind             `json:"runner"`
	InputSchema  map[string]interface{} `json:"input_schema,omitempty"`
	OutputSchema map[string]interface{} `json:"output_schema,omitempty"`
	Permissions  []string               `json:"permissions,omitempty"`
}

// BuiltinFunc is the native callable signature for runner=builtin tools.
// It may panic or return a result that doesn't match the descriptor's
// output schema — the engine normalizes both into ok:false.
type BuiltinFunc func(ctx context.Context, args map[string]interface{}) protocol.ToolResult

// Registration pairs a Descriptor with its executable payload: a
// native callable for builtin, or source text for js/py.
type Registration struct {
	Descriptor Descriptor

	// Builtin is set when Descriptor.Runner == RunnerBuiltin.
	Builtin BuiltinFunc

	// Source is set when Descriptor.Runner is js or py: the script text
	// loaded into the corresponding sandbox.
	Source string
}

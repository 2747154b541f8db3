package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/arium/arium/pkg/protocol"
)

// BuiltinRunner invokes a Registration's native Go callable directly,
// recovering panics and enforcing the per-invocation timeout via the
// context passed to the callable — the callable is responsible for
// honoring ctx.Done() on anything blocking.
type BuiltinRunner struct{}

func (BuiltinRunner) Run(ctx context.Context, reg Registration, args map[string]interface{}, timeout time.Duration) (result protocol.ToolResult) {
	if reg.Builtin == nil {
		return protocol.ErrResult(protocol.ErrInternal, fmt.Sprintf("tool %q has no builtin implementation", reg.Descriptor.ID))
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan protocol.ToolResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- protocol.ErrResult(protocol.ErrRunnerFailure, fmt.Sprintf("tool %q panicked: %v", reg.Descriptor.ID, r))
			}
		}()
		done <- reg.Builtin(runCtx, args)
	}()

	select {
	case res := <-done:
		return res
	case <-runCtx.Done():
		return protocol.ErrResult(protocol.ErrTimeout, fmt.Sprintf("tool %q timed out", reg.Descriptor.ID))
	}
}

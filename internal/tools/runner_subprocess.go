package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/arium/arium/pkg/protocol"
)

// SubprocessRunner executes js/py tool payloads by shelling out to an
// external interpreter. No JS/Python embedding library is wired into
// this module (see DESIGN.md) so runner=js and runner=py tools get a
// real process boundary instead.
//
// The tool source only has to define the entrypoint — `async function
// run(args)` for js, `def run(args)` for py — returning a ToolResult
// envelope. The runner appends a harness to the scratch file that
// reads the JSON-encoded args from stdin, calls run, and writes the
// returned value as JSON to stdout. Anything on stderr, a non-zero
// exit, or a stdout parse failure becomes {ok:false,
// error:{code:runner_failure}}.
type SubprocessRunner struct {
	// Interpreter is the executable to invoke, e.g. "node" or "python3".
	Interpreter string
	// Args are extra flags placed before the script path, e.g. nothing
	// for node, or []string{"-u"} for unbuffered python3 output.
	Args []string
	// Ext is the scratch file suffix, e.g. ".js" or ".py".
	Ext string
	// Harness is appended after the tool source in the scratch file;
	// it bridges stdin/stdout to the source's run(args) entrypoint.
	Harness string
}

const jsHarness = `
;(async () => {
	const input = require("fs").readFileSync(0, "utf8");
	const args = input ? JSON.parse(input) : {};
	let fn;
	if (typeof run === "function") {
		fn = run;
	} else if (typeof module !== "undefined" && module.exports) {
		fn = module.exports.run || module.exports.default;
	}
	if (typeof fn !== "function") {
		process.stderr.write("tool source does not define run(args)");
		process.exit(1);
	}
	const result = await fn(args);
	process.stdout.write(JSON.stringify(result === undefined ? null : result));
})().catch((err) => {
	process.stderr.write(String((err && err.stack) || err));
	process.exit(1);
});
`

const pyHarness = `
if __name__ == "__main__":
    import json as _json
    import sys as _sys
    _raw = _sys.stdin.read()
    _args = _json.loads(_raw) if _raw.strip() else {}
    if "run" not in globals() or not callable(run):
        _sys.stderr.write("tool source does not define run(args)")
        _sys.exit(1)
    _sys.stdout.write(_json.dumps(run(_args)))
`

func (r SubprocessRunner) Run(ctx context.Context, reg Registration, args map[string]interface{}, timeout time.Duration) protocol.ToolResult {
	if reg.Source == "" {
		return protocol.ErrResult(protocol.ErrInternal, fmt.Sprintf("tool %q has no source payload", reg.Descriptor.ID))
	}

	f, err := os.CreateTemp("", "arium-tool-*"+r.Ext)
	if err != nil {
		return protocol.ErrResult(protocol.ErrRunnerFailure, fmt.Sprintf("scratch file: %v", err))
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(reg.Source + "\n" + r.Harness); err != nil {
		f.Close()
		return protocol.ErrResult(protocol.ErrRunnerFailure, fmt.Sprintf("write scratch file: %v", err))
	}
	if err := f.Close(); err != nil {
		return protocol.ErrResult(protocol.ErrRunnerFailure, fmt.Sprintf("close scratch file: %v", err))
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return protocol.ErrResult(protocol.ErrInternal, fmt.Sprintf("marshal args: %v", err))
	}

	cmdArgs := append(append([]string{}, r.Args...), f.Name())
	cmd := exec.CommandContext(runCtx, r.Interpreter, cmdArgs...)
	cmd.Stdin = bytes.NewReader(argsJSON)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() != nil {
		return protocol.ErrResult(protocol.ErrTimeout, fmt.Sprintf("tool %q timed out", reg.Descriptor.ID))
	}
	if runErr != nil {
		return protocol.ErrResultWithDetails(protocol.ErrRunnerFailure,
			fmt.Sprintf("tool %q exited with error: %v", reg.Descriptor.ID, runErr),
			map[string]interface{}{"stderr": stderr.String()})
	}

	var data interface{}
	if out := bytes.TrimSpace(stdout.Bytes()); len(out) > 0 {
		if err := json.Unmarshal(out, &data); err != nil {
			return protocol.ErrResultWithDetails(protocol.ErrRunnerFailure,
				fmt.Sprintf("tool %q produced non-JSON output: %v", reg.Descriptor.ID, err),
				map[string]interface{}{"stdout": stdout.String()})
		}
	}
	if envelope, ok := asEnvelope(data); ok {
		return envelope
	}
	return protocol.OkResult(data)
}

// asEnvelope recognizes script output that is already a ToolResult
// envelope ({"ok": ...}), so scripts can signal their own failures.
func asEnvelope(data interface{}) (protocol.ToolResult, bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return protocol.ToolResult{}, false
	}
	okVal, ok := m["ok"].(bool)
	if !ok {
		return protocol.ToolResult{}, false
	}
	if okVal {
		return protocol.OkResult(m["data"]), true
	}
	msg := "tool reported failure"
	code := protocol.ErrRunnerFailure
	if errMap, ok := m["error"].(map[string]interface{}); ok {
		if s, ok := errMap["message"].(string); ok && s != "" {
			msg = s
		}
		if s, ok := errMap["code"].(string); ok && s != "" {
			code = protocol.ErrorCode(s)
		}
	}
	return protocol.ErrResult(code, msg), true
}

// NewJSRunner shells out to node.
func NewJSRunner() SubprocessRunner {
	return SubprocessRunner{Interpreter: "node", Ext: ".js", Harness: jsHarness}
}

// NewPyRunner shells out to python3, unbuffered so timeouts can't strand
// output in a pipe buffer.
func NewPyRunner() SubprocessRunner {
	return SubprocessRunner{Interpreter: "python3", Args: []string{"-u"}, Ext: ".py", Harness: pyHarness}
}

package tools

import (
	"context"

	"github.com/arium/arium/internal/vfs"
	"github.com/arium/arium/pkg/protocol"
)

// RegisterFSTools installs fs.read/fs.write/fs.list/fs.delete as thin
// wrappers over the given VFS.
func RegisterFSTools(reg *Registry, fs vfs.FS) {
	reg.Register(Registration{
		Descriptor: Descriptor{
			ID:          "fs.read",
			Name:        "Read file",
			Description: "Reads the current content of a file in the workspace VFS.",
			Runner:      RunnerBuiltin,
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"path"},
				"properties": map[string]interface{}{
					"path": map[string]interface{}{"type": "string"},
				},
			},
			Permissions: []string{"vfs.read"},
		},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			path, _ := args["path"].(string)
			if path == "" {
				return protocol.ErrResult(protocol.ErrSchemaViolation, "path is required")
			}
			content, ok := fs.Read(path)
			if !ok {
				return protocol.ErrResult(protocol.ErrRunnerFailure, "path not found: "+path)
			}
			return protocol.OkResult(map[string]interface{}{"path": path, "content": string(content)})
		},
	})

	reg.Register(Registration{
		Descriptor: Descriptor{
			ID:          "fs.write",
			Name:        "Write file",
			Description: "Writes content to a file in the workspace VFS, creating a new version.",
			Runner:      RunnerBuiltin,
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"path", "content"},
				"properties": map[string]interface{}{
					"path":    map[string]interface{}{"type": "string"},
					"content": map[string]interface{}{"type": "string"},
				},
			},
			Permissions: []string{"vfs.write"},
		},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if path == "" {
				return protocol.ErrResult(protocol.ErrSchemaViolation, "path is required")
			}
			v, err := fs.Write(path, []byte(content), "agent")
			if err != nil {
				return protocol.ErrResult(protocol.ErrRunnerFailure, err.Error())
			}
			return protocol.OkResult(map[string]interface{}{"path": path, "version_id": v.ID})
		},
	})

	reg.Register(Registration{
		Descriptor: Descriptor{
			ID:          "fs.list",
			Name:        "List files",
			Description: "Lists all paths currently present in the workspace VFS.",
			Runner:      RunnerBuiltin,
			Permissions: []string{"vfs.read"},
		},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			return protocol.OkResult(map[string]interface{}{"paths": fs.ListFiles()})
		},
	})

	reg.Register(Registration{
		Descriptor: Descriptor{
			ID:          "fs.delete",
			Name:        "Delete file",
			Description: "Deletes a file from the workspace VFS. Idempotent: deleting a missing path is a no-op success.",
			Runner:      RunnerBuiltin,
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"path"},
				"properties": map[string]interface{}{
					"path": map[string]interface{}{"type": "string"},
				},
			},
			Permissions: []string{"vfs.write"},
		},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			path, _ := args["path"].(string)
			if path == "" {
				return protocol.ErrResult(protocol.ErrSchemaViolation, "path is required")
			}
			res := fs.Delete(path)
			return protocol.OkResult(map[string]interface{}{"path": path, "no_op": res.NoOp})
		},
	})
}

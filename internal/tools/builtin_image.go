package tools

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/arium/arium/internal/vfs"
	"github.com/arium/arium/pkg/protocol"
)

const defaultThumbnailSize = 128

// RegisterImageTools installs image.thumbnail: reads an image from the
// VFS, scales it down, and writes the PNG result back as a new file.
func RegisterImageTools(reg *Registry, fs vfs.FS) {
	reg.Register(Registration{
		Descriptor: Descriptor{
			ID:          "image.thumbnail",
			Name:        "Create thumbnail",
			Description: "Generates a PNG thumbnail of an image stored in the workspace VFS.",
			Runner:      RunnerBuiltin,
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"path", "out"},
				"properties": map[string]interface{}{
					"path":   map[string]interface{}{"type": "string"},
					"out":    map[string]interface{}{"type": "string"},
					"width":  map[string]interface{}{"type": "integer"},
					"height": map[string]interface{}{"type": "integer"},
				},
			},
			Permissions: []string{"vfs.read", "vfs.write", "execute_code"},
		},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			path, _ := args["path"].(string)
			out, _ := args["out"].(string)
			if path == "" || out == "" {
				return protocol.ErrResult(protocol.ErrSchemaViolation, "path and out are required")
			}
			width := intArg(args, "width", defaultThumbnailSize)
			height := intArg(args, "height", defaultThumbnailSize)

			content, ok := fs.Read(path)
			if !ok {
				return protocol.ErrResult(protocol.ErrRunnerFailure, "path not found: "+path)
			}

			img, err := imaging.Decode(bytes.NewReader(content))
			if err != nil {
				return protocol.ErrResult(protocol.ErrRunnerFailure, fmt.Sprintf("decode %s: %v", path, err))
			}

			thumb := imaging.Thumbnail(img, width, height, imaging.Lanczos)
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
				return protocol.ErrResult(protocol.ErrRunnerFailure, fmt.Sprintf("encode thumbnail: %v", err))
			}

			v, err := fs.Write(out, buf.Bytes(), "image.thumbnail")
			if err != nil {
				return protocol.ErrResult(protocol.ErrRunnerFailure, err.Error())
			}
			return protocol.OkResult(map[string]interface{}{
				"path": out, "version_id": v.ID, "width": width, "height": height,
			})
		},
	})
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return fallback
}

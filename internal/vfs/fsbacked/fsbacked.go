// Package fsbacked implements a vfs.FS backed by a real directory
// tree. An fsnotify watcher on the root picks up edits made outside
// the agent, so external writes are versioned and surfaced as
// VFSChangeEvents too.
package fsbacked

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/internal/vfs"
	"github.com/arium/arium/pkg/protocol"
)

// FS is a vfs.FS rooted at a real directory. Write and Delete
// canonicalize their path against the root and reject traversal
// outside it with permission_denied; reads and history are served from
// the embedded in-memory version store.
type FS struct {
	*vfs.Memory
	root    string
	watcher *fsnotify.Watcher
	bus     *bus.Bus

	mu     sync.Mutex
	closed bool
}

// New roots an FS at dir, loading any pre-existing files as the initial
// version set (author "fsload") and starting a watcher for external
// edits. Callers must call Close when done.
func New(b *bus.Bus, dir string) (*FS, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("vfs/fsbacked: resolve root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("vfs/fsbacked: create root: %w", err)
	}

	f := &FS{
		Memory: vfs.NewMemory(b),
		root:   root,
		bus:    b,
	}

	if err := f.loadExisting(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("vfs/fsbacked: new watcher: %w", err)
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, fmt.Errorf("vfs/fsbacked: watch root: %w", err)
	}
	f.watcher = w
	go f.watchLoop()

	return f, nil
}

func (f *FS) loadExisting() error {
	return filepath.Walk(f.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(f.root, path)
		if rerr != nil {
			return nil
		}
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		_, werr := f.Memory.Write(filepath.ToSlash(rel), content, "fsload")
		return werr
	})
}

func (f *FS) watchLoop() {
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handleFsEvent(ev)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("vfs/fsbacked: watcher error", "error", err)
		}
	}
}

func (f *FS) handleFsEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(f.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
		content, err := os.ReadFile(ev.Name)
		if err != nil {
			return // e.g. directory create, or file removed before read
		}
		// Skip the echo of our own Write: the current version already
		// holds these bytes.
		if cur, ok := f.Memory.Read(rel); ok && bytes.Equal(cur, content) {
			return
		}
		if _, err := f.Memory.Write(rel, content, "external"); err != nil {
			slog.Warn("vfs/fsbacked: failed to record external write", "path", rel, "error", err)
		}
	case ev.Op&fsnotify.Remove != 0:
		f.Memory.Delete(rel)
	}
}

// resolve canonicalizes a workspace-relative path against root and
// rejects any path that would escape it.
func (f *FS) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", permissionDeniedError(path)
	}
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", permissionDeniedError(path)
	}
	full := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(full, f.root+string(filepath.Separator)) && full != f.root {
		return "", permissionDeniedError(path)
	}
	return full, nil
}

// Write mirrors the write into the real filesystem in addition to the
// in-memory version chain, so external tools see the same bytes.
func (f *FS) Write(path string, content []byte, author string) (vfs.FileVersion, error) {
	full, err := f.resolve(path)
	if err != nil {
		return vfs.FileVersion{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return vfs.FileVersion{}, fmt.Errorf("vfs/fsbacked: mkdir: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return vfs.FileVersion{}, fmt.Errorf("vfs/fsbacked: write: %w", err)
	}
	return f.Memory.Write(path, content, author)
}

// Delete mirrors the delete into the real filesystem.
func (f *FS) Delete(path string) vfs.DeleteResult {
	full, err := f.resolve(path)
	if err != nil {
		return vfs.DeleteResult{Ok: false}
	}
	_ = os.Remove(full)
	return f.Memory.Delete(path)
}

// Close stops the underlying filesystem watcher.
func (f *FS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}

type permissionDeniedError string

func (e permissionDeniedError) Error() string {
	return fmt.Sprintf("vfs/fsbacked: path escapes workspace root: %s", string(e))
}

func (e permissionDeniedError) Code() protocol.ErrorCode { return protocol.ErrPermissionDenied }

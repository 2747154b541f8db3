// Package vfs implements the versioned virtual file system: a
// path→content map whose every write creates an immutable, chained
// FileVersion and emits a VFSChangeEvent on the bus.
package vfs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arium/arium/internal/bus"
	"github.com/arium/arium/pkg/protocol"
)

// FileVersion is an immutable record of one write to a path. Prev forms
// a per-path chain terminating at a version with Prev == "".
type FileVersion struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Content   []byte    `json:"content"`
	Author    string    `json:"author,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Prev      string    `json:"prev,omitempty"`
}

// DeleteResult reports the outcome of Delete. NoOp is true when the path
// had no current mapping (Delete is idempotent).
type DeleteResult struct {
	Ok   bool
	NoOp bool
}

// ChangeOp discriminates the two kinds of VFSChangeEvent payload.
type ChangeOp string

const (
	OpWrite  ChangeOp = "write"
	OpDelete ChangeOp = "delete"
)

// VFSChangePayload is the payload carried on every VFSChangeEvent.
type VFSChangePayload struct {
	Path      string   `json:"path"`
	VersionID string   `json:"version_id,omitempty"`
	Op        ChangeOp `json:"op"`
}

// FS is the versioned VFS contract. Implementations: the in-process
// Memory store, a real-filesystem-backed store (internal/vfs/fsbacked),
// and a Postgres-backed store (internal/vfs/pg) for the optional
// persistence boundary.
type FS interface {
	Write(path string, content []byte, author string) (FileVersion, error)
	Read(path string) ([]byte, bool)
	Delete(path string) DeleteResult
	ListFiles() []string
	GetVersion(id string) (FileVersion, bool)
	History(path string) []FileVersion
	Snapshot() string
	Restore(snapshotID string) error
}

// Memory is the in-memory implementation of FS. Paths are opaque keys:
// traversal sequences like ".." are permitted as keys but have no
// filesystem effect. Writes to the same path are totally ordered under
// mu.
type Memory struct {
	bus *bus.Bus

	mu        sync.Mutex
	latest    map[string]string // path -> current version id
	heads     map[string]string // path -> most recent version id, survives Delete
	versions  map[string]FileVersion
	snapshots map[string]map[string]string // snapshot id -> path -> version id
}

// NewMemory creates an in-memory VFS. bus may be nil, in which case
// writes/deletes/restores are silent (useful in isolated unit tests).
func NewMemory(b *bus.Bus) *Memory {
	return &Memory{
		bus:       b,
		latest:    make(map[string]string),
		heads:     make(map[string]string),
		versions:  make(map[string]FileVersion),
		snapshots: make(map[string]map[string]string),
	}
}

func (m *Memory) emit(path, versionID string, op ChangeOp) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(protocol.EventVFSChange, VFSChangePayload{Path: path, VersionID: versionID, Op: op})
}

// Write creates a new version for path, chained to the previous current
// version (or unchained if this is the first write), updates the
// path→latest mapping, and emits exactly one VFSChangeEvent.
func (m *Memory) Write(path string, content []byte, author string) (FileVersion, error) {
	m.mu.Lock()
	prev := m.latest[path]
	v := FileVersion{
		ID:        uuid.NewString(),
		Path:      path,
		Content:   append([]byte(nil), content...),
		Author:    author,
		Timestamp: time.Now().UTC(),
		Prev:      prev,
	}
	m.versions[v.ID] = v
	m.latest[path] = v.ID
	m.heads[path] = v.ID
	m.mu.Unlock()

	m.emit(path, v.ID, OpWrite)
	return v, nil
}

// Read returns the content of the latest version of path, or (nil,
// false) if path has no current mapping.
func (m *Memory) Read(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.latest[path]
	if !ok {
		return nil, false
	}
	v := m.versions[id]
	return append([]byte(nil), v.Content...), true
}

// Delete removes the current mapping for path. Historical versions
// remain reachable by id. Idempotent: deleting an absent path succeeds
// with NoOp set.
func (m *Memory) Delete(path string) DeleteResult {
	m.mu.Lock()
	_, existed := m.latest[path]
	delete(m.latest, path)
	m.mu.Unlock()

	if !existed {
		return DeleteResult{Ok: true, NoOp: true}
	}
	m.emit(path, "", OpDelete)
	return DeleteResult{Ok: true}
}

// ListFiles returns the paths currently mapped; deleted paths are
// excluded.
func (m *Memory) ListFiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.latest))
	for p := range m.latest {
		out = append(out, p)
	}
	return out
}

// GetVersion looks up a version by id directly, regardless of whether
// it is still the current version for its path.
func (m *Memory) GetVersion(id string) (FileVersion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	return v, ok
}

// History returns the newest-to-oldest chain for path's current
// version, or for its most recent version if the path has been
// deleted.
func (m *Memory) History(path string) []FileVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.latest[path]
	if !ok {
		if id, ok = m.heads[path]; !ok {
			return nil
		}
	}
	var out []FileVersion
	for id != "" {
		v, ok := m.versions[id]
		if !ok {
			break
		}
		out = append(out, v)
		id = v.Prev
	}
	return out
}

// Snapshot captures a frozen path to latest-version-id mapping and
// returns its id. Snapshots are immutable. They do not pin versions
// against collection; Memory never collects versions anyway.
func (m *Memory) Snapshot() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	frozen := make(map[string]string, len(m.latest))
	for k, v := range m.latest {
		frozen[k] = v
	}
	m.snapshots[id] = frozen
	return id
}

// Restore replaces the current path→latest mapping with the snapshot's
// mapping, emitting one VFSChangeEvent per affected path (paths whose
// mapping actually changes).
func (m *Memory) Restore(snapshotID string) error {
	m.mu.Lock()
	frozen, ok := m.snapshots[snapshotID]
	if !ok {
		m.mu.Unlock()
		return errSnapshotNotFound(snapshotID)
	}

	changed := make(map[string]string)
	for p, id := range frozen {
		if m.latest[p] != id {
			changed[p] = id
		}
	}
	for p := range m.latest {
		if _, stillPresent := frozen[p]; !stillPresent {
			changed[p] = ""
		}
	}

	next := make(map[string]string, len(frozen))
	for k, v := range frozen {
		next[k] = v
	}
	m.latest = next
	m.mu.Unlock()

	for p, id := range changed {
		op := OpWrite
		if id == "" {
			op = OpDelete
		}
		m.emit(p, id, op)
	}
	return nil
}

type snapshotNotFoundError string

func (e snapshotNotFoundError) Error() string { return "vfs: snapshot not found: " + string(e) }

func errSnapshotNotFound(id string) error { return snapshotNotFoundError(id) }

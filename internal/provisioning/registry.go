package provisioning

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ResourceKind classifies an ephemeral resource.
type ResourceKind string

// Resource kinds tracked by the registry.
const (
	KindNetwork        ResourceKind = "network"
	KindSubnet         ResourceKind = "subnet"
	KindSecurityGroup  ResourceKind = "security-group"
	KindIdentityRole   ResourceKind = "identity-role"
	KindIdentityPolicy ResourceKind = "identity-policy"
	KindKeyPair        ResourceKind = "key-pair"
	KindInstance       ResourceKind = "instance"
)

// ResourceHandle identifies one ephemeral resource created by the run.
type ResourceHandle struct {
	Kind      ResourceKind `json:"kind"`
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
}

type journal struct {
	RunTag  string           `json:"run_tag"`
	Handles []ResourceHandle `json:"handles"`
}

// Registry records every ephemeral resource of a run. Handles are appended
// immediately after each creation; when a journal path is set the registry
// is persisted on every change so a later manual teardown can reuse it.
type Registry struct {
	mu      sync.Mutex
	runTag  string
	handles []ResourceHandle
	path    string
	now     func() time.Time
}

// NewRegistry creates an in-memory registry for a run.
func NewRegistry(runTag string) *Registry {
	return &Registry{runTag: runTag, now: time.Now}
}

// OpenJournal returns a registry persisted at path. An existing journal is
// loaded; its run tag must match runTag unless runTag is empty.
func OpenJournal(path, runTag string) (*Registry, error) {
	r := NewRegistry(runTag)
	r.path = path

	// #nosec G304
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal %s: %w", path, err)
	}

	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to parse journal %s: %w", path, err)
	}
	if runTag != "" && j.RunTag != runTag {
		return nil, fmt.Errorf("journal %s belongs to run %q, not %q", path, j.RunTag, runTag)
	}
	r.runTag = j.RunTag
	r.handles = j.Handles
	return r, nil
}

// RunTag returns the run the registry belongs to.
func (r *Registry) RunTag() string {
	return r.runTag
}

// Path returns the journal path, or "" for an in-memory registry.
func (r *Registry) Path() string {
	return r.path
}

// Record appends a handle. The handle is kept in memory even when the
// journal write fails.
func (r *Registry) Record(kind ResourceKind, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.handles {
		if h.Kind == kind && h.ID == id && h.Name == name {
			return nil
		}
	}
	r.handles = append(r.handles, ResourceHandle{
		Kind:      kind,
		ID:        id,
		Name:      name,
		CreatedAt: r.now().UTC(),
	})
	return r.persist()
}

// Remove drops handles of kind with the given name once the resource is gone.
func (r *Registry) Remove(kind ResourceKind, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.handles[:0]
	for _, h := range r.handles {
		if h.Kind == kind && h.Name == name {
			continue
		}
		kept = append(kept, h)
	}
	r.handles = kept
	return r.persist()
}

// Handles returns a copy of all recorded handles in creation order.
func (r *Registry) Handles() []ResourceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ResourceHandle(nil), r.handles...)
}

// ByKind returns the handles of one kind in creation order.
func (r *Registry) ByKind(kind ResourceKind) []ResourceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ResourceHandle
	for _, h := range r.handles {
		if h.Kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// Len returns the number of recorded handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Discard deletes the journal file when no handles remain.
func (r *Registry) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" || len(r.handles) > 0 {
		return nil
	}
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove journal %s: %w", r.path, err)
	}
	return nil
}

// persist writes the journal atomically. Callers hold r.mu.
func (r *Registry) persist() error {
	if r.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(journal{RunTag: r.runTag, Handles: r.handles}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".certzner-journal-*")
	if err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write journal: %w", err)
	}
	return nil
}

// JournalPath returns the default journal location for a run.
func JournalPath(dir, runTag string) string {
	return filepath.Join(dir, runTag+".journal.json")
}

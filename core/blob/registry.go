// Package blob holds in-session audio content. A blob reference is only
// meaningful inside the session that created it and is never persisted.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"StemDeck/logger"

	"github.com/google/uuid"
)

const refPrefix = "blob:"

// Registry maps blob references to files in a session-owned directory.
type Registry struct {
	mu      sync.Mutex
	dir     string
	entries map[string]string
}

// NewRegistry creates a registry whose files live in a fresh directory
// under base (os.TempDir when empty).
func NewRegistry(base string) (*Registry, error) {
	dir, err := os.MkdirTemp(base, "stemdeck-session-")
	if err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Registry{dir: dir, entries: make(map[string]string)}, nil
}

// IsRef reports whether s looks like a blob reference.
func IsRef(s string) bool {
	return strings.HasPrefix(s, refPrefix)
}

// Put stores data and returns its reference. name only contributes the
// extension so players can sniff the format.
func (r *Registry) Put(name string, data []byte) (string, error) {
	id := uuid.NewString()
	path := filepath.Join(r.dir, id+filepath.Ext(name))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write blob for %s: %w", name, err)
	}

	ref := refPrefix + id
	r.mu.Lock()
	r.entries[ref] = path
	r.mu.Unlock()
	return ref, nil
}

// Path resolves a reference to a playable local path.
func (r *Registry) Path(ref string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.entries[ref]
	return p, ok
}

// Release drops references and deletes their files. Unknown references
// are ignored.
func (r *Registry) Release(refs ...string) {
	r.mu.Lock()
	var paths []string
	for _, ref := range refs {
		if p, ok := r.entries[ref]; ok {
			paths = append(paths, p)
			delete(r.entries, ref)
		}
	}
	r.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove blob file", logger.String("path", p), logger.ErrorField(err))
		}
	}
}

// Len returns the number of live references.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close releases everything and removes the session directory.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.entries = make(map[string]string)
	r.mu.Unlock()
	return os.RemoveAll(r.dir)
}

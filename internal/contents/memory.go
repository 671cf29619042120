package contents

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gallery-go/internal/gallery"
)

type memoryBlob struct {
	content []byte
	hash    string
	history []gallery.HistoryEntry // oldest first
}

// MemoryStore is an in-memory implementation of gallery.ContentStore.
// Directories exist only while they contain a blob, like a git tree.
// Hashes are git blob hashes and every write or delete records a history
// entry stamped by the clock. Writing without a hash over an existing blob
// overwrites it. This implementation is safe for concurrent use.
type MemoryStore struct {
	name    string
	clock   gallery.Clock
	mu      sync.RWMutex
	blobs   map[string]*memoryBlob
	commits int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(name string, clock gallery.Clock) *MemoryStore {
	if clock == nil {
		clock = gallery.RealClock{}
	}
	return &MemoryStore{
		name:  name,
		clock: clock,
		blobs: make(map[string]*memoryBlob),
	}
}

// ListDirectory returns the immediate children of dir, sorted by name.
func (m *MemoryStore) ListDirectory(_ context.Context, dir string) ([]gallery.Entry, error) {
	dir, err := cleanPath(dir)
	if err != nil {
		return nil, &gallery.TransportError{Message: err.Error()}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.blobs[dir]; ok && dir != "" {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("%s is not a directory", dir)}
	}

	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	seenDirs := make(map[string]bool)
	var entries []gallery.Entry
	for p, b := range m.blobs {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			name := rest[:i]
			if !seenDirs[name] {
				seenDirs[name] = true
				entries = append(entries, gallery.Entry{
					Name: name,
					Path: joinPath(dir, name),
					Type: gallery.EntryDir,
				})
			}
			continue
		}
		entries = append(entries, gallery.Entry{
			Name: rest,
			Path: p,
			Type: gallery.EntryFile,
			Hash: b.hash,
			Size: int64(len(b.content)),
			URL:  m.url(p),
		})
	}

	if len(entries) == 0 && dir != "" {
		return nil, fmt.Errorf("directory %s: %w", dir, gallery.ErrNotFound)
	}

	slices.SortFunc(entries, func(a, b gallery.Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// ReadFile returns a copy of the blob at p.
func (m *MemoryStore) ReadFile(_ context.Context, p string) (*gallery.FileContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[strings.Trim(p, "/")]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", p, gallery.ErrNotFound)
	}
	return &gallery.FileContent{
		Path:    strings.Trim(p, "/"),
		Content: slices.Clone(b.content),
		Hash:    b.hash,
	}, nil
}

// WriteFile stores content at p. A non-empty hash must match the current
// blob.
func (m *MemoryStore) WriteFile(_ context.Context, p string, content []byte, hash string, message string) (string, error) {
	p, err := cleanPath(p)
	if err != nil || p == "" {
		return "", &gallery.TransportError{Message: fmt.Sprintf("invalid path %q", p)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.blobs[p]
	if hash != "" && (!ok || existing.hash != hash) {
		return "", gallery.NewConflictError(p)
	}

	newHash := BlobHash(content)
	b := &memoryBlob{content: slices.Clone(content), hash: newHash}
	if ok {
		b.history = existing.history
	}
	b.history = append(b.history, m.commitLocked(message))
	m.blobs[p] = b
	return newHash, nil
}

// DeleteFile removes the blob at p if hash is current.
func (m *MemoryStore) DeleteFile(_ context.Context, p string, hash string, _ string) error {
	p = strings.Trim(p, "/")

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs[p]
	if !ok {
		return fmt.Errorf("file %s: %w", p, gallery.ErrNotFound)
	}
	if b.hash != hash {
		return gallery.NewConflictError(p)
	}
	delete(m.blobs, p)
	return nil
}

// ListHistory returns up to limit history entries of p, newest first. A
// path without history yields an empty slice.
func (m *MemoryStore) ListHistory(_ context.Context, p string, limit int) ([]gallery.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[strings.Trim(p, "/")]
	if !ok {
		return nil, nil
	}

	out := make([]gallery.HistoryEntry, 0, len(b.history))
	for i := len(b.history) - 1; i >= 0; i-- {
		out = append(out, b.history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Verify always succeeds for the in-memory store.
func (m *MemoryStore) Verify(context.Context) error {
	return nil
}

// Len returns the number of blobs in the store.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

func (m *MemoryStore) commitLocked(message string) gallery.HistoryEntry {
	m.commits++
	return gallery.HistoryEntry{
		Hash:    fmt.Sprintf("%040x", m.commits),
		Message: message,
		Author:  m.name,
		Time:    m.clock.Now(),
	}
}

func (m *MemoryStore) url(p string) string {
	return "mem://" + m.name + "/" + p
}

// Compile-time check that MemoryStore implements gallery.ContentStore
var _ gallery.ContentStore = (*MemoryStore)(nil)

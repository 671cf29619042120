package testutil

import (
	"context"
	"sync"

	"gallery-go/internal/contents"
	"gallery-go/internal/gallery"
)

// Store method names used to target faults and count calls.
const (
	MethodList    = "ListDirectory"
	MethodRead    = "ReadFile"
	MethodWrite   = "WriteFile"
	MethodDelete  = "DeleteFile"
	MethodHistory = "ListHistory"
	MethodVerify  = "Verify"
)

// Call is one recorded store call.
type Call struct {
	Method string
	Path   string
}

// FaultyStore wraps a ContentStore, records every call and fails selected
// ones. Safe for concurrent use.
type FaultyStore struct {
	inner gallery.ContentStore

	mu        sync.Mutex
	calls     []Call
	counts    map[string]int
	nthFaults map[string]map[int]error
	pathFault map[string]map[string]error
	before    func(ctx context.Context, method, path string)
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner gallery.ContentStore) *FaultyStore {
	return &FaultyStore{
		inner:     inner,
		counts:    make(map[string]int),
		nthFaults: make(map[string]map[int]error),
		pathFault: make(map[string]map[string]error),
	}
}

// NewTestStore returns a FaultyStore over an empty MemoryStore, and the
// MemoryStore itself for seeding and inspection.
func NewTestStore() (*FaultyStore, *contents.MemoryStore) {
	mem := contents.NewMemoryStore("test", FixedClock())
	return NewFaultyStore(mem), mem
}

// FailNth makes the nth call (1-based, counted from now) to method fail with err.
func (s *FaultyStore) FailNth(method string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nthFaults[method] == nil {
		s.nthFaults[method] = make(map[int]error)
	}
	s.nthFaults[method][s.counts[method]+n] = err
}

// FailPath makes every call to method for path fail with err.
func (s *FaultyStore) FailPath(method, path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pathFault[method] == nil {
		s.pathFault[method] = make(map[string]error)
	}
	s.pathFault[method][path] = err
}

// ClearFaults removes every pending fault.
func (s *FaultyStore) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nthFaults = make(map[string]map[int]error)
	s.pathFault = make(map[string]map[string]error)
}

// BeforeCall installs a hook run before every call reaches the inner store.
func (s *FaultyStore) BeforeCall(fn func(ctx context.Context, method, path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.before = fn
}

// Count returns how many times method was called.
func (s *FaultyStore) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method]
}

// Paths returns the paths method was called with, in call order.
func (s *FaultyStore) Paths(method string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if c.Method == method {
			out = append(out, c.Path)
		}
	}
	return out
}

// ResetCalls forgets recorded calls and counts. Pending faults stay
// relative to the old counts, so set faults after resetting.
func (s *FaultyStore) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.counts = make(map[string]int)
	s.nthFaults = make(map[string]map[int]error)
}

func (s *FaultyStore) enter(ctx context.Context, method, path string) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Path: path})
	s.counts[method]++
	n := s.counts[method]
	err := s.nthFaults[method][n]
	if err == nil {
		err = s.pathFault[method][path]
	}
	before := s.before
	s.mu.Unlock()

	if before != nil {
		before(ctx, method, path)
	}
	return err
}

func (s *FaultyStore) ListDirectory(ctx context.Context, path string) ([]gallery.Entry, error) {
	if err := s.enter(ctx, MethodList, path); err != nil {
		return nil, err
	}
	return s.inner.ListDirectory(ctx, path)
}

func (s *FaultyStore) ReadFile(ctx context.Context, path string) (*gallery.FileContent, error) {
	if err := s.enter(ctx, MethodRead, path); err != nil {
		return nil, err
	}
	return s.inner.ReadFile(ctx, path)
}

func (s *FaultyStore) WriteFile(ctx context.Context, path string, content []byte, hash string, message string) (string, error) {
	if err := s.enter(ctx, MethodWrite, path); err != nil {
		return "", err
	}
	return s.inner.WriteFile(ctx, path, content, hash, message)
}

func (s *FaultyStore) DeleteFile(ctx context.Context, path string, hash string, message string) error {
	if err := s.enter(ctx, MethodDelete, path); err != nil {
		return err
	}
	return s.inner.DeleteFile(ctx, path, hash, message)
}

func (s *FaultyStore) ListHistory(ctx context.Context, path string, limit int) ([]gallery.HistoryEntry, error) {
	if err := s.enter(ctx, MethodHistory, path); err != nil {
		return nil, err
	}
	return s.inner.ListHistory(ctx, path, limit)
}

func (s *FaultyStore) Verify(ctx context.Context) error {
	if err := s.enter(ctx, MethodVerify, ""); err != nil {
		return err
	}
	return s.inner.Verify(ctx)
}

var _ gallery.ContentStore = (*FaultyStore)(nil)

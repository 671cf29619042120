package testutil

import (
	"sync"

	"gallery-go/internal/gallery"
)

// RecordingNotifier keeps every notification.
type RecordingNotifier struct {
	mu    sync.Mutex
	notes []gallery.Notification
}

func (n *RecordingNotifier) Notify(note gallery.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

// All returns the notifications received so far.
func (n *RecordingNotifier) All() []gallery.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]gallery.Notification(nil), n.notes...)
}

// Count returns how many notifications of level were received.
func (n *RecordingNotifier) Count(level gallery.Level) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, note := range n.notes {
		if note.Level == level {
			c++
		}
	}
	return c
}

// RecordingRecorder keeps every operation transition.
type RecordingRecorder struct {
	mu  sync.Mutex
	ops []gallery.Operation
}

func (r *RecordingRecorder) Record(op gallery.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

// Transitions returns every recorded transition in order.
func (r *RecordingRecorder) Transitions() []gallery.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gallery.Operation(nil), r.ops...)
}

// Last returns the latest transition of the most recent operation.
func (r *RecordingRecorder) Last() (gallery.Operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ops) == 0 {
		return gallery.Operation{}, false
	}
	return r.ops[len(r.ops)-1], true
}

// RecordingSession counts invalidations.
type RecordingSession struct {
	mu      sync.Mutex
	reasons []error
}

func (s *RecordingSession) Invalidate(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = append(s.reasons, reason)
}

// Invalidations returns how many times Invalidate was called.
func (s *RecordingSession) Invalidations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reasons)
}

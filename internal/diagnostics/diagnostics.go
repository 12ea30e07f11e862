// Package diagnostics provides an injectable service that records recent
// application events for operator inspection. It replaces ambient global
// debug state with an explicit component that is constructed at startup
// and disposed at shutdown.
package diagnostics

import (
	"sync"
	"time"
)

// Event is a single recorded diagnostics entry.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Service keeps a fixed-capacity ring buffer of recent events.
// All methods are safe for concurrent use. After Close, Record is a no-op.
type Service struct {
	mu       sync.Mutex
	events   []Event
	next     int
	size     int
	capacity int
	closed   bool
}

// NewService creates a diagnostics service with the given buffer capacity.
// A non-positive capacity falls back to 256 entries.
func NewService(capacity int) *Service {
	if capacity <= 0 {
		capacity = 256
	}
	return &Service{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// Record appends an event, overwriting the oldest entry when the buffer is full.
func (s *Service) Record(source, message string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.events[s.next] = Event{
		Timestamp: time.Now().UTC(),
		Source:    source,
		Message:   message,
		Fields:    fields,
	}
	s.next = (s.next + 1) % s.capacity
	if s.size < s.capacity {
		s.size++
	}
}

// Snapshot returns the recorded events in chronological order.
func (s *Service) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, 0, s.size)
	start := s.next - s.size
	if start < 0 {
		start += s.capacity
	}
	for i := 0; i < s.size; i++ {
		out = append(out, s.events[(start+i)%s.capacity])
	}
	return out
}

// Close disposes the service. Subsequent Record calls are ignored.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Package progress implements the optional lifecycle-event log the
// executor appends to on step_start, step_complete, and workflow
// termination.
package progress

import (
	"sync"

	"github.com/corework/dagflow/wftypes"
)

// Sink receives lifecycle events from the executor. Emit must not block the
// caller for long; sinks that do I/O should buffer or do it asynchronously.
type Sink interface {
	Emit(event wftypes.ProgressEvent)
}

// InMemorySink is the default sink: an append-only log behind a mutex.
// Snapshot returns a defensive copy and Clear empties the log.
type InMemorySink struct {
	mu     sync.Mutex
	events []wftypes.ProgressEvent
}

// NewInMemorySink returns an empty in-memory sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Emit(event wftypes.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Snapshot returns a defensive copy of every event recorded so far.
func (s *InMemorySink) Snapshot() []wftypes.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wftypes.ProgressEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Clear empties the event log.
func (s *InMemorySink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// Multi fans a single Emit out to several sinks, letting a caller combine
// (for example) the in-memory default with the AMQP forwarder.
type Multi struct {
	Sinks []Sink
}

func (m Multi) Emit(event wftypes.ProgressEvent) {
	for _, s := range m.Sinks {
		if s != nil {
			s.Emit(event)
		}
	}
}

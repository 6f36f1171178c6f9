package history

import (
	"sync"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// DefaultCapacity bounds the in-memory history log
const DefaultCapacity = 10000

// Log is an append-only, bounded ring buffer of state-change events. When
// full, the oldest events are overwritten. Entries are immutable once
// appended.
type Log struct {
	events []types.StateChangeEvent
	head   int // next write position
	size   int
	mu     sync.RWMutex
}

// NewLog creates a log holding at most capacity events
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		events: make([]types.StateChangeEvent, capacity),
	}
}

// Append adds an event, overwriting the oldest when the buffer is full
func (l *Log) Append(event types.StateChangeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events[l.head] = event
	l.head = (l.head + 1) % len(l.events)
	if l.size < len(l.events) {
		l.size++
	}
}

// Size returns the number of retained events
func (l *Log) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// All returns the retained events in append order
func (l *Log) All() []types.StateChangeEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

// ForAgent returns the retained events for one agent since the given time,
// in append order
func (l *Log) ForAgent(agentID string, since time.Time) []types.StateChangeEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []types.StateChangeEvent
	for _, event := range l.snapshotLocked() {
		if event.AgentID == agentID && !event.Timestamp.Before(since) {
			out = append(out, event)
		}
	}
	return out
}

// ForSession returns the retained events for one session, in append order
func (l *Log) ForSession(sessionID string) []types.StateChangeEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []types.StateChangeEvent
	for _, event := range l.snapshotLocked() {
		if event.SessionID == sessionID {
			out = append(out, event)
		}
	}
	return out
}

func (l *Log) snapshotLocked() []types.StateChangeEvent {
	out := make([]types.StateChangeEvent, 0, l.size)
	if l.size < len(l.events) {
		out = append(out, l.events[:l.size]...)
		return out
	}
	// Buffer wrapped: oldest entry sits at head.
	out = append(out, l.events[l.head:]...)
	out = append(out, l.events[:l.head]...)
	return out
}

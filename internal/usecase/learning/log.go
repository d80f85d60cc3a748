package learning

import (
	"sync"

	"github.com/kailas-cloud/recollect/internal/domain/feedback"
)

// DefaultCapacity is the default feedback log size.
const DefaultCapacity = 10_000

// Log is a bounded ring buffer of feedback records. The oldest record is evicted first.
type Log struct {
	mu    sync.RWMutex
	buf   []feedback.Record
	head  int // next write position
	size  int
	total uint64
}

// NewLog creates a log. Non-positive capacity falls back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{buf: make([]feedback.Record, capacity)}
}

// Append adds a record, evicting the oldest when full.
func (l *Log) Append(rec feedback.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.head] = rec
	l.head = (l.head + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
	l.total++
}

// Snapshot returns the retained records, oldest first.
func (l *Log) Snapshot() []feedback.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]feedback.Record, l.size)
	start := (l.head - l.size + len(l.buf)) % len(l.buf)
	for i := range l.size {
		out[i] = l.buf[(start+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of retained records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Total returns the number of records ever appended.
func (l *Log) Total() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Capacity returns the maximum number of retained records.
func (l *Log) Capacity() int { return len(l.buf) }

// Clear drops all records.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.buf)
	l.head, l.size = 0, 0
}

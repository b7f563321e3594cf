// Package history keeps a bounded, append-only record of what was run
// on each target. It backs the operator-facing audit view; durable
// persistence lives in the store layer.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity bounds how many entries a log retains per target.
const DefaultCapacity = 200

// truncateAt caps captured output per entry so one verbose command
// cannot dominate the log.
const truncateAt = 4096

// Entry is one executed invocation as recorded for the audit trail.
// Entries are immutable after Append.
type Entry struct {
	ID         uuid.UUID     `json:"id"`
	Target     string        `json:"target"`
	Task       string        `json:"task"`
	Category   string        `json:"category"`
	Command    string        `json:"command"`
	Privileged bool          `json:"privileged"`
	Status     string        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Attempts   int           `json:"attempts"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Log is an append-only ring of entries for one target. Once capacity
// is reached the oldest entries are discarded. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
}

// NewLog returns a log retaining at most capacity entries; capacity <= 0
// selects DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Append records one entry, truncating captured output and assigning an
// ID if the caller left it zero.
func (l *Log) Append(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Stdout = truncate(e.Stdout)
	e.Stderr = truncate(e.Stderr)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.capacity {
		// Drop the oldest; copy so the backing array does not pin them.
		keep := make([]Entry, l.capacity)
		copy(keep, l.entries[len(l.entries)-l.capacity:])
		l.entries = keep
	}
	return e
}

// Snapshot returns the retained entries, oldest first.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports how many entries are retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func truncate(s string) string {
	if len(s) <= truncateAt {
		return s
	}
	return s[:truncateAt] + "\n... [truncated]"
}

// Book holds the per-target logs.
type Book struct {
	mu       sync.Mutex
	capacity int
	logs     map[string]*Log
}

// NewBook returns an empty book whose logs use the given capacity.
func NewBook(capacity int) *Book {
	return &Book{capacity: capacity, logs: make(map[string]*Log)}
}

// ForTarget returns the log for one target, creating it on first use.
func (b *Book) ForTarget(target string) *Log {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.logs[target]
	if !ok {
		l = NewLog(b.capacity)
		b.logs[target] = l
	}
	return l
}

// Targets lists the targets that have recorded entries.
func (b *Book) Targets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.logs))
	for t := range b.logs {
		out = append(out, t)
	}
	return out
}

// Package strtable implements the append-only string dictionary that backs
// tag encoding. Every distinct tag key or value is assigned a stable integer
// id exactly once; ids are never reused or reassigned, because stored records
// embed them directly.
package strtable

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned by Resolve for an id that was never allocated.
	ErrNotFound = errors.New("string id not found")

	// ErrTableFull is returned by Intern when the dictionary has reached its
	// configured capacity. Callers surface this as an encoding failure.
	ErrTableFull = errors.New("string table full")
)

// Interner assigns stable integer ids to strings and resolves them back.
//
// Implementations must be safe for concurrent use. Different backends may run
// independent dictionaries with divergent numbering; each dictionary must be
// internally self-consistent.
type Interner interface {
	// Intern returns the id for text, allocating a new one on first sight.
	Intern(text string) (uint64, error)

	// Resolve returns the text for a previously allocated id.
	Resolve(id uint64) (string, error)
}

// MemoryTable is an in-memory Interner backed by two maps. Ids start at 1;
// zero is reserved as the tag-stream terminator in dense block layouts.
type MemoryTable struct {
	mu     sync.RWMutex
	byText map[string]uint64
	byID   map[uint64]string
	next   uint64
	max    uint64 // 0 means unbounded
}

// Option configures a MemoryTable.
type Option func(*MemoryTable)

// WithMaxEntries bounds the number of distinct strings the table accepts.
// Intern returns ErrTableFull once the bound is reached.
func WithMaxEntries(n uint64) Option {
	return func(t *MemoryTable) {
		t.max = n
	}
}

// NewMemoryTable creates an empty in-memory string table.
func NewMemoryTable(opts ...Option) *MemoryTable {
	t := &MemoryTable{
		byText: make(map[string]uint64),
		byID:   make(map[uint64]string),
		next:   1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Intern returns the existing id for text or allocates the next one.
func (t *MemoryTable) Intern(text string) (uint64, error) {
	t.mu.RLock()
	id, ok := t.byText[text]
	t.mu.RUnlock()
	if ok {
		return id, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check under the write lock; another writer may have won the race.
	if id, ok := t.byText[text]; ok {
		return id, nil
	}
	if t.max > 0 && uint64(len(t.byText)) >= t.max {
		return 0, fmt.Errorf("%w: capacity %d", ErrTableFull, t.max)
	}

	id = t.next
	t.next++
	t.byText[text] = id
	t.byID[id] = text
	return id, nil
}

// Resolve returns the text for id, or ErrNotFound.
func (t *MemoryTable) Resolve(id uint64) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	text, ok := t.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return text, nil
}

// Len returns the number of interned strings.
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.byText)
}

// Snapshot returns a copy of the text→id mapping.
func (t *MemoryTable) Snapshot() map[string]uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]uint64, len(t.byText))
	for text, id := range t.byText {
		out[text] = id
	}
	return out
}

// Inverse returns a copy of the id→text mapping, used by decode and export.
func (t *MemoryTable) Inverse() map[uint64]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[uint64]string, len(t.byID))
	for id, text := range t.byID {
		out[id] = text
	}
	return out
}

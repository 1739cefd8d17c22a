// Package memory keeps the recent transcript an agent is prompted with.
package memory

import "sync"

// Memory is a bounded, goroutine-safe list of entries. Once full, the oldest
// entry is dropped for each new one.
type Memory struct {
	entries  []string
	capacity int
	mu       sync.RWMutex
}

func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		entries:  make([]string, 0, capacity),
		capacity: capacity,
	}
}

// All returns a copy of every entry, oldest first.
func (m *Memory) All() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.entries))
	copy(out, m.entries)
	return out
}

// Recent returns up to n of the newest entries, oldest first.
func (m *Memory) Recent(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > len(m.entries) {
		n = len(m.entries)
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	copy(out, m.entries[len(m.entries)-n:])
	return out
}

func (m *Memory) Store(entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	if len(m.entries) > m.capacity {
		m.entries = m.entries[len(m.entries)-m.capacity:]
	}
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reset forgets everything, typically at the start of an episode.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}

package checkpoint

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in process memory. Intended for tests
// and single-shot runs; everything is lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*threadCheckpoints
	closed  bool
}

// threadCheckpoints holds one thread's checkpoints keyed by step, with
// a counter so sequences stay monotone even as steps are overwritten
// or deleted.
type threadCheckpoints struct {
	entries map[string]memEntry
	nextSeq int
}

type memEntry struct {
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]*threadCheckpoints),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(threadID, step string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	thread, ok := m.threads[threadID]
	if !ok {
		thread = &threadCheckpoints{entries: make(map[string]memEntry)}
		m.threads[threadID] = thread
	}
	thread.nextSeq++

	// Detach from the caller's slice.
	stored := append([]byte(nil), data...)

	thread.entries[step] = memEntry{
		data:      stored,
		sequence:  thread.nextSeq,
		timestamp: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(threadID, step string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	thread, ok := m.threads[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	entry, ok := thread.entries[step]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.data...), nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(threadID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	thread, ok := m.threads[threadID]
	if !ok || len(thread.entries) == 0 {
		return nil, ErrNotFound
	}

	var best memEntry
	for _, entry := range thread.entries {
		if entry.sequence > best.sequence {
			best = entry
		}
	}
	return append([]byte(nil), best.data...), nil
}

// List implements Store.
func (m *MemoryStore) List(threadID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	thread, ok := m.threads[threadID]
	if !ok {
		return nil, nil
	}

	infos := make([]Info, 0, len(thread.entries))
	for step, entry := range thread.entries {
		infos = append(infos, Info{
			ThreadID:  threadID,
			Step:      step,
			Sequence:  entry.sequence,
			Timestamp: entry.timestamp,
			Size:      int64(len(entry.data)),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(threadID, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if thread, ok := m.threads[threadID]; ok {
		delete(thread.entries, step)
	}
	return nil
}

// DeleteThread implements Store.
func (m *MemoryStore) DeleteThread(threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.threads, threadID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.threads = nil
	return nil
}

// Len returns the total checkpoint count across threads. Test helper.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, thread := range m.threads {
		count += len(thread.entries)
	}
	return count
}

package store

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the background sweeper removes entries
// whose window has closed. The cadence is deliberately decoupled from any
// policy's window: a stale entry is also replaced lazily on its next Take,
// so the sweeper only reclaims memory for keys that never return.
const DefaultSweepInterval = 5 * time.Minute

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// Memory is an in-memory implementation of Store using a map with mutex
// protection.
//
// Counters live in process memory only: a restart resets every window, and
// in a multi-instance deployment each instance counts independently, so the
// effective limit scales with instance count. Use Memory for development and
// single-instance sites; use Redis when a shared ceiling is needed.
type Memory struct {
	mu        sync.RWMutex
	entries   map[string]*memoryEntry
	now       func() time.Time
	sweep     time.Duration
	stopCh    chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock sets the time source. Tests inject a deterministic clock here
// instead of sleeping through real windows.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithSweepInterval sets how often expired entries are swept.
// A non-positive interval disables the background sweeper; entries are then
// only reclaimed lazily on access.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.sweep = d
	}
}

// NewMemory creates an in-memory store with automatic cleanup of expired
// entries. Call Close() when done to stop the sweeper goroutine.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
		sweep:   DefaultSweepInterval,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.sweep > 0 {
		go m.sweepLoop()
	}
	return m
}

func (m *Memory) Take(_ context.Context, key string, limit int64, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, exists := m.entries[key]

	if !exists || now.After(entry.resetAt) {
		entry = &memoryEntry{resetAt: now.Add(window)}
		m.entries[key] = entry
	}

	if entry.count < limit {
		entry.count++
		return Result{Allowed: true, Remaining: limit - entry.count, ResetAt: entry.resetAt}, nil
	}

	// The boundary request is rejected, not counted, so the stored count
	// never exceeds the limit.
	return Result{Allowed: false, Remaining: 0, ResetAt: entry.resetAt}, nil
}

func (m *Memory) Get(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[key]
	if !exists || m.now().After(entry.resetAt) {
		return 0, nil
	}
	return entry.count, nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Close stops the sweeper goroutine. Safe to call more than once.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopCh)
	})
	return nil
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stopCh:
			return
		}
	}
}

// removeExpired collects expired keys under a read lock, then deletes under
// a write lock, so in-flight Take calls are never starved for a full scan.
func (m *Memory) removeExpired() {
	now := m.now()
	var expired []string

	m.mu.RLock()
	for key, entry := range m.entries {
		if now.After(entry.resetAt) {
			expired = append(expired, key)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	m.mu.Lock()
	for _, key := range expired {
		// Re-check: the entry may have been replaced by a fresh window
		// between the two lock scopes.
		if entry, ok := m.entries[key]; ok && now.After(entry.resetAt) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}

// size reports the number of live entries, for tests.
func (m *Memory) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

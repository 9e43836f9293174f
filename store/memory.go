package store

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	data      []byte
	expiresAt time.Time // zero value = never expires
}

// memoryBackend is the fallback map. Expired entries are dropped on read and
// by an optional janitor.
type memoryBackend struct {
	items  map[string]memEntry
	now    func() time.Time
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

func newMemoryBackend(now func() time.Time, cleanupInterval time.Duration) *memoryBackend {
	m := &memoryBackend{
		items: make(map[string]memEntry),
		now:   now,
		done:  make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go m.janitor(cleanupInterval)
	}

	return m
}

func (m *memoryBackend) expired(e memEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (m *memoryBackend) get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	e, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if m.expired(e, m.now()) {
		delete(m.items, key)
		return nil, ErrNotFound
	}

	return e.data, nil
}

func (m *memoryBackend) set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	e := memEntry{data: data}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = e

	return nil
}

func (m *memoryBackend) del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	delete(m.items, key)
	return nil
}

func (m *memoryBackend) ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *memoryBackend) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memoryBackend) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)
	return nil
}

func (m *memoryBackend) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.deleteExpired()
		}
	}
}

func (m *memoryBackend) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, e := range m.items {
		if m.expired(e, now) {
			delete(m.items, key)
		}
	}
}

// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"loan-desk-backend/internal/store"
)

// Memory is a store.Store held in memory. SetOffline(true) makes reads report
// stale data and writes fail with store.ErrNetworkUnavailable, while the
// local copy keeps being updated like the shared store's mirror.
type Memory struct {
	mu      sync.Mutex
	data    map[string][]byte
	writes  map[string]int
	offline bool
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}, writes: map[string]int{}}
}

func (m *Memory) Read(_ context.Context, key string) ([]byte, store.Meta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.data[key]
	if m.offline {
		return data, store.Meta{Source: store.SourceCache, Stale: true, ReadAt: time.Now()}
	}
	return data, store.Meta{Source: store.SourceNetwork, ReadAt: time.Now()}
}

func (m *Memory) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	m.writes[key]++
	if m.offline {
		return store.ErrNetworkUnavailable
	}
	return nil
}

func (m *Memory) SetOffline(v bool) {
	m.mu.Lock()
	m.offline = v
	m.mu.Unlock()
}

// Put stores raw bytes without counting a write.
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	m.data[key] = data
	m.mu.Unlock()
}

// Writes returns how many times key was written.
func (m *Memory) Writes(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[key]
}

// Package store persists listener records so the teamserver can
// restore its listeners after a restart.  Menu actions are owned by
// the scripts that register them and are never persisted.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("listener record not found")

// Record is the persisted form of a listener.
type Record struct {
	Name      string
	Protocol  string
	State     string
	Config    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Memory is a process-local store.  It is what the daemon uses when no
// database path is configured, and what tests use.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Save inserts or replaces rec.
func (m *Memory) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if old, ok := m.records[rec.Name]; ok {
		rec.CreatedAt = old.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.Config = copyConfig(rec.Config)
	m.records[rec.Name] = rec
	return nil
}

// Delete removes the named record.
func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[name]; !ok {
		return ErrNotFound
	}
	delete(m.records, name)
	return nil
}

// Load returns every record ordered by creation time, then name.
func (m *Memory) Load(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		r.Config = copyConfig(r.Config)
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func copyConfig(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

package index

import (
	"context"
	"maps"
	"sync"
)

// MemoryIndex is an in-process index of archived fields.
// It is safe for concurrent use by multiple goroutines.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []map[string]string
	queries int
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Name() string { return "memory" }

// Archive records one field with the given keys. The map is copied.
func (m *MemoryIndex) Archive(keys map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, maps.Clone(keys))
}

// Queries returns the number of ListValues calls served so far.
func (m *MemoryIndex) Queries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

// ListValues implements Index.
func (m *MemoryIndex) ListValues(ctx context.Context, dimension string, filter Filter) (Result, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++

	set := make(ValueSet)
	for _, e := range m.entries {
		if !filter.Matches(e) {
			continue
		}
		if v, ok := e[dimension]; ok {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		return Result{}, nil
	}
	return Result{dimension: set}, nil
}

package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func New() *Store {
	return &Store{collections: make(map[string]map[string][]byte)}
}

func (m *Store) List(ctx context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.collections[collection]))
	for id := range m.collections[collection] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (m *Store) Read(ctx context.Context, collection, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.collections[collection][id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return slices.Clone(data), nil
}

func (m *Store) Create(ctx context.Context, collection, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[collection]
	if c == nil {
		c = make(map[string][]byte)
		m.collections[collection] = c
	}
	if _, ok := c[id]; ok {
		return repo.ErrExists
	}
	c[id] = slices.Clone(data)
	return nil
}

func (m *Store) Update(ctx context.Context, collection, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[collection]
	if _, ok := c[id]; !ok {
		return repo.ErrNotFound
	}
	c[id] = slices.Clone(data)
	return nil
}

func (m *Store) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[collection]
	if _, ok := c[id]; !ok {
		return repo.ErrNotFound
	}
	delete(c, id)
	return nil
}

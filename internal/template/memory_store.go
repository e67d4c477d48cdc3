package template

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in memory.
// Used when no database is configured, and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]Template
	now       func() time.Time
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[string]Template), now: func() time.Time { return time.Now().UTC() }}
}

func (s *MemoryStore) Create(_ context.Context, t Template) (Template, error) {
	t, err := prepare(t, s.now())
	if err != nil {
		return Template{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.ID]; exists {
		return Template{}, errors.Join(ErrInvalid, fmt.Errorf("template %s already exists", t.ID))
	}
	s.templates[t.ID] = clone(t)
	return clone(t), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return Template{}, ErrNotFound
	}
	return clone(t), nil
}

func (s *MemoryStore) List(_ context.Context, model string) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		if model != "" && t.Model != model {
			continue
		}
		t.Data = nil
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateData(_ context.Context, id string, data []byte) (Template, error) {
	if len(data) == 0 {
		return Template{}, errors.Join(ErrInvalid, errors.New("data is empty"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return Template{}, ErrNotFound
	}
	t.Data = append([]byte(nil), data...)
	t.Size = int64(len(data))
	t.Checksum = Checksum(data)
	t.UpdatedAt = s.now()
	s.templates[id] = t
	return clone(t), nil
}

func (s *MemoryStore) Rename(_ context.Context, id, name string) (Template, error) {
	name, err := validName(name)
	if err != nil {
		return Template{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return Template{}, ErrNotFound
	}
	t.Name = name
	t.FileName = FileName(name)
	t.UpdatedAt = s.now()
	s.templates[id] = t
	return clone(t), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

func clone(t Template) Template {
	t.Data = append([]byte(nil), t.Data...)
	return t
}

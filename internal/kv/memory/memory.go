package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ahorro/internal/kv"
)

// Store keeps every pair in a map. Used by tests and DATA_BACKEND=memory.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ kv.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string]string)}
}

// NewWith seeds the store with pairs.
func NewWith(pairs map[string]string) *Store {
	s := New()
	for k, v := range pairs {
		s.data[k] = v
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) SetMany(_ context.Context, pairs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range pairs {
		s.data[k] = v
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns matching keys in lexical order.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Snapshot copies the current contents.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

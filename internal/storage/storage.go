package storage

import (
	"errors"
	"sync"
)

// ErrClosed is returned by every operation on a backend after Close.
var ErrClosed = errors.New("storage closed")

// Store is the durable key/value medium holding the persisted session.
// Put and Delete are atomic across all keys they touch.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Put(entries map[string]string) error
	Delete(keys ...string) error
}

// InMemoryStore is a thread-safe map store. It survives nothing but is handy
// for tests and for --state-backend=memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]string)}
}

func (s *InMemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *InMemoryStore) Put(entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for k, v := range entries {
		s.data[k] = v
	}
	return nil
}

func (s *InMemoryStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Close drops the data. Later calls fail with ErrClosed.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

// Len returns the number of stored keys.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

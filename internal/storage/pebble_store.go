package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB. Session writes are tiny and
// rare, so every batch is committed with Sync.
type PebbleStore struct {
	mu     sync.RWMutex
	closed bool
	db     *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize: 4 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

func (p *PebbleStore) Get(key string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return "", false, ErrClosed
	}
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()
	return string(v), true, nil
}

func (p *PebbleStore) Put(entries map[string]string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	wb := p.db.NewBatch()
	defer wb.Close()
	for k, v := range entries {
		if err := wb.Set([]byte(k), []byte(v), nil); err != nil {
			return fmt.Errorf("pebble batch set %s: %w", k, err)
		}
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}
	return nil
}

func (p *PebbleStore) Delete(keys ...string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	wb := p.db.NewBatch()
	defer wb.Close()
	for _, k := range keys {
		if err := wb.Delete([]byte(k), nil); err != nil {
			return fmt.Errorf("pebble batch delete %s: %w", k, err)
		}
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}
	return nil
}

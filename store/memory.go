package store

import (
	"context"
	"maps"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	settings map[string]string
	blobs    map[string][]byte
}

var _ Store = (*memoryStore)(nil)

// NewMemory returns a Store that lives only as long as the process.
func NewMemory() Store {
	return &memoryStore{
		settings: make(map[string]string),
		blobs:    make(map[string][]byte),
	}
}

func (s *memoryStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.settings[key]
	return val, ok, nil
}

func (s *memoryStore) SaveSettings(_ context.Context, set map[string]string, remove []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.settings, set)
	for _, key := range remove {
		delete(s.settings, key)
	}
	return nil
}

func (s *memoryStore) ReadBlob(_ context.Context, name string) ([]byte, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *memoryStore) WriteBlob(_ context.Context, name string, data []byte) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.blobs[name] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) DeleteBlob(_ context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, name)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}

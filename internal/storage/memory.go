package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps published files in memory. The CLI uses it for dry
// runs; tests use it as a publisher double.
type MemoryStorage struct {
	mu    sync.RWMutex
	files map[string]MemoryFile
}

type MemoryFile struct {
	ContentType string
	Data        []byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{files: make(map[string]MemoryFile)}
}

func (s *MemoryStorage) Put(_ context.Context, p, contentType string, data []byte) error {
	name, err := cleanPath(p)
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = MemoryFile{ContentType: contentType, Data: buf}
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, p string) error {
	name, err := cleanPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
	return nil
}

func (s *MemoryStorage) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Get returns a stored file
func (s *MemoryStorage) Get(p string) (MemoryFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[p]
	return f, ok
}

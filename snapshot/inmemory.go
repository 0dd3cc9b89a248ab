package snapshot

import (
	"context"
	"errors"
	"sync"
)

type memStore struct {
	mutex   sync.Mutex
	entries map[string][]byte
	locks   map[string]LockInfo
}

var _ Store = (*memStore)(nil)

// NewInMemory returns a Store holding everything in process memory. Nothing
// survives a restart; intended for tests and embedding scenarios where
// durability is not wanted.
func NewInMemory() Store {
	return &memStore{
		entries: make(map[string][]byte),
		locks:   make(map[string]LockInfo),
	}
}

func (s *memStore) Entries(_ context.Context) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names, nil
}

func (s *memStore) Write(_ context.Context, name string, data []byte) error {
	s.mutex.Lock()
	s.entries[name] = append([]byte(nil), data...)
	s.mutex.Unlock()
	return nil
}

func (s *memStore) Read(_ context.Context, name string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	data, ok := s.entries[name]
	if !ok {
		return nil, errors.New("snapshot: no such entry: " + name)
	}
	return append([]byte(nil), data...), nil
}

func (s *memStore) AcquireLock(_ context.Context, cache string, info LockInfo) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, held := s.locks[cache]; held {
		return false, nil
	}
	s.locks[cache] = info
	return true, nil
}

func (s *memStore) ReadLock(_ context.Context, cache string) (bool, LockInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	info, held := s.locks[cache]
	return held, info, nil
}

func (s *memStore) ReleaseLock(_ context.Context, cache string) error {
	s.mutex.Lock()
	delete(s.locks, cache)
	s.mutex.Unlock()
	return nil
}

func (s *memStore) Close() error {
	return nil
}

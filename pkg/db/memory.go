package db

import (
	"context"
	"sync"
)

// MemoryVersionStore is an in-memory implementation of IVersionStore.
// Versions are kept in insertion order.
type MemoryVersionStore struct {
	mu       sync.RWMutex
	versions []*Version
}

func NewMemoryVersionStore() *MemoryVersionStore {
	return &MemoryVersionStore{}
}

func (s *MemoryVersionStore) Insert(_ context.Context, v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.versions = append(s.versions, clone(v))
	return nil
}

func (s *MemoryVersionStore) FindLatest(_ context.Context) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestLocked()
}

func (s *MemoryVersionStore) FindAll(_ context.Context) ([]*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Version, 0, len(s.versions))
	for i := len(s.versions) - 1; i >= 0; i-- {
		result = append(result, clone(s.versions[i]))
	}
	return result, nil
}

func (s *MemoryVersionStore) DeleteByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range s.versions {
		if v.ID == id {
			s.versions = append(s.versions[:i], s.versions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryVersionStore) AppendNext(ctx context.Context, build BuildFunc) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	previous, err := s.latestLocked()
	if err != nil && err != ErrVersionNotFound {
		return nil, err
	}

	next, err := build(previous)
	if err != nil {
		return nil, err
	}
	s.versions = append(s.versions, clone(next))
	return next, nil
}

func (s *MemoryVersionStore) Close() error {
	return nil
}

func (s *MemoryVersionStore) latestLocked() (*Version, error) {
	if len(s.versions) == 0 {
		return nil, ErrVersionNotFound
	}
	return clone(s.versions[len(s.versions)-1]), nil
}

func clone(v *Version) *Version {
	c := *v
	c.AddedWords = append([]string{}, v.AddedWords...)
	c.RemovedWords = append([]string{}, v.RemovedWords...)
	return &c
}

var _ IVersionStore = (*MemoryVersionStore)(nil)

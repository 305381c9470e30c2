package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	lastRead map[string]time.Time
	subs     map[int]func(*Snapshot)
	nextSub  int
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lastRead: make(map[string]time.Time),
		subs:     make(map[int]func(*Snapshot)),
	}
}

func (s *MemoryStore) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, nil
}

func (s *MemoryStore) SetSnapshot(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	s.snapshot = snap
	subs := make([]func(*Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

func (s *MemoryStore) LastRead(ctx context.Context, viewerID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRead[viewerID], nil
}

func (s *MemoryStore) SetLastRead(ctx context.Context, viewerID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRead[viewerID] = t
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, fn func(*Snapshot)) error {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the chain in process memory. It backs offline tooling
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects []Object
	byID    map[string]int
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int), now: time.Now}
}

func (s *MemoryStore) WriteObject(_ context.Context, kind Kind, fields any) (*Object, error) {
	key, payload, err := encode(kind, fields)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := GenesisDigest
	if n := len(s.objects); n > 0 {
		prev = s.objects[n-1].Digest
	}
	obj := Object{
		ID:         uuid.NewString(),
		Seq:        int64(len(s.objects) + 1),
		Kind:       kind,
		Key:        key,
		Fields:     payload,
		PrevDigest: prev,
		Digest:     Digest(prev, kind, key, payload),
		CreatedAt:  s.now().UTC(),
	}
	s.byID[obj.ID] = len(s.objects)
	s.objects = append(s.objects, obj)

	out := obj
	return &out, nil
}

func (s *MemoryStore) ReadObject(_ context.Context, id string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.objects[i]
	return &out, nil
}

func (s *MemoryStore) ReadByKey(_ context.Context, kind Kind, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.objects) - 1; i >= 0; i-- {
		if s.objects[i].Kind == kind && s.objects[i].Key == key {
			out := s.objects[i]
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Verify(_ context.Context) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return VerifyChain(s.objects), nil
}

package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"mail-agent/backend/pkg/models"
)

type memoryEntry struct {
	id   string
	data models.Record
}

// MemoryStore keeps records in process memory. Used by tests and by
// db.driver=memory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]*memoryEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]*memoryEntry)}
}

func (s *MemoryStore) Create(ctx context.Context, collection string, rec models.Record) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	b, err := encodeData(rec)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	data, err := decodeData(id, b)
	if err != nil {
		return "", err
	}
	delete(data, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], &memoryEntry{id: id, data: data})
	return id, nil
}

func (s *MemoryStore) Read(ctx context.Context, collection, id string) (models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.collections[collection] {
		if e.id == id {
			return e.snapshot(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters map[string]any, limit int) ([]models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Record{}
	for _, e := range s.collections[collection] {
		if limit > 0 && len(out) >= limit {
			break
		}
		if matches(e.data, filters) {
			out = append(out, e.snapshot())
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, key string, patch models.Record) (bool, error) {
	if err := checkCollection(collection); err != nil {
		return false, err
	}
	if err := checkKey(key); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.find(collection, key)
	if target == nil {
		return false, nil
	}
	merge(target.data, patch)
	return true, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// find prefers an id match, then the oldest record with that name.
func (s *MemoryStore) find(collection, key string) *memoryEntry {
	entries := s.collections[collection]
	for _, e := range entries {
		if e.id == key {
			return e
		}
	}
	for _, e := range entries {
		if name, _ := e.data["name"].(string); name == key {
			return e
		}
	}
	return nil
}

func (e *memoryEntry) snapshot() models.Record {
	rec := normalize(map[string]any(e.data)).(map[string]any)
	rec["id"] = e.id
	return rec
}

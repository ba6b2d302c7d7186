package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	appErr "github.com/samims/ctxrelay/internal/errors"
	"github.com/samims/ctxrelay/internal/model"
)

var _ ContextStore = (*MemoryStore)(nil)

// MemoryStore keeps records in process memory for the lifetime of the process.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]model.ContextRecord
	maxEntries int
	newID      func() string
	now        func() time.Time
}

// NewMemoryStore returns an empty store. maxEntries <= 0 means unlimited.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]model.ContextRecord),
		maxEntries: maxEntries,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, payload string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxEntries > 0 && len(m.records) >= m.maxEntries {
		return "", appErr.NewStorageFull("memory store holds %d records", len(m.records))
	}

	id := m.newID()
	for {
		if _, exists := m.records[id]; !exists {
			break
		}
		id = m.newID()
	}

	m.records[id] = model.ContextRecord{
		ID:        id,
		Payload:   payload,
		CreatedAt: m.now().UTC(),
	}
	return id, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (string, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()

	if !ok {
		return "", appErr.NewNotFound("context %s", id)
	}
	return rec.Payload, nil
}

// Len reports the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Ping always succeeds for the memory store.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }

package state

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// #region backend
// Backend is a flat text store scoped by device key. Load returns "" for a device with
// no saved state; absence is never an error. Save returns the id of the stored version.
type Backend interface {
	Load(ctx context.Context, deviceKey string) (string, error)
	Save(ctx context.Context, deviceKey, blob string) (string, error)
	Delete(ctx context.Context, deviceKey string) error
}

// #endregion backend

// #region memory
// MemoryStore keeps blobs in process memory. Used by tests and the replay harness.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string]string
	saves int
}

// NewMemoryStore returns an empty in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]string)}
}

func (m *MemoryStore) Load(_ context.Context, deviceKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[deviceKey], nil
}

func (m *MemoryStore) Save(_ context.Context, deviceKey, blob string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[deviceKey] = blob
	m.saves++
	return uuid.New().String(), nil
}

func (m *MemoryStore) Delete(_ context.Context, deviceKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, deviceKey)
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// #endregion memory

package localstate

import (
	"context"
	"sync"
)

// MemoryBackend keeps records in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) (Record, error) {
	m.mu.RLock()
	raw, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return decodeRecord(raw), nil
}

func (m *MemoryBackend) Save(_ context.Context, key string, rec Record) error {
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.records[key] = raw
	m.mu.Unlock()
	return nil
}

// PutRaw stores raw bytes as-is, the way values were written before versioning.
func (m *MemoryBackend) PutRaw(key string, raw []byte) {
	m.mu.Lock()
	m.records[key] = append([]byte(nil), raw...)
	m.mu.Unlock()
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Ping(context.Context) error {
	return nil
}

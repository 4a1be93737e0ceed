package db

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps documents in process. It backs tests and dry runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory creates an empty in-memory document store
func NewMemory() *Documents {
	return newDocuments(&Memory{docs: make(map[string][]byte)})
}

func (m *Memory) load(_ context.Context, userID string) (map[string]interface{}, error) {
	m.mu.RLock()
	raw := m.docs[userID]
	m.mu.RUnlock()
	return decodeDocument(raw)
}

func (m *Memory) save(_ context.Context, userID string, doc map[string]interface{}) error {
	raw, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[userID] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) userIDs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) close() error { return nil }

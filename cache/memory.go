package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	expires time.Time
	bytes   []byte
}

// MemStore is a process-local Store.
// It is meant for tests and single-instance development setups.
type MemStore struct {
	mutex *sync.RWMutex
	db    map[string]memEntry
	now   func() time.Time
}

func NewMemStore() *MemStore {
	return NewMemStoreWithClock(time.Now)
}

// NewMemStoreWithClock creates a MemStore that uses now to decide expiry.
func NewMemStoreWithClock(now func() time.Time) *MemStore {
	return &MemStore{
		mutex: &sync.RWMutex{},
		db:    make(map[string]memEntry),
		now:   now,
	}
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry, ok := m.db[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expires) {
		delete(m.db, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.bytes...), true, nil
}

func (m *MemStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = memEntry{
		expires: m.now().Add(ttl),
		bytes:   append([]byte(nil), value...),
	}
	return nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, key)
	return nil
}

func (m *MemStore) DeletePrefix(_ context.Context, prefix string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for key := range m.db {
		if strings.HasPrefix(key, prefix) {
			delete(m.db, key)
		}
	}
	return nil
}

func (m *MemStore) Ping(context.Context) error {
	return nil
}

func (m *MemStore) Close() error {
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *MemStore) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.db)
}

package storage

import (
	"sort"
	"sync"
)

// MemStore is an in-memory RecordStore for testing.
type MemStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
	closed  bool
}

var _ RecordStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{buckets: make(map[string]map[string][]byte)}
}

func (m *MemStore) Get(bucket, key string) ([]byte, error) {
	if err := validateRef(bucket, key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.buckets[bucket][key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

func (m *MemStore) Put(bucket, key string, value []byte) error {
	if err := validateRef(bucket, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.put(bucket, key, value)
	return nil
}

func (m *MemStore) put(bucket, key string, value []byte) {
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.buckets[bucket] = b
	}
	v := cloneBytes(value)
	if v == nil {
		v = []byte{}
	}
	b[key] = v
}

func (m *MemStore) Delete(bucket, key string) error {
	if err := validateRef(bucket, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.buckets[bucket][key]; !ok {
		return ErrNotFound
	}
	delete(m.buckets[bucket], key)
	return nil
}

func (m *MemStore) Keys(bucket string) ([]string, error) {
	if err := validateName("bucket", bucket); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemStore) Update(bucket, key string, fn func(old []byte) ([]byte, error)) error {
	if err := validateRef(bucket, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	next, err := fn(cloneBytes(m.buckets[bucket][key]))
	if err != nil {
		return err
	}
	m.put(bucket, key, next)
	return nil
}

func (m *MemStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

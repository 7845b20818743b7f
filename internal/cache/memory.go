package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process cache bounded by entry count. When full, the least
// recently accessed entry is evicted.
type Memory struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
	now        func() time.Time
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Memory{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*memoryEntry)
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.removeElement(el)
		return nil, false, nil
	}
	m.ll.MoveToFront(el)

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores value under key. A ttl <= 0 keeps the entry until evicted.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value = v
		e.expiresAt = exp
		m.ll.MoveToFront(el)
		return nil
	}

	el := m.ll.PushFront(&memoryEntry{key: key, value: v, expiresAt: exp})
	m.items[key] = el
	for m.ll.Len() > m.maxEntries {
		m.removeElement(m.ll.Back())
	}
	return nil
}

// Len returns the number of entries, including expired ones not yet reclaimed.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

func (m *Memory) Close() error { return nil }

func (m *Memory) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	m.ll.Remove(el)
	delete(m.items, el.Value.(*memoryEntry).key)
}

package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps records in process. Contents are lost on restart.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

func (m *Memory) Create(_ context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = *rec
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) List(_ context.Context, f Filter) (Page, error) {
	f = f.Normalize()

	m.mu.RLock()
	matched := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if f.matches(r) {
			matched = append(matched, r)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	page := Page{Page: f.Page, PageSize: f.PageSize, Total: len(matched), Items: []Record{}}
	start := f.offset()
	if start >= len(matched) {
		return page, nil
	}
	end := min(start+f.PageSize, len(matched))
	page.Items = append(page.Items, matched[start:end]...)
	return page, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

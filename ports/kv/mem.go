package kv

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zhangyunhao116/skipmap"
)

type memEntry struct {
	entry     Entry
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type orderedMap = skipmap.FuncMap[string, memEntry]

// MemStore is an ordered in-memory Store. Expired entries are dropped lazily
// when they are read.
type MemStore struct {
	data atomic.Pointer[orderedMap]
	now  func() time.Time
}

func NewMemStore() *MemStore {
	m := &MemStore{now: time.Now}
	m.data.Store(newOrderedMap())
	return m
}

func newOrderedMap() *orderedMap {
	return skipmap.NewFunc[string, memEntry](func(a, b string) bool { return a < b })
}

func (m *MemStore) Put(_ context.Context, key string, entry Entry, opts PutOptions) error {
	e := memEntry{entry: entry}
	if opts.TTL > 0 {
		e.expiresAt = m.now().Add(opts.TTL)
	}
	m.data.Load().Store(key, e)
	return nil
}

func (m *MemStore) Get(_ context.Context, key string) (Entry, error) {
	data := m.data.Load()
	e, ok := data.Load(key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	if e.expired(m.now()) {
		data.Delete(key)
		return Entry{}, ErrNotFound
	}
	return e.entry, nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.data.Load().Delete(key)
	return nil
}

func (m *MemStore) Keys(_ context.Context) ([]string, error) {
	now := m.now()
	var keys []string
	m.data.Load().Range(func(k string, e memEntry) bool {
		if !e.expired(now) {
			keys = append(keys, k)
		}
		return true
	})
	return keys, nil
}

func (m *MemStore) Len(ctx context.Context) (int, error) {
	keys, err := m.Keys(ctx)
	return len(keys), err
}

func (m *MemStore) Clear(_ context.Context) error {
	m.data.Store(newOrderedMap())
	return nil
}

var _ Store = (*MemStore)(nil)

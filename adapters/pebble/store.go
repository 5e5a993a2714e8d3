// Package pebble provides a disk backed kv.Store for storage nodes.
package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/codewandler/slotr/ports/kv"
)

type record struct {
	Data      []byte         `json:"d,omitempty"`
	Meta      map[string]any `json:"m,omitempty"`
	ExpiresAt int64          `json:"x,omitempty"` // unix nanos, 0 never expires
}

func (r record) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() >= r.ExpiresAt
}

// Store keeps entries in a pebble database. Keys are stored as given, so
// iteration order is byte order.
type Store struct {
	db   *pebble.DB
	sync bool
	now  func() time.Time
}

type Options struct {
	// NoSync skips fsync on writes.
	NoSync bool
}

func Open(dir string, opts Options) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", dir, err)
	}
	return &Store{db: db, sync: !opts.NoSync, now: time.Now}, nil
}

func (s *Store) writeOpts() *pebble.WriteOptions {
	if s.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (s *Store) Put(_ context.Context, key string, entry kv.Entry, opts kv.PutOptions) error {
	r := record{Data: entry.Data, Meta: entry.Meta}
	if opts.TTL > 0 {
		r.ExpiresAt = s.now().Add(opts.TTL).UnixNano()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(key), data, s.writeOpts())
}

func (s *Store) Get(_ context.Context, key string) (kv.Entry, error) {
	r, err := s.read([]byte(key))
	if err != nil {
		return kv.Entry{}, err
	}
	if r.expired(s.now()) {
		_ = s.db.Delete([]byte(key), pebble.NoSync)
		return kv.Entry{}, kv.ErrNotFound
	}
	return kv.Entry{Data: r.Data, Meta: r.Meta}, nil
}

func (s *Store) read(key []byte) (r record, err error) {
	data, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return r, kv.ErrNotFound
		}
		return r, fmt.Errorf("pebble: get: %w", err)
	}
	defer func() { _ = closer.Close() }()
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("pebble: decode %q: %w", key, err)
	}
	return r, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Delete([]byte(key), s.writeOpts())
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.scan(ctx, func(key []byte) {
		keys = append(keys, string(key))
	})
	return keys, err
}

func (s *Store) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.scan(ctx, func([]byte) { n++ })
	return n, err
}

// scan calls fn with every live key in order.
func (s *Store) scan(ctx context.Context, fn func(key []byte)) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("pebble: iterator: %w", err)
	}
	defer func() { _ = iter.Close() }()

	now := s.now()
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var r record
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			return fmt.Errorf("pebble: decode %q: %w", iter.Key(), err)
		}
		if r.expired(now) {
			continue
		}
		fn(iter.Key())
	}
	return iter.Error()
}

func (s *Store) Clear(ctx context.Context) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("pebble: iterator: %w", err)
	}
	b := s.db.NewBatch()
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := b.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
			_ = iter.Close()
			return err
		}
	}
	if err := iter.Close(); err != nil {
		return err
	}
	return b.Commit(s.writeOpts())
}

func (s *Store) Close() error { return s.db.Close() }

var _ kv.Store = &Store{}

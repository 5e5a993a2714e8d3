// Package perkey serializes work per key while work for different keys runs
// concurrently.
//
// Storage nodes use it to run the commands of one hash slot one at a time,
// which keeps check-then-write commands such as RENAMENX and MSETNX atomic.
package perkey

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Do once the scheduler is closed.
var ErrClosed = errors.New("perkey: scheduler closed")

// Scheduler runs functions such that for any key at most one runs at a time.
// Keys hold no resources while idle.
type Scheduler[K comparable] struct {
	mu     sync.Mutex
	locks  map[K]*lock
	closed bool
	wg     sync.WaitGroup
}

type lock struct {
	sem  chan struct{}
	refs int
}

func New[K comparable]() *Scheduler[K] {
	return &Scheduler[K]{locks: make(map[K]*lock)}
}

// Do runs fn once no other function for key is running and returns its
// error. Waiting is abandoned when ctx is done; fn then does not run.
func (s *Scheduler[K]) Do(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l, err := s.acquire(key)
	if err != nil {
		return err
	}
	defer s.release(key, l)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	return fn()
}

func (s *Scheduler[K]) acquire(key K) (*lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	l, ok := s.locks[key]
	if !ok {
		l = &lock{sem: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.wg.Add(1)
	return l, nil
}

func (s *Scheduler[K]) release(key K, l *lock) {
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
	s.wg.Done()
}

// Len returns the number of keys with running or waiting functions.
func (s *Scheduler[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// Close rejects new work and waits for running and waiting functions.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

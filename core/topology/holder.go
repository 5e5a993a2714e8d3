package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

type HolderOptions struct {
	Source  Source
	Initial *Topology
	Log     *slog.Logger
	// OnRefresh is called after every refresh attempt.
	OnRefresh func(t *Topology, err error)
	// FetchTimeout bounds one fetch from the source, defaults to 10s.
	FetchTimeout time.Duration
}

// Holder publishes the process-wide current snapshot. Readers call
// [Holder.Current] once per logical operation and keep using that snapshot;
// refreshes swap the pointer and never touch a published snapshot.
type Holder struct {
	log       *slog.Logger
	src       Source
	onRefresh func(*Topology, error)
	timeout   time.Duration

	cur   atomic.Pointer[Topology]
	group singleflight.Group

	ready     chan struct{}
	readyOnce sync.Once
}

func NewHolder(opts HolderOptions) *Holder {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	onRefresh := opts.OnRefresh
	if onRefresh == nil {
		onRefresh = func(*Topology, error) {}
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	h := &Holder{
		log:       log.With(slog.String("component", "topology")),
		src:       opts.Source,
		onRefresh: onRefresh,
		timeout:   timeout,
		ready:     make(chan struct{}),
	}
	if opts.Initial != nil {
		h.Set(opts.Initial)
	}
	return h
}

// Current returns the current snapshot, nil before the first successful
// refresh.
func (h *Holder) Current() *Topology { return h.cur.Load() }

// Set publishes t unconditionally.
func (h *Holder) Set(t *Topology) {
	if t == nil {
		return
	}
	prev := h.cur.Swap(t)
	h.readyOnce.Do(func() { close(h.ready) })
	if prev == nil || prev.Fingerprint() != t.Fingerprint() || prev.Epoch() != t.Epoch() {
		h.log.Info(
			"topology published",
			slog.Uint64("epoch", t.Epoch()),
			slog.String("fingerprint", t.Fingerprint()),
			slog.Int("primaries", len(t.primaries)),
			slog.Int("covered", t.Covered()),
		)
	}
}

// Refresh fetches a snapshot from the source and publishes it. Concurrent
// calls share one fetch, which is bounded by FetchTimeout rather than by any
// caller's ctx; a caller whose ctx ends stops waiting while the fetch goes on
// for the others. On failure the previous snapshot stays in force and is
// returned together with an error matching [ErrTopologyUnavailable].
func (h *Holder) Refresh(ctx context.Context) (*Topology, error) {
	ch := h.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()
		return h.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return h.Current(), fmt.Errorf("%w: %w", ErrTopologyUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return h.Current(), res.Err
		}
		return res.Val.(*Topology), nil
	}
}

func (h *Holder) fetch(ctx context.Context) (*Topology, error) {
	if h.src == nil {
		err := fmt.Errorf("%w: %w", ErrTopologyUnavailable, ErrNoSource)
		h.onRefresh(nil, err)
		return nil, err
	}

	t, err := h.src.Fetch(ctx)
	if err == nil && t == nil {
		err = errors.New("source returned no topology")
	}
	if err != nil {
		if !errors.Is(err, ErrTopologyUnavailable) {
			err = fmt.Errorf("%w: %w", ErrTopologyUnavailable, err)
		}
		h.log.Warn("topology refresh failed, keeping previous snapshot", slog.Any("error", err))
		h.onRefresh(nil, err)
		return nil, err
	}

	h.Set(t)
	h.onRefresh(t, nil)
	return t, nil
}

// Wait blocks until a snapshot has been published or ctx is done.
func (h *Holder) Wait(ctx context.Context) (*Topology, error) {
	select {
	case <-h.ready:
		return h.Current(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrTopologyUnavailable, ctx.Err())
	}
}

// Run refreshes immediately and then every interval until ctx is done.
func (h *Holder) Run(ctx context.Context, interval time.Duration) {
	_, _ = h.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = h.Refresh(ctx)
		}
	}
}

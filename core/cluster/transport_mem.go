package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/codewandler/slotr/core/topology"
)

// MemoryTransport connects clients and nodes inside one process. Requests
// and replies still pass through their JSON frames so that behavior matches
// a networked transport.
type MemoryTransport struct {
	log    *slog.Logger
	closed atomic.Bool
	seq    atomic.Uint64

	// nodeID -> endpoint
	endpoints *xsync.MapOf[string, *memEndpoint]

	// fault injection
	down  *xsync.MapOf[string, struct{}]
	delay *xsync.MapOf[string, time.Duration]
}

type memEndpoint struct {
	id uint64
	h  Handler
}

func NewInMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		log:       slog.New(slog.DiscardHandler),
		endpoints: xsync.NewMapOf[string, *memEndpoint](),
		down:      xsync.NewMapOf[string, struct{}](),
		delay:     xsync.NewMapOf[string, time.Duration](),
	}
}

func (t *MemoryTransport) WithLog(log *slog.Logger) *MemoryTransport {
	t.log = log.With(slog.String("transport", "mem"))
	return t
}

// Down makes every call to nodeID fail with ErrNodeUnreachable until Up.
func (t *MemoryTransport) Down(nodeID string) { t.down.Store(nodeID, struct{}{}) }

func (t *MemoryTransport) Up(nodeID string) { t.down.Delete(nodeID) }

// Delay holds every call to nodeID for d before it is handled. Zero removes
// the delay.
func (t *MemoryTransport) Delay(nodeID string, d time.Duration) {
	if d <= 0 {
		t.delay.Delete(nodeID)
		return
	}
	t.delay.Store(nodeID, d)
}

func (t *MemoryTransport) Serve(ctx context.Context, nodeID string, h Handler) (Subscription, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	ep := &memEndpoint{id: t.seq.Add(1), h: h}
	if _, loaded := t.endpoints.LoadOrStore(nodeID, ep); loaded {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyServed, nodeID)
	}
	t.log.Debug("serve", slog.String("node", nodeID))

	s := &memSubscription{
		t:      t,
		log:    t.log.With(slog.String("node", nodeID)),
		nodeID: nodeID,
		ep:     ep,
	}
	context.AfterFunc(ctx, func() {
		_ = s.Unsubscribe()
	})
	return s, nil
}

func (t *MemoryTransport) Execute(ctx context.Context, node *topology.Node, cmd string, args [][]byte) (Reply, error) {
	if t.closed.Load() {
		return Reply{}, ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	if _, isDown := t.down.Load(node.ID); isDown {
		return Reply{}, ErrNodeUnreachable
	}
	ep, ok := t.endpoints.Load(node.ID)
	if !ok {
		return Reply{}, fmt.Errorf("%w: nothing serves %s", ErrNodeUnreachable, node.ID)
	}

	req, err := EncodeRequest(cmd, args)
	if err != nil {
		return Reply{}, err
	}

	// Buffered so the handler never blocks on a caller that gave up.
	respCh := make(chan []byte, 1)
	go func() {
		respCh <- t.invoke(ctx, node.ID, ep.h, req)
	}()

	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case b := <-respCh:
		return DecodeResponse(b)
	}
}

func (t *MemoryTransport) invoke(ctx context.Context, nodeID string, h Handler, req []byte) []byte {
	if d, ok := t.delay.Load(nodeID); ok {
		select {
		case <-ctx.Done():
			return EncodeResponse(Reply{}, ctx.Err())
		case <-time.After(d):
		}
	}

	f, err := DecodeRequest(req)
	if err != nil {
		return EncodeResponse(Reply{}, err)
	}
	r, err := h.Handle(ctx, f.Cmd, f.Args)
	if err != nil {
		t.log.Debug("handler failed", slog.String("node", nodeID), slog.String("cmd", f.Cmd), slog.Any("error", err))
	}
	return EncodeResponse(r, err)
}

func (t *MemoryTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.endpoints.Clear()
	t.log.Debug("closed")
	return nil
}

type memSubscription struct {
	t      *MemoryTransport
	log    *slog.Logger
	nodeID string
	ep     *memEndpoint
	once   sync.Once
}

func (s *memSubscription) Unsubscribe() error {
	s.once.Do(func() {
		// only remove our own endpoint, a later Serve may have replaced it
		s.t.endpoints.Compute(s.nodeID, func(old *memEndpoint, loaded bool) (*memEndpoint, bool) {
			return old, !loaded || old.id == s.ep.id
		})
		s.log.Debug("unsubscribed")
	})
	return nil
}

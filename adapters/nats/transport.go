package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/slotr/core/cluster"
	"github.com/codewandler/slotr/core/topology"
)

type TransportConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix for node subjects, e.g. "slotr" -> slotr.node.<id>
}

// Transport carries commands over NATS request/reply. Every node listens on
// its own subject; frames are the JSON frames of package cluster.
type Transport struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	log     *slog.Logger
	prefix  string

	mu   sync.Mutex
	subs map[*natsgo.Subscription]struct{}

	closed atomic.Bool
}

func NewTransport(cfg TransportConfig) (*Transport, error) {
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, err
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "slotr"
	}

	return &Transport{
		nc:      nc,
		closeNc: closeNc,
		log:     log.With(slog.String("transport", "nats")),
		prefix:  prefix,
		subs:    make(map[*natsgo.Subscription]struct{}),
	}, nil
}

// Subject returns the subject a node listens on.
func (t *Transport) Subject(nodeID string) string {
	return t.prefix + ".node." + nodeID
}

func (t *Transport) Execute(ctx context.Context, node *topology.Node, cmd string, args [][]byte) (cluster.Reply, error) {
	if t.closed.Load() {
		return cluster.Reply{}, cluster.ErrTransportClosed
	}

	payload, err := cluster.EncodeRequest(cmd, args)
	if err != nil {
		return cluster.Reply{}, fmt.Errorf("encode request: %w", err)
	}

	msg, err := t.nc.RequestWithContext(ctx, t.Subject(node.ID), payload)
	switch {
	case errors.Is(err, natsgo.ErrNoResponders):
		return cluster.Reply{}, fmt.Errorf("%w: no responders on %s", cluster.ErrNodeUnreachable, t.Subject(node.ID))
	case errors.Is(err, natsgo.ErrConnectionClosed):
		return cluster.Reply{}, cluster.ErrTransportClosed
	case err != nil:
		return cluster.Reply{}, fmt.Errorf("nats: request: %w", err)
	}
	return cluster.DecodeResponse(msg.Data)
}

// Serve answers commands for nodeID with h until the subscription is removed
// or ctx is done.
func (t *Transport) Serve(ctx context.Context, nodeID string, h cluster.Handler) (cluster.Subscription, error) {
	if t.closed.Load() {
		return nil, cluster.ErrTransportClosed
	}
	subj := t.Subject(nodeID)
	log := t.log.With(slog.String("node", nodeID))

	sub, err := t.nc.Subscribe(subj, func(msg *natsgo.Msg) {
		var resp []byte
		f, err := cluster.DecodeRequest(msg.Data)
		if err != nil {
			log.Error("failed to decode request", slog.Any("error", err))
			resp = cluster.EncodeResponse(cluster.Reply{}, err)
		} else {
			resp = cluster.EncodeResponse(h.Handle(ctx, f.Cmd, f.Args))
		}

		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(resp); err != nil {
			log.Error("failed to publish reply", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe %s: %w", subj, err)
	}
	log.Debug("serving", slog.String("subject", subj))

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	s := &subscription{sub: sub, t: t}
	context.AfterFunc(ctx, func() {
		_ = s.Unsubscribe()
	})
	return s, nil
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	for s := range t.subs {
		_ = s.Unsubscribe()
	}
	t.subs = map[*natsgo.Subscription]struct{}{}
	t.mu.Unlock()
	if t.nc != nil {
		_ = t.nc.Flush()
		t.closeNc()
	}
	return nil
}

type subscription struct {
	sub  *natsgo.Subscription
	t    *Transport
	once sync.Once
}

func (s *subscription) Unsubscribe() (err error) {
	s.once.Do(func() {
		s.t.mu.Lock()
		delete(s.t.subs, s.sub)
		s.t.mu.Unlock()
		if s.sub.IsValid() {
			err = s.sub.Unsubscribe()
		}
	})
	return err
}

var _ cluster.Transport = &Transport{}

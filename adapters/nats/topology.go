package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codewandler/slotr/core/topology"
)

const topologyKey = "topology"

type TopologyStoreConfig struct {
	Connect Connector
	Bucket  string // Bucket defaults to "slotr-topology"
	Log     *slog.Logger
}

// TopologyStore publishes cluster topologies to a JetStream bucket and serves
// them back as a [topology.Source].
type TopologyStore struct {
	kv  *KvStore[topology.Description]
	log *slog.Logger
}

func NewTopologyStore(ctx context.Context, cfg TopologyStoreConfig) (*TopologyStore, error) {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "slotr-topology"
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	kv, err := NewKvStore[topology.Description](ctx, KvConfig{
		Connect: cfg.Connect,
		Bucket:  bucket,
		History: 5,
	})
	if err != nil {
		return nil, err
	}
	return &TopologyStore{kv: kv, log: log.With(slog.String("bucket", bucket))}, nil
}

func (s *TopologyStore) Publish(ctx context.Context, t *topology.Topology) error {
	rev, err := s.kv.Set(ctx, topologyKey, t.Description())
	if err != nil {
		return fmt.Errorf("publish topology: %w", err)
	}
	s.log.Info("topology published", slog.Uint64("epoch", t.Epoch()), slog.Uint64("revision", rev))
	return nil
}

func (s *TopologyStore) Fetch(ctx context.Context) (*topology.Topology, error) {
	d, err := s.kv.Get(ctx, topologyKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: nothing published", topology.ErrTopologyUnavailable)
		}
		return nil, fmt.Errorf("%w: %w", topology.ErrTopologyUnavailable, err)
	}
	return d.Build()
}

// Watch installs every published topology into h until ctx is done.
// Invalid descriptions are logged and skipped.
func (s *TopologyStore) Watch(ctx context.Context, h *topology.Holder) error {
	return s.kv.Watch(ctx, topologyKey, func(d topology.Description, rev uint64) {
		t, err := d.Build()
		if err != nil {
			s.log.Warn("ignoring invalid topology", slog.Uint64("revision", rev), slog.Any("error", err))
			return
		}
		h.Set(t)
		s.log.Debug("topology updated", slog.Uint64("revision", rev), slog.String("fingerprint", t.Fingerprint()))
	}, func(err error) {
		s.log.Warn("topology watch", slog.Any("error", err))
	})
}

func (s *TopologyStore) Close() { s.kv.Close() }

var _ topology.Source = &TopologyStore{}

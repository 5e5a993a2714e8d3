package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/codewandler/slotr/adapters/nats"
	"github.com/codewandler/slotr/adapters/zookeeper"
	"github.com/codewandler/slotr/core/cluster"
	"github.com/codewandler/slotr/core/topology"
)

// closers collects cleanup funcs run in reverse order.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func connector() nats.Connector {
	return nats.ReuseConnection(nats.ConnectURL(viper.GetString("nats-url")))
}

func newTransport(connect nats.Connector) (*nats.Transport, error) {
	return nats.NewTransport(nats.TransportConfig{
		Connect:       connect,
		Log:           slog.Default(),
		SubjectPrefix: viper.GetString("subject-prefix"),
	})
}

// topologySource returns the configured topology sources, tried in order:
// file, ZooKeeper, JetStream KV.
func topologySource(ctx context.Context, connect nats.Connector, cl *closers) (topology.Source, error) {
	var sources []topology.Source

	if path := viper.GetString("topology-file"); path != "" {
		sources = append(sources, topology.File(path))
	}
	if servers := viper.GetStringSlice("zk-servers"); len(servers) > 0 {
		zk, err := zookeeper.Connect(zookeeper.Config{
			Servers: servers,
			Path:    viper.GetString("zk-path"),
			Log:     slog.Default(),
		})
		if err != nil {
			return nil, err
		}
		cl.add(func() { _ = zk.Close() })
		sources = append(sources, zk)
	}
	if bucket := viper.GetString("topology-bucket"); bucket != "" {
		store, err := nats.NewTopologyStore(ctx, nats.TopologyStoreConfig{
			Connect: connect,
			Bucket:  bucket,
			Log:     slog.Default(),
		})
		if err != nil {
			return nil, err
		}
		cl.add(store.Close)
		sources = append(sources, store)
	}

	switch len(sources) {
	case 0:
		return nil, errors.New("no topology source: set --topology-file, --zk-servers or --topology-bucket")
	case 1:
		return sources[0], nil
	default:
		return topology.FirstOf(sources...), nil
	}
}

// newClient connects a cluster client over NATS. The returned closers must be
// closed by the caller, also on error.
func newClient(ctx context.Context) (*cluster.Client, closers, error) {
	var cl closers
	connect := connector()

	src, err := topologySource(ctx, connect, &cl)
	if err != nil {
		return nil, cl, err
	}
	tr, err := newTransport(connect)
	if err != nil {
		return nil, cl, err
	}
	c, err := cluster.NewClient(cluster.ClientOptions{
		Transport: tr,
		Source:    src,
		Log:       slog.Default(),
	})
	if err != nil {
		_ = tr.Close()
		return nil, cl, err
	}
	cl.add(func() { _ = c.Close() })
	return c, cl, nil
}

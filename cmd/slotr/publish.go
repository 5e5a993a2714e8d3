package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/codewandler/slotr/adapters/nats"
	"github.com/codewandler/slotr/adapters/zookeeper"
	"github.com/codewandler/slotr/core/topology"
)

// publishTopology copies the topology file to the configured shared sources.
func publishTopology(ctx context.Context, connect nats.Connector) error {
	path := viper.GetString("topology-file")
	if path == "" {
		return errors.New("--publish needs --topology-file")
	}
	t, err := topology.LoadFile(path)
	if err != nil {
		return err
	}

	published := false
	if bucket := viper.GetString("topology-bucket"); bucket != "" {
		store, err := nats.NewTopologyStore(ctx, nats.TopologyStoreConfig{Connect: connect, Bucket: bucket, Log: slog.Default()})
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Publish(ctx, t); err != nil {
			return err
		}
		published = true
	}
	if servers := viper.GetStringSlice("zk-servers"); len(servers) > 0 {
		zk, err := zookeeper.Connect(zookeeper.Config{Servers: servers, Path: viper.GetString("zk-path"), Log: slog.Default()})
		if err != nil {
			return err
		}
		defer func() { _ = zk.Close() }()
		if err := zk.Publish(ctx, t); err != nil {
			return err
		}
		published = true
	}
	if !published {
		return errors.New("--publish needs --topology-bucket or --zk-servers")
	}
	return nil
}

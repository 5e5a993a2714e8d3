package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codewandler/slotr/adapters/api"
	"github.com/codewandler/slotr/adapters/pebble"
	promadapter "github.com/codewandler/slotr/adapters/prometheus"
	"github.com/codewandler/slotr/core/cluster"
	"github.com/codewandler/slotr/core/topology"
	"github.com/codewandler/slotr/ports/kv"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run storage nodes over NATS",
	Long: `Run one or more storage nodes answering commands on their NATS subjects.
Nodes reject keys of slots they do not serve with MOVED, following the topology
from the configured source.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringSlice("node-id", nil, "ids of the nodes to serve, as named in the topology")
	f.String("store", "memory", "node storage (memory, pebble)")
	f.String("data-dir", "data", "directory of the pebble stores, one per node")
	f.Duration("refresh-interval", 30*time.Second, "topology refresh interval")
	f.String("metrics-addr", "", "address serving /metrics, disabled if empty")
	f.String("api-addr", "", "address serving the HTTP API, disabled if empty")
	f.Bool("publish", false, "publish the topology file to the topology bucket on start")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := slog.Default()
	nodeIDs := viper.GetStringSlice("node-id")
	if len(nodeIDs) == 0 {
		return errors.New("at least one --node-id is required")
	}

	var cl closers
	defer cl.close()

	connect := connector()
	if viper.GetBool("publish") {
		if err := publishTopology(ctx, connect); err != nil {
			return err
		}
	}

	src, err := topologySource(ctx, connect, &cl)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := promadapter.NewClusterMetrics(reg)

	holder := topology.NewHolder(topology.HolderOptions{
		Source: src,
		Log:    log,
		OnRefresh: func(t *topology.Topology, err error) {
			metrics.TopologyRefreshed(err == nil)
			if t != nil {
				metrics.TopologyPrimaries(len(t.Primaries()))
			}
		},
	})
	if _, err := holder.Refresh(ctx); err != nil {
		return err
	}
	go holder.Run(ctx, viper.GetDuration("refresh-interval"))

	tr, err := newTransport(connect)
	if err != nil {
		return err
	}
	cl.add(func() { _ = tr.Close() })

	for _, id := range nodeIDs {
		if _, err := holder.Current().Node(id); err != nil {
			return err
		}
		store, err := openStore(id, &cl)
		if err != nil {
			return err
		}
		node := cluster.NewNode(cluster.NodeOptions{
			Log:       log.With(slog.String("node", id)),
			NodeID:    id,
			Transport: tr,
			Store:     store,
			Topology:  holder.Current,
		})
		if err := node.Run(ctx); err != nil {
			return err
		}
	}

	if addr := viper.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		serveHTTP(ctx, "metrics", addr, mux, &cl)
	}

	if addr := viper.GetString("api-addr"); addr != "" {
		c, err := cluster.NewClient(cluster.ClientOptions{
			Transport: tr,
			Holder:    holder,
			Metrics:   metrics,
			Log:       log,
		})
		if err != nil {
			return err
		}
		serveHTTP(ctx, "api", addr, api.NewRouter(c, log), &cl)
	}

	log.Info("serving", slog.Any("nodes", nodeIDs), slog.String("topology", holder.Current().Fingerprint()))
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func openStore(nodeID string, cl *closers) (kv.Store, error) {
	switch s := viper.GetString("store"); s {
	case "memory":
		return kv.NewMemStore(), nil
	case "pebble":
		store, err := pebble.Open(filepath.Join(viper.GetString("data-dir"), nodeID), pebble.Options{})
		if err != nil {
			return nil, err
		}
		cl.add(func() { _ = store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("invalid store %q (expected memory or pebble)", s)
	}
}

func serveHTTP(ctx context.Context, name, addr string, h http.Handler, cl *closers) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", slog.String("server", name), slog.Any("error", err))
		}
	}()
	cl.add(func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	slog.Info("http server started", slog.String("server", name), slog.String("addr", addr))
}

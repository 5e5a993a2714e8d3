package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/codewandler/slotr/adapters/nats"
	"github.com/codewandler/slotr/core/cluster"
	"github.com/codewandler/slotr/core/topology"
	"github.com/codewandler/slotr/ports/kv"
)

// === Config ===

// NOTE: run nats: docker run --net=host nats:latest -js

var (
	logLevel    = slog.LevelInfo
	N           = getEnvInt("N", 50_000)
	batchSize   = getEnvInt("B", 100)
	workers     = getEnvInt("W", runtime.NumCPU())
	backendType = getEnv("BACKEND", "memory")
	replicaRead = getEnvBool("REPLICA_READS", false)
)

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	return v == "1" || strings.ToLower(v) == "true"
}

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

//

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	fmt.Printf("Backend: %s\n", backendType)
	fmt.Printf("   Keys: %d (batches of %d, %d workers)\n", N, batchSize, workers)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	tr, err := createTransport(log)
	if err != nil {
		log.Error("failed to create transport", slog.Any("error", err))
		os.Exit(1)
	}
	defer tr.Close()

	topo := topology.MustNew(topology.ThreePrimaries()...)
	stores := map[string]kv.Store{}
	for _, n := range topo.Nodes() {
		owner := n.ID
		if !n.IsPrimary() {
			owner = n.ReplicaOf
		}
		if stores[owner] == nil {
			stores[owner] = kv.NewMemStore()
		}
		node := cluster.NewNode(cluster.NodeOptions{
			NodeID:    n.ID,
			Transport: tr,
			Store:     stores[owner],
			Topology:  func() *topology.Topology { return topo },
			Log:       log,
		})
		if err := node.Run(ctx); err != nil {
			log.Error("failed to start node", slog.Any("error", err))
			os.Exit(1)
		}
	}

	readPref := cluster.ReadPrimary
	if replicaRead {
		readPref = cluster.ReadReplica
	}
	c, err := cluster.NewClient(cluster.ClientOptions{
		Transport:      tr,
		Initial:        topo,
		Log:            log,
		ReadPreference: readPref,
	})
	if err != nil {
		log.Error("failed to create client", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("==================================")
	log.Info("Starting ...")

	writes := run(ctx, "MSET", func(ctx context.Context, keys [][]byte) error {
		values := make([][]byte, len(keys))
		for i, k := range keys {
			values[i] = append([]byte("v:"), k...)
		}
		_, err := c.ExecuteMultiKey(ctx, "MSET", keys, values...)
		return err
	})
	reads := run(ctx, "MGET", func(ctx context.Context, keys [][]byte) error {
		r, err := c.ExecuteMultiKey(ctx, "MGET", keys)
		if err != nil {
			return err
		}
		for i, v := range r.Array {
			if v.IsNil() {
				return fmt.Errorf("key %s missing", keys[i])
			}
		}
		return nil
	})

	size, err := c.ExecuteClusterWide(ctx, "DBSIZE")
	if err != nil {
		log.Error("DBSIZE failed", slog.Any("error", err))
		os.Exit(1)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("       dbsize: %d\n", size.Int)
	fmt.Printf("avg. writes/s: %d\n", int(float64(N)/writes.Seconds()))
	fmt.Printf(" avg. reads/s: %d\n", int(float64(N)/reads.Seconds()))
	fmt.Printf("          mem: %d MiB\n", m.Alloc/1024/1024)
}

// run sends N keys in batches through fn and returns the total duration.
func run(ctx context.Context, name string, fn func(ctx context.Context, keys [][]byte) error) time.Duration {
	var failed atomic.Int64
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)

	startAt := time.Now()
	for start := 0; start < N; start += batchSize {
		keys := make([][]byte, 0, batchSize)
		for i := start; i < start+batchSize && i < N; i++ {
			keys = append(keys, []byte(fmt.Sprintf("key:%d", i)))
		}
		p.Go(func(ctx context.Context) error {
			if err := fn(ctx, keys); err != nil {
				failed.Add(1)
				return err
			}
			return nil
		})
	}
	err := p.Wait()
	took := time.Since(startAt)

	fmt.Printf(" | %s | %6d ms | %d failed batches |\n", name, took.Milliseconds(), failed.Load())
	if err != nil {
		fmt.Printf("   first error: %v\n", err)
	}
	return took
}

func createTransport(log *slog.Logger) (cluster.Transport, error) {
	switch backendType {
	case "memory":
		return cluster.NewInMemoryTransport(), nil
	case "nats":
		tr, err := nats.NewTransport(nats.TransportConfig{
			Connect:       nats.ConnectDefault(),
			Log:           log,
			SubjectPrefix: "loadtest",
		})
		if err != nil {
			return nil, err
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backendType)
	}
}

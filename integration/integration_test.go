package integration

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/slotr/adapters/nats"
	promadapter "github.com/codewandler/slotr/adapters/prometheus"
	"github.com/codewandler/slotr/core/cluster"
	"github.com/codewandler/slotr/core/topology"
	"github.com/codewandler/slotr/ports/kv"
)

func bs(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

// resharded moves slots 10923-12999 from c to a.
func resharded() *topology.Topology {
	nodes := topology.ThreePrimaries()
	for i := range nodes {
		switch nodes[i].ID {
		case "a":
			nodes[i].Slots = append(nodes[i].Slots, topology.Range(10923, 12999))
		case "c":
			nodes[i].Slots = []topology.SlotRange{topology.Range(13000, 16383)}
		}
	}
	t, err := topology.Description{Epoch: 2, Nodes: nodes}.Build()
	if err != nil {
		panic(err)
	}
	return t
}

// startCluster serves every node of topo on tr. Nodes follow the returned
// pointer.
func startCluster(t *testing.T, tr cluster.ServerTransport, topo *topology.Topology) *atomic.Pointer[topology.Topology] {
	var current atomic.Pointer[topology.Topology]
	current.Store(topo)

	stores := map[string]kv.Store{}
	for _, p := range topo.Primaries() {
		stores[p.ID] = kv.NewMemStore()
	}
	for _, n := range topo.Nodes() {
		store := stores[n.ID]
		if !n.IsPrimary() {
			store = stores[n.ReplicaOf]
		}
		node := cluster.NewNode(cluster.NodeOptions{
			NodeID:    n.ID,
			Transport: tr,
			Store:     store,
			Topology:  current.Load,
		})
		require.NoError(t, node.Run(t.Context()))
	}
	return &current
}

func runScenario(t *testing.T, server cluster.ServerTransport, client cluster.ClientTransport, down func(id string)) {
	ctx := t.Context()
	topo := topology.MustNew(topology.ThreePrimaries()...)
	current := startCluster(t, server, topo)

	reg := prometheus.NewRegistry()
	c, err := cluster.NewClient(cluster.ClientOptions{
		Transport: client,
		Source:    cluster.NewTransportSource(cluster.TransportSourceOptions{Transport: client, Seeds: topo.Nodes()}),
		Metrics:   promadapter.NewClusterMetrics(reg),
	})
	require.NoError(t, err)

	// first use fetches the topology from the nodes
	r, err := c.ExecuteMultiKey(ctx, "MSET", bs("foo", "bar", "{foo}.x", "baz"), bs("1", "2", "3", "4")...)
	require.NoError(t, err)
	require.Equal(t, cluster.OKReply(), r)
	require.Equal(t, topo.Fingerprint(), c.Topology().Fingerprint())

	r, err = c.ExecuteMultiKey(ctx, "MGET", bs("baz", "foo", "nope", "bar", "{foo}.x"))
	require.NoError(t, err)
	require.Equal(t, cluster.ArrayReply(
		cluster.BulkString("4"),
		cluster.BulkString("1"),
		cluster.NilReply(),
		cluster.BulkString("2"),
		cluster.BulkString("3"),
	), r)

	r, err = c.ExecuteClusterWide(ctx, "DBSIZE")
	require.NoError(t, err)
	require.Equal(t, cluster.IntReply(4), r)

	r, err = c.ExecuteClusterWide(ctx, "KEYS", []byte("*"))
	require.NoError(t, err)
	require.Len(t, r.Array, 4)

	_, err = c.ExecuteMultiKey(ctx, "RENAME", bs("foo", "bar"))
	require.ErrorIs(t, err, cluster.ErrCrossSlot)

	r, err = c.ExecuteMultiKey(ctx, "RENAME", bs("{foo}.x", "{foo}.y"))
	require.NoError(t, err)
	require.Equal(t, cluster.OKReply(), r)

	// the cluster reshards behind the client's back
	next := resharded()
	current.Store(next)

	_, err = c.ExecuteSingleKey(ctx, "GET", []byte("foo"))
	var moved *cluster.MovedError
	require.ErrorAs(t, err, &moved)
	require.Equal(t, "127.0.0.1:7000", moved.Addr)

	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, next.Fingerprint(), c.Topology().Fingerprint())
	require.Equal(t, uint64(2), c.Topology().Epoch())

	n, err := c.Route(ctx, []byte("foo"))
	require.NoError(t, err)
	require.Equal(t, "a", n.ID)

	_, err = c.ExecuteSingleKey(ctx, "SET", []byte("foo"), []byte("moved"))
	require.NoError(t, err)

	if down != nil {
		down("b")
		_, err = c.ExecuteClusterWide(ctx, "DBSIZE")
		var partial *cluster.PartialFailure
		require.True(t, errors.As(err, &partial))
		require.Equal(t, []string{"b"}, partial.Nodes())
	}

	count, err := testutil.GatherAndCount(reg, "slotr_commands_total", "slotr_fanout_nodes", "slotr_crossslot_rejected_total")
	require.NoError(t, err)
	require.Positive(t, count)
	require.NoError(t, c.Close())
}

func TestIntegration_InMemory(t *testing.T) {
	tr := cluster.CreateInMemoryTransport(t)
	runScenario(t, tr, tr, tr.Down)
}

func TestIntegration_NATS(t *testing.T) {
	connect := nats.ReuseConnection(nats.NewTestContainer(t))

	newTransport := func() *nats.Transport {
		tr, err := nats.NewTransport(nats.TransportConfig{Connect: connect, SubjectPrefix: "it"})
		require.NoError(t, err)
		return tr
	}
	server := newTransport()
	t.Cleanup(func() { _ = server.Close() })

	runScenario(t, server, newTransport(), nil)
}

func TestIntegration_ContextCanceled(t *testing.T) {
	tr := cluster.CreateInMemoryTransport(t)
	topo := topology.MustNew(topology.ThreePrimaries()...)
	startCluster(t, tr, topo)
	c := cluster.CreateTestClient(t, tr, topo)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := c.ExecuteMultiKey(ctx, "MGET", bs("foo", "bar"))
	require.ErrorIs(t, err, context.Canceled)
}

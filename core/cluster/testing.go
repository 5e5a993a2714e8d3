package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/slotr/core/topology"
	"github.com/codewandler/slotr/ports/kv"
)

func CreateInMemoryTransport(t *testing.T) *MemoryTransport {
	tr := NewInMemoryTransport()
	t.Cleanup(func() {
		require.NoError(t, tr.Close())
	})
	return tr
}

// CreateTestCluster starts one storage node per node of topo on tr. Replicas
// share the store of their primary. The returned map holds the stores by
// node id.
func CreateTestCluster(t *testing.T, tr ServerTransport, topo *topology.Topology) map[string]kv.Store {
	stores := make(map[string]kv.Store)
	for _, p := range topo.Primaries() {
		stores[p.ID] = kv.NewMemStore()
	}

	current := func() *topology.Topology { return topo }
	for _, n := range topo.Nodes() {
		store := stores[n.ID]
		if !n.IsPrimary() {
			store = stores[n.ReplicaOf]
			stores[n.ID] = store
		}
		node := NewNode(NodeOptions{
			NodeID:    n.ID,
			Transport: tr,
			Store:     store,
			Topology:  current,
		})
		require.NoError(t, node.Run(t.Context()))
	}
	return stores
}

// CreateTestClient returns a client over tr starting from topo.
func CreateTestClient(t *testing.T, tr ClientTransport, topo *topology.Topology, opts ...func(*ClientOptions)) *Client {
	o := ClientOptions{Transport: tr, Initial: topo}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := NewClient(o)
	require.NoError(t, err)
	return c
}

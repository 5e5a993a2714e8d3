package cluster

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/slotr/core/slot"
	"github.com/codewandler/slotr/core/topology"
)

// keysOn returns n keys whose slots belong to ownerID.
func keysOn(t *testing.T, topo *topology.Topology, ownerID string, n int) [][]byte {
	t.Helper()
	var out [][]byte
	for i := 0; len(out) < n && i < 100000; i++ {
		k := []byte(fmt.Sprintf("key:%d", i))
		owner, err := topo.NodeForKey(k)
		if err == nil && owner.ID == ownerID {
			out = append(out, k)
		}
	}
	require.Len(t, out, n)
	return out
}

// keyInSlots returns a key whose slot lies in r.
func keyInSlots(t *testing.T, r topology.SlotRange) []byte {
	t.Helper()
	for i := 0; i < 100000; i++ {
		k := []byte(fmt.Sprintf("key:%d", i))
		if r.Contains(slot.Of(k)) {
			return k
		}
	}
	t.Fatal("no key found")
	return nil
}

func bs(keys ...string) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

// recordingTransport records every call before passing it on.
type recordingTransport struct {
	ClientTransport

	mu     sync.Mutex
	calls  []string
	onCall func(node *topology.Node, cmd string)
}

func (r *recordingTransport) Execute(ctx context.Context, node *topology.Node, cmd string, args [][]byte) (Reply, error) {
	r.mu.Lock()
	r.calls = append(r.calls, node.ID+" "+cmd)
	onCall := r.onCall
	r.mu.Unlock()
	if onCall != nil {
		onCall(node, cmd)
	}
	return r.ClientTransport.Execute(ctx, node, cmd, args)
}

func (r *recordingTransport) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type recordingMetrics struct {
	nopMetrics

	mu         sync.Mutex
	fanOut     map[string]int
	completed  map[string]int
	nodeErrors map[string]int
	crossSlot  int
	notCovered int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		fanOut:     map[string]int{},
		completed:  map[string]int{},
		nodeErrors: map[string]int{},
	}
}

func (m *recordingMetrics) FanOut(cmd string, nodes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fanOut[cmd] = nodes
}

func (m *recordingMetrics) CommandCompleted(cmd, route string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[fmt.Sprintf("%s/%s/%t", cmd, route, success)]++
}

func (m *recordingMetrics) NodeError(nodeID, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodeErrors[nodeID+"/"+kind]++
}

func (m *recordingMetrics) CrossSlotRejected(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crossSlot++
}

func (m *recordingMetrics) SlotNotCovered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notCovered++
}

type testEnv struct {
	topo    *topology.Topology
	tr      *MemoryTransport
	rec     *recordingTransport
	metrics *recordingMetrics
	client  *Client
}

func newTestEnv(t *testing.T, opts ...func(*ClientOptions)) *testEnv {
	topo := topology.MustNew(topology.ThreePrimaries()...)
	tr := CreateInMemoryTransport(t)
	CreateTestCluster(t, tr, topo)

	env := &testEnv{
		topo:    topo,
		tr:      tr,
		rec:     &recordingTransport{ClientTransport: tr},
		metrics: newRecordingMetrics(),
	}
	env.client = CreateTestClient(t, env.rec, topo, append([]func(*ClientOptions){func(o *ClientOptions) {
		o.Metrics = env.metrics
	}}, opts...)...)
	return env
}

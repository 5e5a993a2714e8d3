package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/slotr/core/command"
	"github.com/codewandler/slotr/core/slot"
	"github.com/codewandler/slotr/core/topology"
)

func TestClient_SingleKey_SetGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	r, err := env.client.ExecuteSingleKey(ctx, "SET", []byte("foo"), []byte("1"))
	require.NoError(t, err)
	require.Equal(t, OKReply(), r)

	r, err = env.client.ExecuteSingleKey(ctx, "get", []byte("foo"))
	require.NoError(t, err)
	require.Equal(t, BulkString("1"), r)

	r, err = env.client.ExecuteSingleKey(ctx, "GET", []byte("missing"))
	require.NoError(t, err)
	require.True(t, r.IsNil())

	// foo lives in slot 12182, owned by c
	require.Equal(t, []string{"c SET", "c GET"}, env.rec.Calls()[:2])
}

func TestClient_Route(t *testing.T) {
	env := newTestEnv(t)

	n, err := env.client.Route(t.Context(), []byte("foo"))
	require.NoError(t, err)
	require.Equal(t, "c", n.ID)

	n, err = env.client.Route(t.Context(), []byte("bar"))
	require.NoError(t, err)
	require.Equal(t, "a", n.ID)

	require.Equal(t, uint16(12182), env.client.KeySlot([]byte("{foo}.bar")))

	n, err = env.client.Node(t.Context(), "b1")
	require.NoError(t, err)
	require.Equal(t, "b", n.ReplicaOf)

	_, err = env.client.Node(t.Context(), "zz")
	require.ErrorIs(t, err, topology.ErrNodeNotFound)
}

func TestClient_Split_MGET(t *testing.T) {
	env := newTestEnv(t)
	spec, _ := command.Default().Lookup("MGET")

	subs, err := env.client.split(env.topo, spec, bs("foo", "bar"), nil)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	require.Equal(t, "c", subs[0].node.ID)
	require.Equal(t, []int{0}, subs[0].indices)
	require.Equal(t, bs("foo"), subs[0].args)

	require.Equal(t, "a", subs[1].node.ID)
	require.Equal(t, []int{1}, subs[1].indices)
	require.Equal(t, bs("bar"), subs[1].args)
}

func TestClient_Split_HashTagColocates(t *testing.T) {
	env := newTestEnv(t)
	spec, _ := command.Default().Lookup("MGET")

	subs, err := env.client.split(env.topo, spec, bs("foo", "{foo}.bar"), nil)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "c", subs[0].node.ID)
	require.Equal(t, []int{0, 1}, subs[0].indices)
}

func TestClient_Split_ValuesFollowKeys(t *testing.T) {
	env := newTestEnv(t)
	spec, _ := command.Default().Lookup("MSET")

	subs, err := env.client.split(env.topo, spec, bs("foo", "bar", "{foo}x"), bs("1", "2", "3"))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, bs("foo", "1", "{foo}x", "3"), subs[0].args)
	require.Equal(t, bs("bar", "2"), subs[1].args)
}

func TestClient_MGET_MergesInKeyOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	_, err := env.client.ExecuteMultiKey(ctx, "MSET", bs("foo", "bar"), bs("vfoo", "vbar")...)
	require.NoError(t, err)

	r, err := env.client.ExecuteMultiKey(ctx, "MGET", bs("foo", "bar", "nope"))
	require.NoError(t, err)
	require.Equal(t, KindArray, r.Kind)
	require.Len(t, r.Array, 3)
	require.Equal(t, BulkString("vfoo"), r.Array[0])
	require.Equal(t, BulkString("vbar"), r.Array[1])
	require.True(t, r.Array[2].IsNil())

	require.Equal(t, 2, env.metrics.fanOut["MGET"])
}

func TestClient_MGET_OrderIndependentOfCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	var keys [][]byte
	for _, id := range []string{"a", "b", "c"} {
		keys = append(keys, keysOn(t, env.topo, id, 4)...)
	}
	// interleave owners
	keys[0], keys[5], keys[10] = keys[10], keys[0], keys[5]

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = []byte("v-" + string(k))
	}
	_, err := env.client.ExecuteMultiKey(ctx, "MSET", keys, values...)
	require.NoError(t, err)

	env.tr.Delay("a", 30*time.Millisecond)
	env.tr.Delay("b", 10*time.Millisecond)

	r, err := env.client.ExecuteMultiKey(ctx, "MGET", keys)
	require.NoError(t, err)
	require.Len(t, r.Array, len(keys))
	for i := range keys {
		require.Equal(t, BulkReply(values[i]), r.Array[i], "position %d", i)
	}
}

func TestClient_MSET_ValuesRequired(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.ExecuteMultiKey(t.Context(), "MSET", bs("foo", "bar"), bs("1")...)
	require.ErrorIs(t, err, ErrInvalidArgs)

	_, err = env.client.ExecuteMultiKey(t.Context(), "MGET", bs("foo"), bs("extra")...)
	require.ErrorIs(t, err, ErrInvalidArgs)

	_, err = env.client.ExecuteMultiKey(t.Context(), "MGET", nil)
	require.ErrorIs(t, err, ErrNoKeys)

	require.Empty(t, env.rec.Calls())
}

func TestClient_DEL_Sums(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	a, b, c := keysOn(t, env.topo, "a", 2), keysOn(t, env.topo, "b", 1), keysOn(t, env.topo, "c", 1)
	keys := [][]byte{a[0], a[1], b[0], c[0]}
	_, err := env.client.ExecuteMultiKey(ctx, "MSET", keys, bs("1", "2", "3", "4")...)
	require.NoError(t, err)

	r, err := env.client.ExecuteMultiKey(ctx, "EXISTS", [][]byte{a[0], a[1], b[0], c[0], []byte("missing")})
	require.NoError(t, err)
	require.Equal(t, IntReply(4), r)

	r, err = env.client.ExecuteMultiKey(ctx, "DEL", [][]byte{a[0], a[1], b[0], []byte("missing")})
	require.NoError(t, err)
	require.Equal(t, IntReply(3), r)

	r, err = env.client.ExecuteClusterWide(ctx, "DBSIZE")
	require.NoError(t, err)
	require.Equal(t, IntReply(1), r)
}

func TestClient_SingleKeyThroughMultiKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.ExecuteMultiKey(t.Context(), "SET", bs("foo"), bs("x")...)
	require.NoError(t, err)

	_, err = env.client.ExecuteMultiKey(t.Context(), "GET", bs("foo", "bar"))
	require.ErrorIs(t, err, ErrInvalidArgs)
}

func TestClient_CrossSlot_FailsBeforeDispatch(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.ExecuteMultiKey(t.Context(), "PFCOUNT", bs("foo", "bar"))
	require.ErrorIs(t, err, ErrCrossSlot)

	var cross *CrossSlotError
	require.True(t, errors.As(err, &cross))
	require.Equal(t, "PFCOUNT", cross.Command)
	require.Equal(t, []string{"foo", "bar"}, cross.Keys)
	require.Equal(t, []uint16{12182, 5061}, cross.Slots)
	require.Contains(t, err.Error(), `"foo"=12182`)

	require.Empty(t, env.rec.Calls())
	require.Equal(t, 1, env.metrics.crossSlot)
	require.Equal(t, 1, env.metrics.completed["PFCOUNT/colocated/false"])
}

func TestClient_Atomic_SameSlotDispatchesOnce(t *testing.T) {
	env := newTestEnv(t)

	// the storage node does not implement PFCOUNT, the call still reaches c
	_, err := env.client.ExecuteMultiKey(t.Context(), "PFCOUNT", bs("{foo}a", "{foo}b"))
	require.ErrorContains(t, err, "unknown command")
	var ne *NodeError
	require.True(t, errors.As(err, &ne))
	require.Equal(t, "c", ne.NodeID)
	require.Equal(t, []string{"c PFCOUNT"}, env.rec.Calls())
}

func TestClient_ExecuteColocated(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	r, err := env.client.ExecuteColocated(ctx, "MSET", bs("{user:1}.name", "{user:1}.mail"), bs("ada", "ada@example.com")...)
	require.NoError(t, err)
	require.Equal(t, OKReply(), r)

	r, err = env.client.ExecuteColocated(ctx, "MGET", bs("{user:1}.name", "{user:1}.mail"))
	require.NoError(t, err)
	require.Equal(t, ArrayReply(BulkString("ada"), BulkString("ada@example.com")), r)
	require.Len(t, env.rec.Calls(), 2)

	_, err = env.client.ExecuteColocated(ctx, "MGET", bs("foo", "bar"))
	require.ErrorIs(t, err, ErrCrossSlot)
	require.Len(t, env.rec.Calls(), 2)
}

func TestClient_MSetNX_SendsKeyValuePairs(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	r, err := env.client.ExecuteMultiKey(ctx, "MSETNX", bs("{u}a", "{u}b"), bs("1", "2")...)
	require.NoError(t, err)
	require.Equal(t, IntReply(1), r)
	require.Equal(t, []string{"c MSETNX"}, env.rec.Calls())

	r, err = env.client.ExecuteMultiKey(ctx, "MGET", bs("{u}a", "{u}b"))
	require.NoError(t, err)
	require.Equal(t, ArrayReply(BulkString("1"), BulkString("2")), r)

	r, err = env.client.ExecuteColocated(ctx, "MSETNX", bs("{u}c", "{u}a"), bs("3", "x")...)
	require.NoError(t, err)
	require.Equal(t, IntReply(0), r)

	r, err = env.client.Do(ctx, "msetnx", bs("{u}c", "{u}d"), bs("3", "4")...)
	require.NoError(t, err)
	require.Equal(t, IntReply(1), r)

	r, err = env.client.ExecuteMultiKey(ctx, "MGET", bs("{u}a", "{u}c", "{u}d"))
	require.NoError(t, err)
	require.Equal(t, ArrayReply(BulkString("1"), BulkString("3"), BulkString("4")), r)

	calls := len(env.rec.Calls())
	_, err = env.client.ExecuteMultiKey(ctx, "MSETNX", bs("{u}e", "{u}f"), bs("1")...)
	require.ErrorIs(t, err, ErrInvalidArgs)
	_, err = env.client.ExecuteMultiKey(ctx, "MSETNX", bs("foo", "bar"), bs("1", "2")...)
	require.ErrorIs(t, err, ErrCrossSlot)
	require.Len(t, env.rec.Calls(), calls)
}

func TestClient_SlotNotCovered_FailsBeforeDispatch(t *testing.T) {
	nodes := topology.ThreePrimaries()
	gapped := topology.MustNew(nodes[0], nodes[2])
	require.False(t, gapped.FullyCovered())

	tr := CreateInMemoryTransport(t)
	CreateTestCluster(t, tr, gapped)
	rec := &recordingTransport{ClientTransport: tr}
	metrics := newRecordingMetrics()
	c := CreateTestClient(t, rec, gapped, func(o *ClientOptions) { o.Metrics = metrics })

	inGap := keyInSlots(t, topology.Range(5461, 10922))

	_, err := c.ExecuteSingleKey(t.Context(), "GET", inGap)
	require.ErrorIs(t, err, topology.ErrSlotNotCovered)
	var snc *SlotNotCoveredError
	require.True(t, errors.As(err, &snc))
	require.Equal(t, slot.Of(inGap), snc.Slot)

	// one uncovered key fails the whole split
	_, err = c.ExecuteMultiKey(t.Context(), "MGET", [][]byte{[]byte("foo"), inGap, []byte("bar")})
	require.ErrorIs(t, err, topology.ErrSlotNotCovered)

	_, err = c.ExecuteClusterWide(t.Context(), "KEYS", []byte("*"))
	require.ErrorIs(t, err, topology.ErrSlotNotCovered)

	require.Empty(t, rec.Calls())
	require.Equal(t, 3, metrics.notCovered)
}

func TestClient_ClusterWide_PartialFailureNamesPrimary(t *testing.T) {
	env := newTestEnv(t)
	env.tr.Down("b")

	_, err := env.client.ExecuteClusterWide(t.Context(), "DBSIZE")
	require.ErrorIs(t, err, ErrPartialFailure)
	require.ErrorIs(t, err, ErrNodeUnreachable)

	var pf *PartialFailure
	require.True(t, errors.As(err, &pf))
	require.Equal(t, []string{"b"}, pf.Nodes())
	require.Equal(t, 3, pf.Total)
	require.Contains(t, err.Error(), "node b (127.0.0.1:7001)")

	// every primary was asked, no replica
	require.ElementsMatch(t, []string{"a DBSIZE", "b DBSIZE", "c DBSIZE"}, env.rec.Calls())
	require.Equal(t, 1, env.metrics.nodeErrors["b/unreachable"])

	env.tr.Up("b")
	r, err := env.client.ExecuteClusterWide(t.Context(), "DBSIZE")
	require.NoError(t, err)
	require.Equal(t, IntReply(0), r)
}

func TestClient_Split_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.tr.Down("a")

	_, err := env.client.ExecuteMultiKey(t.Context(), "MGET", bs("foo", "bar"))
	var pf *PartialFailure
	require.True(t, errors.As(err, &pf))
	require.Equal(t, []string{"a"}, pf.Nodes())
	require.Equal(t, 2, pf.Total)
}

func TestClient_ClusterWide_Merges(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	var keys [][]byte
	for _, id := range []string{"a", "b", "c"} {
		keys = append(keys, keysOn(t, env.topo, id, 2)...)
	}
	values := make([][]byte, len(keys))
	for i := range values {
		values[i] = []byte("x")
	}
	_, err := env.client.ExecuteMultiKey(ctx, "MSET", keys, values...)
	require.NoError(t, err)

	r, err := env.client.ExecuteClusterWide(ctx, "KEYS", []byte("key:*"))
	require.NoError(t, err)
	require.Len(t, r.Array, len(keys))
	var got []string
	for _, item := range r.Array {
		got = append(got, string(item.Bulk))
	}
	var want []string
	for _, k := range keys {
		want = append(want, string(k))
	}
	require.ElementsMatch(t, want, got)

	r, err = env.client.ExecuteClusterWide(ctx, "PING")
	require.NoError(t, err)
	require.Equal(t, StatusReply("PONG"), r)

	r, err = env.client.ExecuteClusterWide(ctx, "FLUSHALL")
	require.NoError(t, err)
	require.Equal(t, OKReply(), r)

	r, err = env.client.ExecuteClusterWide(ctx, "DBSIZE")
	require.NoError(t, err)
	require.Equal(t, IntReply(0), r)
}

func TestClient_Cancellation_DoesNotLeak(t *testing.T) {
	env := newTestEnv(t)
	env.tr.Delay("c", time.Hour)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := env.client.ExecuteMultiKey(ctx, "MGET", bs("foo", "bar"))
	require.Less(t, time.Since(start), 5*time.Second)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	var pf *PartialFailure
	require.True(t, errors.As(err, &pf))
	require.Equal(t, []string{"c"}, pf.Nodes())
}

func TestClient_ClassChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	_, err := env.client.ExecuteSingleKey(ctx, "MGET", []byte("foo"))
	require.ErrorIs(t, err, ErrWrongClass)

	_, err = env.client.ExecuteSingleKey(ctx, "NOPE", []byte("foo"))
	require.ErrorIs(t, err, ErrUnknownCommand)

	_, err = env.client.ExecuteClusterWide(ctx, "GET")
	require.ErrorIs(t, err, ErrWrongClass)

	_, err = env.client.ExecuteMultiKey(ctx, "KEYS", bs("*"))
	require.ErrorIs(t, err, ErrWrongClass)

	require.Empty(t, env.rec.Calls())
}

func TestClient_ExecuteOnNode(t *testing.T) {
	env := newTestEnv(t)

	r, err := env.client.ExecuteOnNode(t.Context(), "b", "cluster", []byte("MYID"))
	require.NoError(t, err)
	require.Equal(t, BulkString("b"), r)
	require.Equal(t, []string{"b CLUSTER"}, env.rec.Calls())

	_, err = env.client.ExecuteOnNode(t.Context(), "nope", "PING")
	require.ErrorIs(t, err, topology.ErrNodeNotFound)
}

func TestClient_ReadReplica(t *testing.T) {
	env := newTestEnv(t, func(o *ClientOptions) { o.ReadPreference = ReadReplica })
	ctx := t.Context()

	_, err := env.client.ExecuteSingleKey(ctx, "SET", []byte("foo"), []byte("1"))
	require.NoError(t, err)

	r, err := env.client.ExecuteSingleKey(ctx, "GET", []byte("foo"))
	require.NoError(t, err)
	require.Equal(t, BulkString("1"), r)

	r, err = env.client.ExecuteMultiKey(ctx, "MGET", bs("foo", "bar"))
	require.NoError(t, err)
	require.Equal(t, BulkString("1"), r.Array[0])

	// writes go to the primary, reads to its replica
	calls := env.rec.Calls()
	require.Equal(t, "c SET", calls[0])
	require.Equal(t, "c1 GET", calls[1])
	require.ElementsMatch(t, []string{"c1 MGET", "a1 MGET"}, calls[2:])

	// cluster-wide commands never target replicas
	_, err = env.client.ExecuteClusterWide(ctx, "DBSIZE")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a DBSIZE", "b DBSIZE", "c DBSIZE"}, env.rec.Calls()[4:])
}

func TestClient_Moved(t *testing.T) {
	tr := CreateInMemoryTransport(t)
	CreateTestCluster(t, tr, topology.MustNew(topology.ThreePrimaries()...))

	// the client believes a owns every slot
	stale := topology.MustNew(topology.Node{ID: "a", Host: "127.0.0.1", Port: 7000, Role: topology.RolePrimary, Slots: []topology.SlotRange{topology.Range(0, 16383)}})
	c := CreateTestClient(t, tr, stale)

	_, err := c.ExecuteSingleKey(t.Context(), "GET", []byte("foo"))
	var moved *MovedError
	require.True(t, errors.As(err, &moved))
	require.Equal(t, uint16(12182), moved.Slot)
	require.Equal(t, "127.0.0.1:7002", moved.Addr)
}

func TestClient_RefreshFailure_KeepsSnapshot(t *testing.T) {
	topo := topology.MustNew(topology.ThreePrimaries()...)
	tr := CreateInMemoryTransport(t)
	CreateTestCluster(t, tr, topo)

	c := CreateTestClient(t, tr, topo, func(o *ClientOptions) {
		o.Source = topology.SourceFunc(func(context.Context) (*topology.Topology, error) {
			return nil, errors.New("all nodes unreachable")
		})
	})

	got, err := c.Refresh(t.Context())
	require.ErrorIs(t, err, topology.ErrTopologyUnavailable)
	require.Same(t, topo, got)
	require.Same(t, topo, c.Topology())

	// routing continues on the stale snapshot
	_, err = c.ExecuteSingleKey(t.Context(), "SET", []byte("foo"), []byte("1"))
	require.NoError(t, err)
}

func TestClient_InFlightCallKeepsSnapshot(t *testing.T) {
	oldTopo := topology.MustNew(topology.ThreePrimaries()...)
	newTopo := topology.MustNew(topology.Node{ID: "a", Host: "127.0.0.1", Port: 7000, Role: topology.RolePrimary, Slots: []topology.SlotRange{topology.Range(0, 16383)}})

	tr := CreateInMemoryTransport(t)
	CreateTestCluster(t, tr, oldTopo)

	started := make(chan struct{})
	var once sync.Once
	rec := &recordingTransport{ClientTransport: tr}
	c := CreateTestClient(t, rec, oldTopo, func(o *ClientOptions) {
		o.Source = topology.Static(newTopo)
	})

	_, err := c.ExecuteMultiKey(t.Context(), "MSET", bs("foo", "bar"), bs("1", "2")...)
	require.NoError(t, err)

	rec.mu.Lock()
	rec.onCall = func(*topology.Node, string) {
		once.Do(func() { close(started) })
	}
	rec.mu.Unlock()
	tr.Delay("c", 50*time.Millisecond)
	tr.Delay("a", 50*time.Millisecond)

	type result struct {
		r   Reply
		err error
	}
	done := make(chan result, 1)
	go func() {
		r, err := c.ExecuteMultiKey(t.Context(), "MGET", bs("foo", "bar"))
		done <- result{r, err}
	}()

	<-started
	got, err := c.Refresh(t.Context())
	require.NoError(t, err)
	require.Same(t, newTopo, got)

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, ArrayReply(BulkString("1"), BulkString("2")), res.r)
	require.Same(t, newTopo, c.Topology())
}

func TestClient_LazyFirstFetch(t *testing.T) {
	topo := topology.MustNew(topology.ThreePrimaries()...)
	tr := CreateInMemoryTransport(t)
	CreateTestCluster(t, tr, topo)

	seed, err := topo.Node("b1")
	require.NoError(t, err)
	c, err := NewClient(ClientOptions{
		Transport: tr,
		Source:    NewTransportSource(TransportSourceOptions{Transport: tr, Seeds: []*topology.Node{seed}}),
	})
	require.NoError(t, err)
	require.Nil(t, c.Topology())

	_, err = c.ExecuteSingleKey(t.Context(), "SET", []byte("foo"), []byte("1"))
	require.NoError(t, err)
	require.NotNil(t, c.Topology())
	require.Equal(t, topo.Fingerprint(), c.Topology().Fingerprint())
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientOptions{})
	require.Error(t, err)

	_, err = NewClient(ClientOptions{Transport: NewInMemoryTransport()})
	require.Error(t, err)
}

func TestClient_Close(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.client.Close())
	require.NoError(t, env.client.Close())

	_, err := env.client.ExecuteSingleKey(t.Context(), "GET", []byte("foo"))
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_ConcurrentCalls(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k := []byte(fmt.Sprintf("k%d", i))
			_, err := env.client.ExecuteSingleKey(ctx, "SET", k, k)
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	r, err := env.client.ExecuteClusterWide(ctx, "DBSIZE")
	require.NoError(t, err)
	require.Equal(t, IntReply(20), r)
}

func TestClient_Do(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	r, err := env.client.Do(ctx, "set", [][]byte{[]byte("foo")}, []byte("1"))
	require.NoError(t, err)
	require.Equal(t, OKReply(), r)

	r, err = env.client.Do(ctx, "MGET", [][]byte{[]byte("foo"), []byte("bar")})
	require.NoError(t, err)
	require.Equal(t, ArrayReply(BulkString("1"), NilReply()), r)

	r, err = env.client.Do(ctx, "DBSIZE", nil)
	require.NoError(t, err)
	require.Equal(t, IntReply(1), r)

	_, err = env.client.Do(ctx, "DBSIZE", [][]byte{[]byte("foo")})
	require.ErrorIs(t, err, ErrInvalidArgs)

	_, err = env.client.Do(ctx, "INFO", nil)
	require.ErrorIs(t, err, ErrWrongClass)
}

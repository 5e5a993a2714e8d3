package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/slotr/core/slot"
	"github.com/codewandler/slotr/core/topology"
	"github.com/codewandler/slotr/ports/kv"
)

func handle(t *testing.T, n *Node, cmd string, args ...string) Reply {
	t.Helper()
	r, err := n.Handle(t.Context(), cmd, bs(args...))
	require.NoError(t, err)
	return r
}

func TestNode_Strings(t *testing.T) {
	n := NewNode(NodeOptions{NodeID: "n1"})

	require.Equal(t, StatusReply("PONG"), handle(t, n, "PING"))
	require.Equal(t, BulkString("hi"), handle(t, n, "ping", "hi"))

	require.Equal(t, OKReply(), handle(t, n, "SET", "k1", "v1"))
	require.Equal(t, BulkString("v1"), handle(t, n, "GET", "k1"))
	require.True(t, handle(t, n, "GET", "nope").IsNil())

	require.Equal(t, OKReply(), handle(t, n, "MSET", "k2", "v2", "k3", "v3"))
	require.Equal(t, ArrayReply(BulkString("v1"), NilReply(), BulkString("v3")), handle(t, n, "MGET", "k1", "x", "k3"))

	// EXISTS counts repeated keys
	require.Equal(t, IntReply(3), handle(t, n, "EXISTS", "k1", "k1", "k2", "x"))
	require.Equal(t, IntReply(2), handle(t, n, "TOUCH", "k1", "k2"))
	require.Equal(t, IntReply(3), handle(t, n, "DBSIZE"))

	require.Equal(t, IntReply(2), handle(t, n, "DEL", "k1", "k2", "x"))
	require.Equal(t, IntReply(0), handle(t, n, "UNLINK", "k1"))
	require.Equal(t, IntReply(1), handle(t, n, "DBSIZE"))

	require.Equal(t, OKReply(), handle(t, n, "FLUSHALL"))
	require.Equal(t, IntReply(0), handle(t, n, "DBSIZE"))
}

func TestNode_RenameAndMSetNX(t *testing.T) {
	n := NewNode(NodeOptions{NodeID: "n1"})

	require.Equal(t, IntReply(1), handle(t, n, "MSETNX", "{k}a", "1", "{k}b", "2"))
	require.Equal(t, IntReply(0), handle(t, n, "MSETNX", "{k}c", "3", "{k}a", "x"))
	require.True(t, handle(t, n, "GET", "{k}c").IsNil())
	require.Equal(t, BulkString("1"), handle(t, n, "GET", "{k}a"))
	require.Equal(t, BulkString("2"), handle(t, n, "GET", "{k}b"))

	require.Equal(t, OKReply(), handle(t, n, "RENAME", "{k}a", "{k}z"))
	require.True(t, handle(t, n, "GET", "{k}a").IsNil())
	require.Equal(t, BulkString("1"), handle(t, n, "GET", "{k}z"))

	require.Equal(t, IntReply(0), handle(t, n, "RENAMENX", "{k}z", "{k}b"))
	require.Equal(t, IntReply(1), handle(t, n, "RENAMENX", "{k}z", "{k}y"))
	require.Equal(t, OKReply(), handle(t, n, "RENAME", "{k}y", "{k}y"))
	require.Equal(t, BulkString("1"), handle(t, n, "GET", "{k}y"))

	_, err := n.Handle(t.Context(), "RENAME", bs("{k}missing", "{k}x"))
	require.ErrorIs(t, err, ErrInvalidArgs)

	_, err = n.Handle(t.Context(), "MSETNX", bs("foo", "1", "bar", "2"))
	require.ErrorIs(t, err, ErrCrossSlot)
	_, err = n.Handle(t.Context(), "RENAME", bs("{k}b", "other"))
	require.ErrorIs(t, err, ErrCrossSlot)
}

func TestNode_SerializesSlot(t *testing.T) {
	n := NewNode(NodeOptions{NodeID: "n1"})

	var wg sync.WaitGroup
	wins := make([]int64, 50)
	for i := range wins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := n.Handle(context.Background(), "MSETNX", bs("{k}a", "x", "{k}b", "y"))
			if err == nil {
				wins[i] = r.Int
			}
		}()
	}
	wg.Wait()

	var total int64
	for _, w := range wins {
		total += w
	}
	require.Equal(t, int64(1), total)
}

func TestNode_SetWithExpire(t *testing.T) {
	n := NewNode(NodeOptions{NodeID: "n1"})

	require.Equal(t, OKReply(), handle(t, n, "SET", "tmp", "v", "PX", "20"))
	require.Equal(t, BulkString("v"), handle(t, n, "GET", "tmp"))
	require.Eventually(t, func() bool {
		r, err := n.Handle(context.Background(), "GET", bs("tmp"))
		return err == nil && r.IsNil()
	}, time.Second, 5*time.Millisecond)

	_, err := n.Handle(t.Context(), "SET", bs("k", "v", "EX", "0"))
	require.ErrorIs(t, err, ErrInvalidArgs)
	_, err = n.Handle(t.Context(), "SET", bs("k", "v", "XX", "10"))
	require.ErrorIs(t, err, ErrInvalidArgs)
}

func TestNode_Keys(t *testing.T) {
	n := NewNode(NodeOptions{NodeID: "n1"})
	handle(t, n, "MSET", "user:2", "b", "user:1", "a", "order:1", "c")

	require.Equal(t, ArrayReply(BulkString("user:1"), BulkString("user:2")), handle(t, n, "KEYS", "user:*"))
	require.Len(t, handle(t, n, "KEYS", "*").Array, 3)
	require.Empty(t, handle(t, n, "KEYS", "nothing*").Array)

	_, err := n.Handle(t.Context(), "KEYS", bs("[bad"))
	require.ErrorIs(t, err, ErrInvalidArgs)
}

func TestNode_Errors(t *testing.T) {
	n := NewNode(NodeOptions{NodeID: "n1"})

	_, err := n.Handle(t.Context(), "NOPE", nil)
	require.ErrorIs(t, err, ErrUnknownCommand)

	for _, tc := range []struct {
		cmd  string
		args []string
	}{
		{"GET", nil},
		{"SET", []string{"k"}},
		{"MSET", []string{"k"}},
		{"MGET", nil},
		{"DEL", nil},
		{"KEYS", nil},
		{"CLUSTER", nil},
	} {
		_, err := n.Handle(t.Context(), tc.cmd, bs(tc.args...))
		require.ErrorIs(t, err, ErrInvalidArgs, tc.cmd)
	}
}

func TestNode_Cluster(t *testing.T) {
	topo := topology.MustNew(topology.ThreePrimaries()...)
	n := NewNode(NodeOptions{NodeID: "b", Topology: func() *topology.Topology { return topo }})

	require.Equal(t, BulkString("b"), handle(t, n, "CLUSTER", "MYID"))
	require.Equal(t, IntReply(int64(slot.OfString("foo"))), handle(t, n, "CLUSTER", "KEYSLOT", "foo"))

	r := handle(t, n, "CLUSTER", "topology")
	decoded, err := topology.Decode(r.Bulk)
	require.NoError(t, err)
	require.Equal(t, topo.Fingerprint(), decoded.Fingerprint())

	info := handle(t, n, "INFO")
	require.Contains(t, string(info.Bulk), "node_id:b")

	bare := NewNode(NodeOptions{NodeID: "x"})
	_, err = bare.Handle(t.Context(), "CLUSTER", bs("TOPOLOGY"))
	require.ErrorIs(t, err, topology.ErrTopologyUnavailable)
}

func TestNode_Ownership(t *testing.T) {
	topo := topology.MustNew(topology.ThreePrimaries()...)
	current := func() *topology.Topology { return topo }
	store := kv.NewMemStore()
	primary := NewNode(NodeOptions{NodeID: "a", Store: store, Topology: current})
	replica := NewNode(NodeOptions{NodeID: "a1", Store: store, Topology: current})

	// bar is in slot 5061, owned by a
	require.Equal(t, OKReply(), handle(t, primary, "SET", "bar", "1"))
	require.Equal(t, BulkString("1"), handle(t, replica, "GET", "bar"))

	_, err := primary.Handle(t.Context(), "GET", bs("foo"))
	var moved *MovedError
	require.True(t, errors.As(err, &moved))
	require.Equal(t, uint16(12182), moved.Slot)
	require.Equal(t, "127.0.0.1:7002", moved.Addr)
	require.Equal(t, "MOVED 12182 127.0.0.1:7002", err.Error())

	// every key of a multi-key command is checked
	_, err = primary.Handle(t.Context(), "MSET", bs("bar", "1", "foo", "2"))
	require.True(t, errors.As(err, &moved))

	// keyless commands are not checked
	require.Equal(t, IntReply(1), handle(t, primary, "DBSIZE"))
}

func TestNode_Run(t *testing.T) {
	require.Error(t, NewNode(NodeOptions{}).Run(t.Context()))

	tr := CreateInMemoryTransport(t)
	n := NewNode(NodeOptions{Transport: tr})
	require.NotEmpty(t, n.ID())
	require.NoError(t, n.Run(t.Context()))

	r, err := tr.Execute(context.Background(), &topology.Node{ID: n.ID()}, "PING", nil)
	require.NoError(t, err)
	require.Equal(t, StatusReply("PONG"), r)
}

package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/slotr/core/perkey"
	"github.com/codewandler/slotr/core/slot"
	"github.com/codewandler/slotr/core/topology"
	"github.com/codewandler/slotr/ports/kv"
)

type (
	NodeOptions struct {
		Log       *slog.Logger
		NodeID    string
		Transport ServerTransport
		Store     kv.Store
		// Topology, when set, makes the node reject keys of slots it does not
		// serve and answer CLUSTER TOPOLOGY.
		Topology func() *topology.Topology
	}

	// Node is a minimal storage node serving the key commands the router
	// dispatches. It exists for tests, demos and local clusters.
	Node struct {
		log      *slog.Logger
		nodeID   string
		t        ServerTransport
		store    kv.Store
		topology func() *topology.Topology
		slots    *perkey.Scheduler[uint16]
	}
)

func NewNode(opts NodeOptions) *Node {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	nodeID := opts.NodeID
	if nodeID == "" {
		nodeID = fmt.Sprintf("node-%s", gonanoid.Must(6))
	}

	store := opts.Store
	if store == nil {
		store = kv.NewMemStore()
	}

	return &Node{
		log:      log.With(slog.String("node", nodeID)),
		nodeID:   nodeID,
		t:        opts.Transport,
		store:    store,
		topology: opts.Topology,
		slots:    perkey.New[uint16](),
	}
}

func (n *Node) ID() string { return n.nodeID }

// Run starts serving on the transport until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	if n.t == nil {
		return fmt.Errorf("node %s: no transport", n.nodeID)
	}
	n.log.Info("starting node")
	if _, err := n.t.Serve(ctx, n.nodeID, n); err != nil {
		return fmt.Errorf("failed to serve node %s: %w", n.nodeID, err)
	}
	return nil
}

func (n *Node) Handle(ctx context.Context, cmd string, args [][]byte) (r Reply, err error) {
	cmd = strings.ToUpper(cmd)
	n.log.Debug("handle", slog.String("cmd", cmd), slog.Int("args", len(args)))

	if err = n.checkOwnership(cmd, args); err != nil {
		n.log.Debug("rejected", slog.String("cmd", cmd), slog.Any("error", err))
		return Reply{}, err
	}

	// commands of one slot run one at a time
	if keys := keyArgs(cmd, args); len(keys) == 0 {
		r, err = n.dispatch(ctx, cmd, args)
	} else {
		if atomicOnNode(cmd) {
			if err = checkColocated(cmd, keys); err != nil {
				return Reply{}, err
			}
		}
		err = n.slots.Do(ctx, slot.Of(keys[0]), func() (err error) {
			r, err = n.dispatch(ctx, cmd, args)
			return err
		})
	}
	if err != nil && !errors.Is(err, ErrUnknownCommand) && !errors.Is(err, ErrInvalidArgs) {
		n.log.Error("failed to handle command", slog.String("cmd", cmd), slog.Any("error", err))
	}
	return r, err
}

func (n *Node) dispatch(ctx context.Context, cmd string, args [][]byte) (Reply, error) {
	switch cmd {
	case "PING":
		if len(args) > 0 {
			return BulkReply(args[0]), nil
		}
		return StatusReply("PONG"), nil
	case "GET":
		if len(args) != 1 {
			return arity(cmd)
		}
		return n.get(ctx, string(args[0]))
	case "SET":
		return n.set(ctx, args)
	case "DEL", "UNLINK":
		return n.count(ctx, cmd, args, func(key string, found bool) error {
			if !found {
				return nil
			}
			return n.store.Delete(ctx, key)
		})
	case "EXISTS", "TOUCH":
		return n.count(ctx, cmd, args, nil)
	case "MGET":
		if len(args) == 0 {
			return arity(cmd)
		}
		out := make([]Reply, len(args))
		for i, k := range args {
			r, err := n.get(ctx, string(k))
			if err != nil {
				return Reply{}, err
			}
			out[i] = r
		}
		return ArrayReply(out...), nil
	case "MSET":
		if len(args) == 0 || len(args)%2 != 0 {
			return arity(cmd)
		}
		for i := 0; i < len(args); i += 2 {
			if err := n.store.Put(ctx, string(args[i]), kv.Entry{Data: args[i+1]}, kv.PutOptions{}); err != nil {
				return Reply{}, err
			}
		}
		return OKReply(), nil
	case "MSETNX":
		if len(args) == 0 || len(args)%2 != 0 {
			return arity(cmd)
		}
		for i := 0; i < len(args); i += 2 {
			if ok, err := kv.Exists(ctx, n.store, string(args[i])); err != nil || ok {
				return IntReply(0), err
			}
		}
		for i := 0; i < len(args); i += 2 {
			if err := n.store.Put(ctx, string(args[i]), kv.Entry{Data: args[i+1]}, kv.PutOptions{}); err != nil {
				return Reply{}, err
			}
		}
		return IntReply(1), nil
	case "RENAME", "RENAMENX":
		if len(args) != 2 {
			return arity(cmd)
		}
		return n.rename(ctx, cmd, string(args[0]), string(args[1]))
	case "KEYS":
		if len(args) != 1 {
			return arity(cmd)
		}
		return n.keys(ctx, string(args[0]))
	case "DBSIZE":
		size, err := n.store.Len(ctx)
		if err != nil {
			return Reply{}, err
		}
		return IntReply(int64(size)), nil
	case "FLUSHALL", "FLUSHDB":
		if err := n.store.Clear(ctx); err != nil {
			return Reply{}, err
		}
		return OKReply(), nil
	case "CLUSTER":
		return n.cluster(args)
	case "INFO":
		size, err := n.store.Len(ctx)
		if err != nil {
			return Reply{}, err
		}
		return BulkString(fmt.Sprintf("node_id:%s\r\nkeys:%d\r\n", n.nodeID, size)), nil
	}
	return Reply{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
}

func arity(cmd string) (Reply, error) {
	return Reply{}, fmt.Errorf("%w: wrong number of arguments for %s", ErrInvalidArgs, cmd)
}

func (n *Node) rename(ctx context.Context, cmd, src, dst string) (Reply, error) {
	e, err := n.store.Get(ctx, src)
	if errors.Is(err, kv.ErrNotFound) {
		return Reply{}, fmt.Errorf("%w: no such key", ErrInvalidArgs)
	}
	if err != nil {
		return Reply{}, err
	}
	if cmd == "RENAMENX" {
		if ok, err := kv.Exists(ctx, n.store, dst); err != nil || ok {
			return IntReply(0), err
		}
	}
	if src != dst {
		if err := n.store.Put(ctx, dst, e, kv.PutOptions{}); err != nil {
			return Reply{}, err
		}
		if err := n.store.Delete(ctx, src); err != nil {
			return Reply{}, err
		}
	}
	if cmd == "RENAMENX" {
		return IntReply(1), nil
	}
	return OKReply(), nil
}

func (n *Node) get(ctx context.Context, key string) (Reply, error) {
	e, err := n.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return NilReply(), nil
	}
	if err != nil {
		return Reply{}, err
	}
	return BulkReply(e.Data), nil
}

// set handles SET key value [EX seconds | PX milliseconds].
func (n *Node) set(ctx context.Context, args [][]byte) (Reply, error) {
	if len(args) != 2 && len(args) != 4 {
		return arity("SET")
	}
	var opts kv.PutOptions
	if len(args) == 4 {
		v, err := strconv.ParseInt(string(args[3]), 10, 64)
		if err != nil || v <= 0 {
			return Reply{}, fmt.Errorf("%w: invalid expire time in SET", ErrInvalidArgs)
		}
		switch strings.ToUpper(string(args[2])) {
		case "EX":
			opts.TTL = time.Duration(v) * time.Second
		case "PX":
			opts.TTL = time.Duration(v) * time.Millisecond
		default:
			return Reply{}, fmt.Errorf("%w: syntax error in SET", ErrInvalidArgs)
		}
	}
	if err := n.store.Put(ctx, string(args[0]), kv.Entry{Data: args[1]}, opts); err != nil {
		return Reply{}, err
	}
	return OKReply(), nil
}

// count returns how many of the given keys exist, calling each for every key.
func (n *Node) count(ctx context.Context, cmd string, args [][]byte, each func(key string, found bool) error) (Reply, error) {
	if len(args) == 0 {
		return arity(cmd)
	}
	var total int64
	for _, k := range args {
		found, err := kv.Exists(ctx, n.store, string(k))
		if err != nil {
			return Reply{}, err
		}
		if found {
			total++
		}
		if each != nil {
			if err := each(string(k), found); err != nil {
				return Reply{}, err
			}
		}
	}
	return IntReply(total), nil
}

func (n *Node) keys(ctx context.Context, pattern string) (Reply, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return Reply{}, fmt.Errorf("%w: bad pattern %q", ErrInvalidArgs, pattern)
	}
	all, err := n.store.Keys(ctx)
	if err != nil {
		return Reply{}, err
	}
	out := make([]Reply, 0, len(all))
	for _, k := range all {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, BulkString(k))
		}
	}
	return ArrayReply(out...), nil
}

func (n *Node) cluster(args [][]byte) (Reply, error) {
	if len(args) == 0 {
		return arity("CLUSTER")
	}
	switch strings.ToUpper(string(args[0])) {
	case "MYID":
		return BulkString(n.nodeID), nil
	case "KEYSLOT":
		if len(args) != 2 {
			return arity("CLUSTER KEYSLOT")
		}
		return IntReply(int64(slot.Of(args[1]))), nil
	case "TOPOLOGY":
		topo := n.currentTopology()
		if topo == nil {
			return Reply{}, fmt.Errorf("node %s: %w", n.nodeID, topology.ErrTopologyUnavailable)
		}
		b, err := topo.MarshalJSON()
		if err != nil {
			return Reply{}, err
		}
		return BulkReply(b), nil
	}
	return Reply{}, fmt.Errorf("%w: CLUSTER %s", ErrUnknownCommand, args[0])
}

func (n *Node) currentTopology() *topology.Topology {
	if n.topology == nil {
		return nil
	}
	return n.topology()
}

func atomicOnNode(cmd string) bool {
	switch cmd {
	case "RENAME", "RENAMENX", "MSETNX":
		return true
	}
	return false
}

// keyArgs returns the key arguments of the data commands this node serves.
func keyArgs(cmd string, args [][]byte) [][]byte {
	switch cmd {
	case "GET", "SET":
		if len(args) > 0 {
			return args[:1]
		}
	case "RENAME", "RENAMENX":
		return args
	case "DEL", "UNLINK", "EXISTS", "TOUCH", "MGET":
		return args
	case "MSET", "MSETNX":
		keys := make([][]byte, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			keys = append(keys, args[i])
		}
		return keys
	}
	return nil
}

// checkOwnership rejects keys whose slot is served by another primary.
// Replicas accept the keys of their primary.
func (n *Node) checkOwnership(cmd string, args [][]byte) error {
	topo := n.currentTopology()
	if topo == nil {
		return nil
	}
	self, err := topo.Node(n.nodeID)
	if err != nil {
		return nil
	}
	owner := self.ID
	if !self.IsPrimary() {
		owner = self.ReplicaOf
	}

	for _, k := range keyArgs(cmd, args) {
		s := slot.Of(k)
		node, err := topo.NodeForSlot(s)
		if err != nil {
			return fmt.Errorf("CLUSTERDOWN %w", err)
		}
		if node.ID != owner {
			return &MovedError{Slot: s, Addr: node.Addr()}
		}
	}
	return nil
}

var _ Handler = (*Node)(nil)

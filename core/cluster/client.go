package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/codewandler/slotr/core/command"
	"github.com/codewandler/slotr/core/slot"
	"github.com/codewandler/slotr/core/topology"
)

// ReadPreference selects which nodes serve read-only commands.
type ReadPreference int

const (
	// ReadPrimary sends every command to the slot's primary.
	ReadPrimary ReadPreference = iota
	// ReadReplica sends read-only single-key and splittable commands to a
	// replica of the owning primary when one exists.
	ReadReplica
)

type ClientOptions struct {
	Transport ClientTransport
	// Source answers topology refreshes. Required unless Initial or Holder is set.
	Source  topology.Source
	Initial *topology.Topology
	// Holder shares one snapshot between clients. Source and Initial are
	// ignored when it is set.
	Holder *topology.Holder
	// Commands defaults to command.Default().
	Commands       *command.Table
	Metrics        Metrics
	Log            *slog.Logger
	ReadPreference ReadPreference
	// Seed personalizes replica selection.
	Seed string
}

// Client routes commands to the nodes owning their keys.
//
// Every call captures the current topology snapshot once and uses it for
// routing, splitting and fan-out; a concurrent refresh never changes the
// snapshot of a call in progress.
type Client struct {
	log      *slog.Logger
	t        ClientTransport
	holder   *topology.Holder
	commands *command.Table
	metrics  Metrics
	readPref ReadPreference
	seed     string
	closed   atomic.Bool
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("cluster: ClientOptions.Transport is required")
	}
	if opts.Holder == nil && opts.Source == nil && opts.Initial == nil {
		return nil, fmt.Errorf("cluster: one of ClientOptions.Source, Initial or Holder is required")
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NopMetrics()
	}
	commands := opts.Commands
	if commands == nil {
		commands = command.Default()
	}

	holder := opts.Holder
	if holder == nil {
		holder = topology.NewHolder(topology.HolderOptions{
			Source:  opts.Source,
			Initial: opts.Initial,
			Log:     log,
			OnRefresh: func(t *topology.Topology, err error) {
				metrics.TopologyRefreshed(err == nil)
				if err == nil {
					metrics.TopologyPrimaries(len(t.Primaries()))
				}
			},
		})
	}
	if t := holder.Current(); t != nil {
		metrics.TopologyPrimaries(len(t.Primaries()))
	}

	return &Client{
		log:      log.With(slog.String("component", "cluster")),
		t:        opts.Transport,
		holder:   holder,
		commands: commands,
		metrics:  metrics,
		readPref: opts.ReadPreference,
		seed:     opts.Seed,
	}, nil
}

// Topology returns the current snapshot, nil before the first refresh.
func (c *Client) Topology() *topology.Topology { return c.holder.Current() }

// Holder returns the snapshot holder, e.g. to run a background refresh loop.
func (c *Client) Holder() *topology.Holder { return c.holder }

func (c *Client) Commands() *command.Table { return c.commands }

// Refresh fetches a new snapshot. On failure the previous snapshot stays in
// force and is returned together with an error wrapping
// topology.ErrTopologyUnavailable.
func (c *Client) Refresh(ctx context.Context) (*topology.Topology, error) {
	return c.holder.Refresh(ctx)
}

// Node returns the node with the given id from the current snapshot.
func (c *Client) Node(ctx context.Context, id string) (*topology.Node, error) {
	topo, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return topo.Node(id)
}

func (c *Client) KeySlot(key []byte) uint16 { return slot.Of(key) }

// Route returns the primary owning key in the current snapshot.
func (c *Client) Route(ctx context.Context, key []byte) (*topology.Node, error) {
	topo, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	n, _, err := c.route(topo, key)
	return n, err
}

// ExecuteSingleKey runs a single-key command on the node owning key.
func (c *Client) ExecuteSingleKey(ctx context.Context, cmd string, key []byte, args ...[]byte) (r Reply, err error) {
	spec, err := c.lookup(cmd, command.SingleKey)
	if err != nil {
		return Reply{}, err
	}
	topo, err := c.snapshot(ctx)
	if err != nil {
		return Reply{}, err
	}

	done := c.instrument(spec.Name, RouteSingle)
	defer func() { done(err) }()

	primary, _, err := c.route(topo, key)
	if err != nil {
		return Reply{}, c.rejected(spec.Name, err)
	}
	node := c.target(topo, spec, primary, key)
	return c.dispatch(ctx, node, spec.Name, append([][]byte{key}, args...))
}

// ExecuteMultiKey runs a multi-key command. Splittable commands are split
// into one sub-command per owning node, executed concurrently and merged;
// atomic commands must have all keys in one slot. For commands carrying
// values per key (MSET), args holds the values in key order.
func (c *Client) ExecuteMultiKey(ctx context.Context, cmd string, keys [][]byte, args ...[]byte) (r Reply, err error) {
	spec, err := c.lookup(cmd, command.SingleKey, command.MultiKeyAtomic, command.MultiKeySplittable)
	if err != nil {
		return Reply{}, err
	}
	if len(keys) == 0 {
		return Reply{}, fmt.Errorf("%s: %w", spec.Name, ErrNoKeys)
	}

	switch spec.Class {
	case command.SingleKey:
		if len(keys) != 1 {
			return Reply{}, fmt.Errorf("%w: %s takes exactly one key", ErrInvalidArgs, spec.Name)
		}
		return c.ExecuteSingleKey(ctx, spec.Name, keys[0], args...)
	case command.MultiKeyAtomic:
		return c.executeColocated(ctx, spec, keys, args)
	}

	if spec.ValuesPerKey > 0 && len(args) != len(keys)*spec.ValuesPerKey {
		return Reply{}, fmt.Errorf("%w: %s needs %d values per key", ErrInvalidArgs, spec.Name, spec.ValuesPerKey)
	}
	if spec.ValuesPerKey == 0 && len(args) > 0 {
		return Reply{}, fmt.Errorf("%w: %s takes keys only", ErrInvalidArgs, spec.Name)
	}

	topo, err := c.snapshot(ctx)
	if err != nil {
		return Reply{}, err
	}

	done := c.instrument(spec.Name, RouteSplit)
	defer func() { done(err) }()

	subs, err := c.split(topo, spec, keys, args)
	if err != nil {
		return Reply{}, c.rejected(spec.Name, err)
	}
	c.log.Debug("split",
		slog.String("cmd", spec.Name),
		slog.Int("keys", len(keys)),
		slog.Int("nodes", len(subs)),
	)

	replies, err := c.scatter(ctx, spec.Name, subs)
	if err != nil {
		return Reply{}, err
	}
	return merge(spec, len(keys), subs, replies)
}

// ExecuteColocated runs a key command whose keys the caller asserts share one
// slot. The assertion is checked before dispatch and a mismatch fails with a
// *CrossSlotError.
func (c *Client) ExecuteColocated(ctx context.Context, cmd string, keys [][]byte, args ...[]byte) (Reply, error) {
	spec, err := c.lookup(cmd, command.SingleKey, command.MultiKeyAtomic, command.MultiKeySplittable)
	if err != nil {
		return Reply{}, err
	}
	if len(keys) == 0 {
		return Reply{}, fmt.Errorf("%s: %w", spec.Name, ErrNoKeys)
	}
	return c.executeColocated(ctx, spec, keys, args)
}

// executeColocated sends keys and args to the owner of the keys' slot. For
// commands with values per key the wire carries each key followed by its
// values, otherwise the keys followed by args.
func (c *Client) executeColocated(ctx context.Context, spec command.Spec, keys [][]byte, args [][]byte) (Reply, error) {
	if spec.ValuesPerKey > 0 {
		if len(args) != len(keys)*spec.ValuesPerKey {
			return Reply{}, fmt.Errorf("%w: %s needs %d values per key", ErrInvalidArgs, spec.Name, spec.ValuesPerKey)
		}
		return c.executeColocatedRaw(ctx, spec, keys, interleave(spec, keys, args, allIndices(len(keys))))
	}
	wire := make([][]byte, 0, len(keys)+len(args))
	wire = append(wire, keys...)
	wire = append(wire, args...)
	return c.executeColocatedRaw(ctx, spec, keys, wire)
}

func (c *Client) executeColocatedRaw(ctx context.Context, spec command.Spec, keys [][]byte, wire [][]byte) (r Reply, err error) {
	topo, err := c.snapshot(ctx)
	if err != nil {
		return Reply{}, err
	}

	done := c.instrument(spec.Name, RouteColocated)
	defer func() { done(err) }()

	if err := checkColocated(spec.Name, keys); err != nil {
		return Reply{}, c.rejected(spec.Name, err)
	}
	primary, _, err := c.route(topo, keys[0])
	if err != nil {
		return Reply{}, c.rejected(spec.Name, err)
	}
	node := c.target(topo, spec, primary, keys[0])
	return c.dispatch(ctx, node, spec.Name, wire)
}

// ExecuteClusterWide sends a cluster-wide command to every primary and
// merges the replies. It fails before dispatch when the snapshot leaves
// slots uncovered, and with a *PartialFailure when any primary fails.
func (c *Client) ExecuteClusterWide(ctx context.Context, cmd string, args ...[]byte) (r Reply, err error) {
	spec, err := c.lookup(cmd, command.ClusterWide)
	if err != nil {
		return Reply{}, err
	}
	topo, err := c.snapshot(ctx)
	if err != nil {
		return Reply{}, err
	}

	done := c.instrument(spec.Name, RouteCluster)
	defer func() { done(err) }()

	if !topo.FullyCovered() {
		c.metrics.SlotNotCovered()
		return Reply{}, fmt.Errorf("%s: uncovered slots %v: %w", spec.Name, topo.Uncovered(), topology.ErrSlotNotCovered)
	}
	primaries := topo.Primaries()
	if len(primaries) == 0 {
		return Reply{}, fmt.Errorf("%s: %w", spec.Name, ErrNoPrimaries)
	}

	subs := make([]subOperation, len(primaries))
	for i, p := range primaries {
		subs[i] = subOperation{node: p, args: args}
	}
	replies, err := c.scatter(ctx, spec.Name, subs)
	if err != nil {
		return Reply{}, err
	}
	return merge(spec, 0, subs, replies)
}

// ExecuteOnNode sends a command to one node of the current snapshot. Any
// command is accepted; no key routing takes place.
func (c *Client) ExecuteOnNode(ctx context.Context, nodeID string, cmd string, args ...[]byte) (r Reply, err error) {
	if c.closed.Load() {
		return Reply{}, ErrClientClosed
	}
	node, err := c.Node(ctx, nodeID)
	if err != nil {
		return Reply{}, err
	}
	name := cmd
	if spec, ok := c.commands.Lookup(cmd); ok {
		name = spec.Name
	}

	done := c.instrument(name, RouteNode)
	defer func() { done(err) }()

	return c.dispatch(ctx, node, name, args)
}

// Do runs cmd according to its class: keys are routed for key commands and
// ignored for cluster-wide ones. Node-local commands need ExecuteOnNode.
func (c *Client) Do(ctx context.Context, cmd string, keys [][]byte, args ...[]byte) (Reply, error) {
	spec, err := c.lookup(cmd, command.SingleKey, command.MultiKeyAtomic, command.MultiKeySplittable, command.ClusterWide)
	if err != nil {
		return Reply{}, err
	}
	if spec.Class == command.ClusterWide {
		if len(keys) > 0 {
			return Reply{}, fmt.Errorf("%w: %s takes no keys", ErrInvalidArgs, spec.Name)
		}
		return c.ExecuteClusterWide(ctx, spec.Name, args...)
	}
	return c.ExecuteMultiKey(ctx, spec.Name, keys, args...)
}

func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.t.Close()
}

// lookup resolves cmd and checks its class against the allowed ones.
func (c *Client) lookup(cmd string, allowed ...command.Class) (command.Spec, error) {
	if c.closed.Load() {
		return command.Spec{}, ErrClientClosed
	}
	spec, ok := c.commands.Lookup(cmd)
	if !ok {
		return command.Spec{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	for _, a := range allowed {
		if spec.Class == a {
			return spec, nil
		}
	}
	return command.Spec{}, fmt.Errorf("%w: %s is %s", ErrWrongClass, spec.Name, spec.Class)
}

// snapshot returns the current topology, fetching the first one if needed.
func (c *Client) snapshot(ctx context.Context) (*topology.Topology, error) {
	if t := c.holder.Current(); t != nil {
		return t, nil
	}
	t, err := c.holder.Refresh(ctx)
	if t == nil {
		return nil, err
	}
	return t, nil
}

func (c *Client) instrument(cmd, route string) func(err error) {
	timer := c.metrics.CommandDuration(cmd, route)
	return func(err error) {
		timer.ObserveDuration()
		c.metrics.CommandCompleted(cmd, route, err == nil)
	}
}

// Package cluster routes commands across the nodes of a sharded key-value
// cluster.
//
// The keyspace is divided into 16384 slots (see package slot). Each slot is
// owned by at most one primary node; the mapping lives in an immutable
// [topology.Topology] snapshot that a [topology.Holder] swaps atomically on
// refresh.
//
// # Architecture
//
// The package consists of these components:
//
//   - [Client]: the caller surface; routes, splits, fans out and merges
//   - [Transport]: carries one command to one node and returns its [Reply]
//   - [Node]: a small in-process storage node used by tests and demos
//
// # Routing
//
// Commands are classified by a [command.Table]:
//
//   - single-key commands go to the primary owning the key's slot
//   - multi-key atomic commands need all keys in one slot; otherwise they
//     fail with a [*CrossSlotError] before anything is sent
//   - splittable commands are split into one sub-command per owning node,
//     executed concurrently and merged back in the caller's key order
//   - cluster-wide commands are sent to every primary and merged
//
// Every call captures the current snapshot once. Routing errors
// ([*CrossSlotError], [*SlotNotCoveredError]) are raised before dispatch.
//
// # Client Usage
//
//	client, err := cluster.NewClient(cluster.ClientOptions{
//	    Transport: transport,
//	    Source:    topology.File("cluster.yaml"),
//	})
//
//	r, err := client.ExecuteSingleKey(ctx, "GET", []byte("user:1"))
//	r, err = client.ExecuteMultiKey(ctx, "MGET", [][]byte{[]byte("foo"), []byte("bar")})
//	r, err = client.ExecuteClusterWide(ctx, "DBSIZE")
//
// # Error Handling
//
// Execution errors of a fan-out are collected from every node before the
// call returns. They are reported as a [*PartialFailure] holding one
// [*NodeError] per failed node:
//
//	var pf *cluster.PartialFailure
//	if errors.As(err, &pf) {
//	    log.Println("failed nodes:", pf.Nodes())
//	}
package cluster

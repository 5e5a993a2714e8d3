package cluster

import (
	"context"

	"github.com/codewandler/slotr/core/topology"
)

type Subscription interface {
	Unsubscribe() error
}

// Handler serves commands addressed to one node.
type Handler interface {
	Handle(ctx context.Context, cmd string, args [][]byte) (Reply, error)
}

type HandlerFunc func(ctx context.Context, cmd string, args [][]byte) (Reply, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd string, args [][]byte) (Reply, error) {
	return f(ctx, cmd, args)
}

type ClientTransport interface {
	// Execute sends one command to node and waits for its reply. Errors are
	// returned as produced; the client tags them with the node.
	//
	// Execute must return once ctx is done. Multi-node calls wait for every
	// Execute before they return.
	Execute(ctx context.Context, node *topology.Node, cmd string, args [][]byte) (Reply, error)

	Close() error
}

type ServerTransport interface {
	// Serve delivers commands addressed to nodeID to h until the subscription
	// is removed or ctx is done.
	Serve(ctx context.Context, nodeID string, h Handler) (Subscription, error)

	Close() error
}

// Transport carries commands to nodes and lets nodes serve them.
type Transport interface {
	ClientTransport
	ServerTransport
}

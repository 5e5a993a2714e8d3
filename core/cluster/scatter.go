package cluster

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc"

	"github.com/codewandler/slotr/core/topology"
)

// scatter runs every sub-operation concurrently and waits for all of them.
// Each task writes only its own slot of the result slices. Cancellation is
// left to the transport through ctx; the barrier always completes.
func (c *Client) scatter(ctx context.Context, cmd string, subs []subOperation) ([]Reply, error) {
	c.metrics.FanOut(cmd, len(subs))

	replies := make([]Reply, len(subs))
	errs := make([]error, len(subs))

	var wg conc.WaitGroup
	for i := range subs {
		wg.Go(func() {
			replies[i], errs[i] = c.dispatch(ctx, subs[i].node, cmd, subs[i].args)
		})
	}
	wg.Wait()

	var failed []*NodeError
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ne *NodeError
		if !errors.As(err, &ne) {
			ne = &NodeError{Err: err}
		}
		failed = append(failed, ne)
	}
	if len(failed) > 0 {
		return nil, &PartialFailure{Command: cmd, Total: len(subs), Errors: failed}
	}
	return replies, nil
}

// dispatch sends one command to node and tags a failure with the node.
func (c *Client) dispatch(ctx context.Context, node *topology.Node, cmd string, args [][]byte) (Reply, error) {
	r, err := c.t.Execute(ctx, node, cmd, args)
	if err == nil {
		return r, nil
	}
	c.metrics.NodeError(node.ID, errorKind(err))
	return Reply{}, &NodeError{NodeID: node.ID, Addr: node.Addr(), Err: err}
}

func errorKind(err error) string {
	var moved *MovedError
	switch {
	case errors.Is(err, ErrNodeUnreachable):
		return "unreachable"
	case errors.Is(err, ErrTransportClosed):
		return "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &moved):
		return "moved"
	}
	return "error"
}

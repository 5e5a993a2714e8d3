package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/codewandler/slotr/core/topology"
)

type TransportSourceOptions struct {
	Transport ClientTransport
	// Seeds are asked in order when the holder has no snapshot yet.
	Seeds []*topology.Node
	// Holder, when set, contributes the nodes of its current snapshot as
	// seeds ahead of Seeds.
	Holder *topology.Holder
}

// TransportSource fetches the topology by asking nodes for CLUSTER TOPOLOGY.
// The first node that answers wins.
type TransportSource struct {
	t      ClientTransport
	seeds  []*topology.Node
	holder *topology.Holder
}

func NewTransportSource(opts TransportSourceOptions) *TransportSource {
	return &TransportSource{t: opts.Transport, seeds: opts.Seeds, holder: opts.Holder}
}

func (s *TransportSource) candidates() []*topology.Node {
	var out []*topology.Node
	seen := map[string]bool{}
	if s.holder != nil {
		if cur := s.holder.Current(); cur != nil {
			for _, n := range cur.Nodes() {
				seen[n.ID] = true
				out = append(out, n)
			}
		}
	}
	for _, n := range s.seeds {
		if !seen[n.ID] {
			seen[n.ID] = true
			out = append(out, n)
		}
	}
	return out
}

func (s *TransportSource) Fetch(ctx context.Context) (*topology.Topology, error) {
	nodes := s.candidates()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no seed nodes", topology.ErrTopologyUnavailable)
	}

	var errs []error
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		r, err := s.t.Execute(ctx, n, "CLUSTER", [][]byte{[]byte("TOPOLOGY")})
		if err != nil {
			errs = append(errs, &NodeError{NodeID: n.ID, Addr: n.Addr(), Err: err})
			continue
		}
		if r.Kind != KindBulk {
			errs = append(errs, &NodeError{NodeID: n.ID, Addr: n.Addr(), Err: fmt.Errorf("%w: %s", ErrUnexpectedReply, r.Kind)})
			continue
		}
		t, err := topology.Decode(r.Bulk)
		if err != nil {
			errs = append(errs, &NodeError{NodeID: n.ID, Addr: n.Addr(), Err: err})
			continue
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: %w", topology.ErrTopologyUnavailable, errors.Join(errs...))
}

var _ topology.Source = (*TransportSource)(nil)

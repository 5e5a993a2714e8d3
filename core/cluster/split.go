package cluster

import (
	"github.com/codewandler/slotr/core/command"
	"github.com/codewandler/slotr/core/topology"
	"github.com/codewandler/slotr/internal/ds"
)

// subOperation is the part of a call sent to one node.
type subOperation struct {
	node *topology.Node
	// indices are the positions of this node's keys in the caller's key
	// list, in their original relative order.
	indices []int
	args    [][]byte
}

// split groups keys by owning node. Every key is resolved before anything is
// built, so an uncovered slot fails the whole call.
func (c *Client) split(topo *topology.Topology, spec command.Spec, keys [][]byte, args [][]byte) ([]subOperation, error) {
	groups := ds.NewGroups[string, int]()
	owners := make(map[string]*topology.Node)
	for i, k := range keys {
		primary, _, err := c.route(topo, k)
		if err != nil {
			return nil, err
		}
		owners[primary.ID] = primary
		groups.Append(primary.ID, i)
	}

	subs := make([]subOperation, 0, groups.Len())
	for _, id := range groups.Keys() {
		idx := groups.Get(id)
		subs = append(subs, subOperation{
			node:    c.target(topo, spec, owners[id], keys[idx[0]]),
			indices: idx,
			args:    interleave(spec, keys, args, idx),
		})
	}
	return subs, nil
}

// interleave builds the wire arguments for the keys at idx: each key followed
// by its values.
func interleave(spec command.Spec, keys [][]byte, args [][]byte, idx []int) [][]byte {
	step := spec.ValuesPerKey
	out := make([][]byte, 0, len(idx)*(1+step))
	for _, i := range idx {
		out = append(out, keys[i])
		out = append(out, args[i*step:i*step+step]...)
	}
	return out
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

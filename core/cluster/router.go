package cluster

import (
	"errors"

	"github.com/codewandler/slotr/core/command"
	"github.com/codewandler/slotr/core/slot"
	"github.com/codewandler/slotr/core/topology"
	"github.com/codewandler/slotr/internal/hrw"
)

// route returns the primary owning key in topo.
func (c *Client) route(topo *topology.Topology, key []byte) (*topology.Node, uint16, error) {
	s := slot.Of(key)
	n, err := topo.NodeForSlot(s)
	if err != nil {
		if errors.Is(err, topology.ErrSlotNotCovered) {
			return nil, s, &SlotNotCoveredError{Key: string(key), Slot: s}
		}
		return nil, s, err
	}
	return n, s, nil
}

// target picks the node that serves a command for key whose slot is owned by
// primary. Read-only commands go to a replica when the client prefers them.
func (c *Client) target(topo *topology.Topology, spec command.Spec, primary *topology.Node, key []byte) *topology.Node {
	if c.readPref != ReadReplica || !spec.ReadOnly {
		return primary
	}
	replicas := topo.ReplicasOf(primary.ID)
	if len(replicas) == 0 {
		return primary
	}
	ids := make([]string, len(replicas))
	for i, r := range replicas {
		ids[i] = r.ID
	}
	best, _ := hrw.Pick(key, ids, c.seed)
	for _, r := range replicas {
		if r.ID == best {
			return r
		}
	}
	return primary
}

// checkColocated fails with a *CrossSlotError naming every key when keys do
// not all map to one slot.
func checkColocated(cmd string, keys [][]byte) error {
	if slot.Same(keys...) {
		return nil
	}
	e := &CrossSlotError{Command: cmd, Keys: make([]string, len(keys)), Slots: make([]uint16, len(keys))}
	for i, k := range keys {
		e.Keys[i] = string(k)
		e.Slots[i] = slot.Of(k)
	}
	return e
}

// rejected records a routing failure and returns it unchanged.
func (c *Client) rejected(cmd string, err error) error {
	var (
		cross *CrossSlotError
		gap   *SlotNotCoveredError
	)
	switch {
	case errors.As(err, &cross):
		c.metrics.CrossSlotRejected(cmd)
	case errors.As(err, &gap):
		c.metrics.SlotNotCovered()
	}
	return err
}

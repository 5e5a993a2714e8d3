package topology

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/codewandler/slotr/core/slot"
)

const uncovered = -1

// Description is the serializable form of a topology, as exchanged with
// refresh sources.
type Description struct {
	Epoch uint64 `json:"epoch" yaml:"epoch"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Build validates the description and returns the snapshot it describes.
func (d Description) Build() (*Topology, error) {
	t, err := New(d.Nodes...)
	if err != nil {
		return nil, err
	}
	t.epoch = d.Epoch
	return t, nil
}

// Topology is an immutable view of the cluster.
type Topology struct {
	epoch       uint64
	nodes       []*Node
	byID        map[string]*Node
	primaries   []*Node
	owners      [slot.Count]int16 // index into primaries
	covered     int
	fingerprint string
}

// New validates nodes and builds a snapshot. Input nodes are copied.
//
// The snapshot is rejected if ids are empty or duplicated, a range is out of
// bounds, a replica owns slots or follows an unknown primary, or two
// primaries claim the same slot.
func New(nodes ...Node) (*Topology, error) {
	t := &Topology{
		byID: make(map[string]*Node, len(nodes)),
	}
	for i := range t.owners {
		t.owners[i] = uncovered
	}

	for _, in := range nodes {
		if in.ID == "" {
			return nil, fmt.Errorf("%w: node without id", ErrInvalidTopology)
		}
		if _, dup := t.byID[in.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %q", ErrInvalidTopology, in.ID)
		}
		n := in.clone()
		t.byID[n.ID] = n
		t.nodes = append(t.nodes, n)
	}

	for _, n := range t.nodes {
		switch n.Role {
		case RolePrimary:
			if n.ReplicaOf != "" {
				return nil, fmt.Errorf("%w: primary %q cannot replicate %q", ErrInvalidTopology, n.ID, n.ReplicaOf)
			}
			if err := t.assign(n); err != nil {
				return nil, err
			}
		case RoleReplica:
			if len(n.Slots) > 0 {
				return nil, fmt.Errorf("%w: replica %q owns slots", ErrInvalidTopology, n.ID)
			}
			p, ok := t.byID[n.ReplicaOf]
			if !ok || !p.IsPrimary() {
				return nil, fmt.Errorf("%w: replica %q follows unknown primary %q", ErrInvalidTopology, n.ID, n.ReplicaOf)
			}
		default:
			return nil, fmt.Errorf("%w: node %q has unknown role %q", ErrInvalidTopology, n.ID, n.Role)
		}
	}

	t.fingerprint = fingerprint(t.nodes)
	return t, nil
}

func (t *Topology) assign(n *Node) error {
	idx := int16(len(t.primaries))
	t.primaries = append(t.primaries, n)
	for _, r := range n.Slots {
		if !r.Valid() {
			return fmt.Errorf("%w: node %q has invalid slot range %s", ErrInvalidTopology, n.ID, r)
		}
		for s := int(r.Start); s <= int(r.End); s++ {
			if prev := t.owners[s]; prev != uncovered {
				return fmt.Errorf("%w: slot %d claimed by %q and %q", ErrOverlappingSlots, s, t.primaries[prev].ID, n.ID)
			}
			t.owners[s] = idx
			t.covered++
		}
	}
	return nil
}

// Epoch is the configuration epoch reported by the source, 0 if unknown.
func (t *Topology) Epoch() uint64 { return t.epoch }

// Fingerprint identifies the layout of the snapshot independent of node
// order. Two snapshots with equal fingerprints route identically.
func (t *Topology) Fingerprint() string { return t.fingerprint }

// NodeForSlot returns the primary owning s.
func (t *Topology) NodeForSlot(s uint16) (*Node, error) {
	if s >= slot.Count {
		return nil, fmt.Errorf("%w: slot %d out of range", ErrInvalidTopology, s)
	}
	idx := t.owners[s]
	if idx == uncovered {
		return nil, fmt.Errorf("slot %d: %w", s, ErrSlotNotCovered)
	}
	return t.primaries[idx], nil
}

// NodeForKey returns the primary owning the slot of key.
func (t *Topology) NodeForKey(key []byte) (*Node, error) {
	return t.NodeForSlot(slot.Of(key))
}

// Node returns the node with the given id, or an error matching
// [ErrNodeNotFound].
func (t *Topology) Node(id string) (*Node, error) {
	n, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Nodes returns all nodes in description order.
func (t *Topology) Nodes() []*Node { return append([]*Node(nil), t.nodes...) }

// Primaries returns all primaries, including those that currently own no slots.
func (t *Topology) Primaries() []*Node { return append([]*Node(nil), t.primaries...) }

// ReplicasOf returns the replicas following primaryID.
func (t *Topology) ReplicasOf(primaryID string) []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.Role == RoleReplica && n.ReplicaOf == primaryID {
			out = append(out, n)
		}
	}
	return out
}

// Covered returns the number of slots that have an owner.
func (t *Topology) Covered() int { return t.covered }

// FullyCovered reports whether every slot has an owner.
func (t *Topology) FullyCovered() bool { return t.covered == slot.Count }

// Uncovered returns the slot ranges without an owner.
func (t *Topology) Uncovered() []SlotRange {
	var (
		out  []SlotRange
		open = -1
	)
	for s := 0; s <= slot.Count; s++ {
		gap := s < slot.Count && t.owners[s] == uncovered
		switch {
		case gap && open < 0:
			open = s
		case !gap && open >= 0:
			out = append(out, SlotRange{Start: uint16(open), End: uint16(s - 1)})
			open = -1
		}
	}
	return out
}

// Description returns a deep copy of the snapshot in serializable form.
func (t *Topology) Description() Description {
	d := Description{Epoch: t.epoch, Nodes: make([]Node, 0, len(t.nodes))}
	for _, n := range t.nodes {
		d.Nodes = append(d.Nodes, *n.clone())
	}
	return d
}

func (t *Topology) MarshalJSON() ([]byte, error) { return json.Marshal(t.Description()) }

// Decode parses a JSON description.
func Decode(data []byte) (*Topology, error) {
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}
	return d.Build()
}

func (t *Topology) String() string {
	return fmt.Sprintf("topology(epoch=%d nodes=%d primaries=%d covered=%d fp=%s)",
		t.epoch, len(t.nodes), len(t.primaries), t.covered, t.fingerprint)
}

func fingerprint(nodes []*Node) string {
	sorted := append([]*Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h, _ := blake2b.New(16, nil)
	for _, n := range sorted {
		ranges := append([]SlotRange(nil), n.Slots...)
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
		_, _ = fmt.Fprintf(h, "%s|%s|%s|%s|%v", n.ID, n.Addr(), n.Role, n.ReplicaOf, ranges)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

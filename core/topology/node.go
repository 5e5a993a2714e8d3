package topology

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/codewandler/slotr/core/slot"
)

// Role of a node in the cluster.
type Role string

const (
	RolePrimary Role = "primary"
	RoleReplica Role = "replica"
)

// SlotRange is an inclusive range of slots.
type SlotRange struct {
	Start uint16 `json:"start" yaml:"start"`
	End   uint16 `json:"end" yaml:"end"`
}

// Range returns the inclusive range [start, end].
func Range(start, end uint16) SlotRange { return SlotRange{Start: start, End: end} }

func (r SlotRange) Contains(s uint16) bool { return s >= r.Start && s <= r.End }

// Len returns the number of slots in the range.
func (r SlotRange) Len() int { return int(r.End) - int(r.Start) + 1 }

func (r SlotRange) Valid() bool { return r.Start <= r.End && r.End < slot.Count }

func (r SlotRange) String() string {
	if r.Start == r.End {
		return strconv.Itoa(int(r.Start))
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ParseSlotRange parses "start-end" or a single slot.
func ParseSlotRange(s string) (SlotRange, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	start, err := strconv.ParseUint(lo, 10, 16)
	if err != nil {
		return SlotRange{}, fmt.Errorf("parse slot range %q: %w", s, err)
	}
	end := start
	if found {
		if end, err = strconv.ParseUint(hi, 10, 16); err != nil {
			return SlotRange{}, fmt.Errorf("parse slot range %q: %w", s, err)
		}
	}
	r := SlotRange{Start: uint16(start), End: uint16(end)}
	if !r.Valid() {
		return SlotRange{}, fmt.Errorf("%w: slot range %s out of bounds", ErrInvalidTopology, r)
	}
	return r, nil
}

// Node is a member of the cluster. Nodes returned by a [Topology] belong to
// that snapshot and must not be modified.
type Node struct {
	ID        string      `json:"id" yaml:"id"`
	Host      string      `json:"host" yaml:"host"`
	Port      int         `json:"port" yaml:"port"`
	Role      Role        `json:"role" yaml:"role"`
	ReplicaOf string      `json:"replica_of,omitempty" yaml:"replica_of,omitempty"`
	Slots     []SlotRange `json:"slots,omitempty" yaml:"slots,omitempty"`
}

func (n *Node) Addr() string { return net.JoinHostPort(n.Host, strconv.Itoa(n.Port)) }

func (n *Node) IsPrimary() bool { return n.Role == RolePrimary }

// Owns reports whether the node owns s directly. Replicas own nothing.
func (n *Node) Owns(s uint16) bool {
	for _, r := range n.Slots {
		if r.Contains(s) {
			return true
		}
	}
	return false
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.ID, n.Addr())
}

func (n Node) clone() *Node {
	n.Slots = append([]SlotRange(nil), n.Slots...)
	return &n
}

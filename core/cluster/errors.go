package cluster

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/codewandler/slotr/core/topology"
)

var (
	// Transport errors
	ErrTransportClosed = errors.New("transport closed")
	ErrNodeUnreachable = errors.New("node unreachable")
	ErrAlreadyServed   = errors.New("node already served")

	// Routing errors, raised before any dispatch
	ErrUnknownCommand = errors.New("unknown command")
	ErrWrongClass     = errors.New("command class not allowed for this call")
	ErrNoKeys         = errors.New("no keys given")
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrCrossSlot      = errors.New("keys span multiple slots")
	ErrNoPrimaries    = errors.New("topology has no primaries")

	// Execution errors
	ErrPartialFailure  = errors.New("partial failure")
	ErrReplyMismatch   = errors.New("node replies differ")
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrClientClosed    = errors.New("client closed")
)

// CrossSlotError is returned when keys that must share a slot do not.
type CrossSlotError struct {
	Command string
	Keys    []string
	Slots   []uint16
}

func (e *CrossSlotError) Error() string {
	var b strings.Builder
	b.WriteString("CROSSSLOT ")
	b.WriteString(e.Command)
	b.WriteString(": keys span multiple slots:")
	for i, k := range e.Keys {
		fmt.Fprintf(&b, " %q=%d", k, e.Slots[i])
	}
	return b.String()
}

func (e *CrossSlotError) Is(target error) bool { return target == ErrCrossSlot }

// SlotNotCoveredError is returned when a key's slot has no primary.
type SlotNotCoveredError struct {
	Key  string
	Slot uint16
}

func (e *SlotNotCoveredError) Error() string {
	return fmt.Sprintf("key %q: slot %d: %s", e.Key, e.Slot, topology.ErrSlotNotCovered)
}

func (e *SlotNotCoveredError) Is(target error) bool { return target == topology.ErrSlotNotCovered }

// NodeError tags a transport or node error with the node that produced it.
type NodeError struct {
	NodeID string
	Addr   string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Addr, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// PartialFailure aggregates the failed sub-operations of one scatter-gather
// call. It unwraps to every NodeError it holds.
type PartialFailure struct {
	Command string
	Total   int
	Errors  []*NodeError
}

func (e *PartialFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d nodes failed", e.Command, len(e.Errors), e.Total)
	for _, ne := range e.Errors {
		b.WriteString("; ")
		b.WriteString(ne.Error())
	}
	return b.String()
}

func (e *PartialFailure) Is(target error) bool { return target == ErrPartialFailure }

func (e *PartialFailure) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, ne := range e.Errors {
		out[i] = ne
	}
	return out
}

// Nodes returns the ids of the failed nodes.
func (e *PartialFailure) Nodes() []string {
	out := make([]string, len(e.Errors))
	for i, ne := range e.Errors {
		out[i] = ne.NodeID
	}
	return out
}

// MovedError is returned by a node asked about a slot it does not own.
type MovedError struct {
	Slot uint16
	Addr string
}

func (e *MovedError) Error() string {
	return "MOVED " + strconv.Itoa(int(e.Slot)) + " " + e.Addr
}

// parseMoved restores a MovedError from its wire text.
func parseMoved(msg string) (*MovedError, bool) {
	f := strings.Fields(msg)
	if len(f) != 3 || f[0] != "MOVED" {
		return nil, false
	}
	s, err := strconv.ParseUint(f[1], 10, 16)
	if err != nil {
		return nil, false
	}
	return &MovedError{Slot: uint16(s), Addr: f[2]}, true
}

package topology

import "errors"

var (
	ErrTopologyUnavailable = errors.New("topology unavailable")
	ErrSlotNotCovered      = errors.New("slot not covered")
	ErrNodeNotFound        = errors.New("node not found")
	ErrInvalidTopology     = errors.New("invalid topology")
	ErrOverlappingSlots    = errors.New("overlapping slot ranges")
	ErrNoSource            = errors.New("no topology source configured")
)

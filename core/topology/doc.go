// Package topology models which node owns which hash slot.
//
// A [Topology] is an immutable snapshot: the full node set plus a lookup
// table of size [slot.Count] pointing every slot at its owning primary, or at
// nothing while a slot is between owners. Changes never mutate a snapshot;
// a refresh builds a new one and swaps it in atomically via [Holder], so a
// reader that captured a snapshot keeps a consistent view for the whole call.
//
// # Sources
//
// Snapshots come from a [Source]. The package ships a static source, a YAML
// file source ([LoadFile]) and [FirstOf] for trying several sources in order.
// Transport- and store-backed sources live next to their transports.
//
// # Failure semantics
//
// When a refresh fails, [Holder.Refresh] keeps the previous snapshot in force
// and returns an error matching [ErrTopologyUnavailable]. Slots without an
// owner resolve to [ErrSlotNotCovered].
package topology

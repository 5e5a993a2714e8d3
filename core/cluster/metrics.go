package cluster

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes.
type Timer interface {
	ObserveDuration()
}

// Route labels used by Metrics.
const (
	RouteSingle    = "single"
	RouteColocated = "colocated"
	RouteSplit     = "split"
	RouteCluster   = "cluster"
	RouteNode      = "node"
)

// Metrics defines the instrumentation hooks of the Client.
// All methods are thread-safe.
type Metrics interface {
	// Commands
	CommandDuration(cmd, route string) Timer
	CommandCompleted(cmd, route string, success bool)

	// FanOut records the number of nodes one call was dispatched to.
	FanOut(cmd string, nodes int)

	// NodeError kinds: unreachable, closed, canceled, moved, error
	NodeError(nodeID, kind string)

	// Routing rejections
	CrossSlotRejected(cmd string)
	SlotNotCovered()

	// Topology
	TopologyRefreshed(success bool)
	TopologyPrimaries(n int)
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a Timer that records nothing.
func NopTimer() Timer { return nopTimer{} }

type nopMetrics struct{}

func (nopMetrics) CommandDuration(string, string) Timer  { return nopTimer{} }
func (nopMetrics) CommandCompleted(string, string, bool) {}
func (nopMetrics) FanOut(string, int)                    {}
func (nopMetrics) NodeError(string, string)              {}
func (nopMetrics) CrossSlotRejected(string)              {}
func (nopMetrics) SlotNotCovered()                       {}
func (nopMetrics) TopologyRefreshed(bool)                {}
func (nopMetrics) TopologyPrimaries(int)                 {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }

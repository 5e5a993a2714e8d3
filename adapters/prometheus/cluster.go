package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/slotr/core/cluster"
)

// clusterMetrics implements cluster.Metrics using Prometheus.
type clusterMetrics struct {
	commandDuration   *prometheus.HistogramVec
	commandsTotal     *prometheus.CounterVec
	fanOut            *prometheus.HistogramVec
	nodeErrors        *prometheus.CounterVec
	crossSlotRejected *prometheus.CounterVec
	slotNotCovered    prometheus.Counter
	topologyRefreshes *prometheus.CounterVec
	topologyPrimaries prometheus.Gauge
}

// NewClusterMetrics creates a new Prometheus implementation of cluster.Metrics.
func NewClusterMetrics(reg prometheus.Registerer) cluster.Metrics {
	m := &clusterMetrics{
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slotr_command_duration_seconds",
			Help:    "Command latency in seconds, including fan-out and merge",
			Buckets: defaultBuckets,
		}, []string{"command", "route"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotr_commands_total",
			Help: "Total number of commands",
		}, []string{"command", "route", "success"}),

		fanOut: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slotr_fanout_nodes",
			Help:    "Number of nodes a scatter-gather call was dispatched to",
			Buckets: fanOutBuckets,
		}, []string{"command"}),

		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotr_node_errors_total",
			Help: "Total number of failed node calls",
		}, []string{"node_id", "kind"}),

		crossSlotRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotr_crossslot_rejected_total",
			Help: "Commands rejected because their keys span slots",
		}, []string{"command"}),

		slotNotCovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotr_slot_not_covered_total",
			Help: "Commands rejected because a slot has no primary",
		}),

		topologyRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotr_topology_refreshes_total",
			Help: "Total number of topology refresh attempts",
		}, []string{"success"}),

		topologyPrimaries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slotr_topology_primaries",
			Help: "Number of primaries in the current topology",
		}),
	}

	reg.MustRegister(
		m.commandDuration,
		m.commandsTotal,
		m.fanOut,
		m.nodeErrors,
		m.crossSlotRejected,
		m.slotNotCovered,
		m.topologyRefreshes,
		m.topologyPrimaries,
	)

	return m
}

func (m *clusterMetrics) CommandDuration(cmd, route string) cluster.Timer {
	return newTimer(m.commandDuration.WithLabelValues(cmd, route))
}

func (m *clusterMetrics) CommandCompleted(cmd, route string, success bool) {
	m.commandsTotal.WithLabelValues(cmd, route, boolToStr(success)).Inc()
}

func (m *clusterMetrics) FanOut(cmd string, nodes int) {
	m.fanOut.WithLabelValues(cmd).Observe(float64(nodes))
}

func (m *clusterMetrics) NodeError(nodeID, kind string) {
	m.nodeErrors.WithLabelValues(nodeID, kind).Inc()
}

func (m *clusterMetrics) CrossSlotRejected(cmd string) {
	m.crossSlotRejected.WithLabelValues(cmd).Inc()
}

func (m *clusterMetrics) SlotNotCovered() { m.slotNotCovered.Inc() }

func (m *clusterMetrics) TopologyRefreshed(success bool) {
	m.topologyRefreshes.WithLabelValues(boolToStr(success)).Inc()
}

func (m *clusterMetrics) TopologyPrimaries(n int) { m.topologyPrimaries.Set(float64(n)) }

var _ cluster.Metrics = (*clusterMetrics)(nil)

// Package prometheus provides the Prometheus implementation of
// cluster.Metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/slotr/core/cluster"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) cluster.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5,
}

// Fan-out buckets: number of nodes one call was dispatched to.
var fanOutBuckets = []float64{1, 2, 3, 4, 6, 8, 12, 16, 32, 64}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

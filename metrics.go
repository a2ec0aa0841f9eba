package sessionkit

import "sync/atomic"

// MetricID indexes one coordinator counter.
type MetricID uint8

const (
	// MetricSessionCreated counts successful Create calls.
	MetricSessionCreated MetricID = iota
	// MetricReadHit counts reads that returned a payload.
	MetricReadHit
	// MetricReadMiss counts reads of unknown or expired ids.
	MetricReadMiss
	// MetricSuperseded counts reads rejected because a newer login owns the
	// user's single-session slot.
	MetricSuperseded
	// MetricRotated counts successful rotations.
	MetricRotated
	// MetricDestroyed counts destroyed sessions.
	MetricDestroyed
	// MetricStoreError counts store calls that failed as unavailable.
	MetricStoreError
	// MetricTouchFailed counts sliding-expiration extensions that failed
	// without failing the read.
	MetricTouchFailed

	metricCount
)

var metricNames = [metricCount]string{
	MetricSessionCreated: "session_created",
	MetricReadHit:        "read_hit",
	MetricReadMiss:       "read_miss",
	MetricSuperseded:     "superseded",
	MetricRotated:        "rotated",
	MetricDestroyed:      "destroyed",
	MetricStoreError:     "store_error",
	MetricTouchFailed:    "touch_failed",
}

type metrics struct {
	counters [metricCount]atomic.Uint64
}

func (m *metrics) inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of the coordinator counters.
type MetricsSnapshot map[string]uint64

// Metrics returns a snapshot of the coordinator's operation counters.
func (c *Coordinator) Metrics() MetricsSnapshot {
	snap := make(MetricsSnapshot, metricCount)
	for id := MetricID(0); id < metricCount; id++ {
		snap[metricNames[id]] = c.metrics.counters[id].Load()
	}
	return snap
}

package gridstream

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    openCounter    prometheus.Counter
//	    batchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordBatch(rows int, duration time.Duration, err error) {
//	    p.batchHistogram.Observe(duration.Seconds())
//	    // ... record row count, error state, etc.
//	}
type MetricsCollector interface {
	// RecordOpen is called after each array open.
	// duration is the total time taken, err is nil if successful.
	RecordOpen(duration time.Duration, err error)

	// RecordBatch is called after each delivered batch.
	// rows is the batch row count, grows is the number of buffer growth
	// rounds the batch needed, duration is the time taken.
	RecordBatch(rows, grows int, duration time.Duration, err error)

	// RecordNNZ is called after each cell count.
	RecordNNZ(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(time.Duration, error)            {}
func (NoopMetricsCollector) RecordBatch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordNNZ(time.Duration, error)             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
	OpenTotalNanos  atomic.Int64
	BatchCount      atomic.Int64
	BatchErrors     atomic.Int64
	BatchRows       atomic.Int64
	BatchGrows      atomic.Int64
	BatchTotalNanos atomic.Int64
	NNZCount        atomic.Int64
	NNZErrors       atomic.Int64
}

func (c *BasicMetricsCollector) RecordOpen(duration time.Duration, err error) {
	c.OpenCount.Add(1)
	c.OpenTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		c.OpenErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordBatch(rows, grows int, duration time.Duration, err error) {
	c.BatchCount.Add(1)
	c.BatchRows.Add(int64(rows))
	c.BatchGrows.Add(int64(grows))
	c.BatchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		c.BatchErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordNNZ(duration time.Duration, err error) {
	c.NNZCount.Add(1)
	if err != nil {
		c.NNZErrors.Add(1)
	}
}

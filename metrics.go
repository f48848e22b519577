package distinctset

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
//	    appendCounter  prometheus.Counter
//	    mergeHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAppend(duration time.Duration, err error) {
//	    p.appendCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordAppend is called after each append operation.
	// duration is the total time taken, err is nil if successful.
	RecordAppend(duration time.Duration, err error)

	// RecordAppendBatch is called after each batch append.
	// appended is the number of elements added, skipped the number of
	// nulls passed over, duration is the total time taken.
	RecordAppendBatch(appended, skipped int, duration time.Duration)

	// RecordMerge is called after each merge of two partial aggregates.
	RecordMerge(duration time.Duration, err error)

	// RecordSerialize is called after each serialization.
	// size is the length of the produced state in bytes.
	RecordSerialize(size int, duration time.Duration, err error)

	// RecordDeserialize is called after each deserialization.
	RecordDeserialize(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAppend(time.Duration, error)         {}
func (NoopMetricsCollector) RecordAppendBatch(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordMerge(time.Duration, error)          {}
func (NoopMetricsCollector) RecordSerialize(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDeserialize(time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AppendCount       atomic.Int64
	AppendErrors      atomic.Int64
	AppendTotalNanos  atomic.Int64
	BatchCount        atomic.Int64
	BatchItems        atomic.Int64
	BatchSkipped      atomic.Int64
	MergeCount        atomic.Int64
	MergeErrors       atomic.Int64
	MergeTotalNanos   atomic.Int64
	SerializeCount    atomic.Int64
	SerializeErrors   atomic.Int64
	SerializeBytes    atomic.Int64
	DeserializeCount  atomic.Int64
	DeserializeErrors atomic.Int64
}

// RecordAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppend(duration time.Duration, err error) {
	b.AppendCount.Add(1)
	b.AppendTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AppendErrors.Add(1)
	}
}

// RecordAppendBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppendBatch(appended, skipped int, duration time.Duration) {
	b.BatchCount.Add(1)
	b.BatchItems.Add(int64(appended))
	b.BatchSkipped.Add(int64(skipped))
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(duration time.Duration, err error) {
	b.MergeCount.Add(1)
	b.MergeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MergeErrors.Add(1)
	}
}

// RecordSerialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSerialize(size int, duration time.Duration, err error) {
	b.SerializeCount.Add(1)
	b.SerializeBytes.Add(int64(size))
	if err != nil {
		b.SerializeErrors.Add(1)
	}
}

// RecordDeserialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDeserialize(duration time.Duration, err error) {
	b.DeserializeCount.Add(1)
	if err != nil {
		b.DeserializeErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AppendCount:       b.AppendCount.Load(),
		AppendErrors:      b.AppendErrors.Load(),
		AppendAvgNanos:    b.getAvgAppendNanos(),
		BatchCount:        b.BatchCount.Load(),
		BatchItems:        b.BatchItems.Load(),
		BatchSkipped:      b.BatchSkipped.Load(),
		MergeCount:        b.MergeCount.Load(),
		MergeErrors:       b.MergeErrors.Load(),
		SerializeCount:    b.SerializeCount.Load(),
		SerializeErrors:   b.SerializeErrors.Load(),
		SerializeBytes:    b.SerializeBytes.Load(),
		DeserializeCount:  b.DeserializeCount.Load(),
		DeserializeErrors: b.DeserializeErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAppendNanos() int64 {
	count := b.AppendCount.Load()
	if count == 0 {
		return 0
	}
	return b.AppendTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AppendCount       int64
	AppendErrors      int64
	AppendAvgNanos    int64
	BatchCount        int64
	BatchItems        int64
	BatchSkipped      int64
	MergeCount        int64
	MergeErrors       int64
	SerializeCount    int64
	SerializeErrors   int64
	SerializeBytes    int64
	DeserializeCount  int64
	DeserializeErrors int64
}

package distinctset

import (
	"log/slog"

	"github.com/hupe1980/distinctset/alloc"
	"github.com/hupe1980/distinctset/persistence"
	"github.com/hupe1980/distinctset/set"
)

type options struct {
	allocator        alloc.Allocator
	growth           set.GrowthPolicy
	compression      persistence.Compression
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Aggregator constructor behavior.
type Option func(*options)

// WithAllocator configures the buffer allocator. Use an alloc.Arena to
// bound and bulk-release aggregation memory.
//
// If nil is passed, alloc.Default is used.
func WithAllocator(a alloc.Allocator) Option {
	return func(o *options) {
		if a == nil {
			a = alloc.Default
		}
		o.allocator = a
	}
}

// WithGrowth tunes buffer growth. Zero fields take their defaults.
//
// Example:
//
//	agg, _ := distinctset.New(8, distinctset.WithGrowth(set.GrowthPolicy{
//	    InitialBytes: 4096, // skip the small-buffer ramp-up
//	}))
func WithGrowth(g set.GrowthPolicy) Option {
	return func(o *options) {
		o.growth = g
	}
}

// WithCompression configures the compression used by SaveSnapshot.
// Defaults to persistence.CompressionNone.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &distinctset.BasicMetricsCollector{}
//	agg, _ := distinctset.New(4, distinctset.WithMetricsCollector(metrics))
//	// ... use agg ...
//	stats := metrics.GetStats()
//	fmt.Printf("Appends: %d, Avg latency: %dns\n", stats.AppendCount, stats.AppendAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := distinctset.NewJSONLogger(slog.LevelInfo)
//	agg, _ := distinctset.New(4, distinctset.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		allocator:        alloc.Default,
		compression:      persistence.CompressionNone,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

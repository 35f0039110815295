package shardq

import (
	"time"

	"github.com/shardq/shardq/model"
)

type options struct {
	logger           *Logger
	stats            StatsCollector
	defaultTimeout   time.Duration
	defaultBatchSize int
	shardingFn       model.ShardingFunc
}

// Option configures Router construction.
type Option func(*options)

// WithLogger configures structured logging. Nil restores the no-op logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithStats configures the stats sink. Nil restores the no-op collector.
func WithStats(s StatsCollector) Option {
	return func(o *options) {
		if s == nil {
			s = NoopStatsCollector{}
		}
		o.stats = s
	}
}

// WithDefaultTimeout configures the per-RPC timeout applied when a call
// does not carry its own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// WithDefaultBatchSize configures the per-partition fetch round size for
// reads that do not set one.
func WithDefaultBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.defaultBatchSize = n
		}
	}
}

// WithShardingFunc overrides the built-in hash used when a space declares
// no custom sharding function. Tests use this to pin tuples to partitions.
func WithShardingFunc(fn model.ShardingFunc) Option {
	return func(o *options) {
		o.shardingFn = fn
	}
}

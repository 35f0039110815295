package shardq

import (
	"time"

	"github.com/shardq/shardq/model"
)

// CallOptions carry the per-call knobs common to router operations.
// Write calls use Timeout, BucketID and Fields; reads additionally use
// First, After, BatchSize and ForceMapCall.
type CallOptions struct {
	// Timeout bounds every storage RPC issued by the call. Zero means
	// the router default.
	Timeout time.Duration

	// BucketID overrides bucket resolution. A conflict with an id
	// already embedded in a tuple fails the call.
	BucketID *uint64

	// Fields narrows the returned columns. Index and primary key columns
	// are still fetched internally for merging and pagination.
	Fields []string

	// First is the signed result limit for reads: 0 = unlimited,
	// negative = tail mode (requires After).
	First int

	// After is the resume tuple for paginated reads.
	After model.Tuple

	// BatchSize caps tuples per partition per RPC round.
	BatchSize int

	// ForceMapCall skips the single-partition fast path.
	ForceMapCall bool
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithTimeout bounds each storage RPC issued by this call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *CallOptions) { o.Timeout = d }
}

// WithBucketID overrides bucket resolution for this call.
func WithBucketID(id uint64) CallOption {
	return func(o *CallOptions) { o.BucketID = &id }
}

// WithFields projects the result onto the named columns, in order.
func WithFields(fields ...string) CallOption {
	return func(o *CallOptions) { o.Fields = fields }
}

// WithFirst limits a read to n results; negative n selects tail mode and
// requires WithAfter.
func WithFirst(n int) CallOption {
	return func(o *CallOptions) { o.First = n }
}

// WithAfter resumes a read after the given tuple.
func WithAfter(t model.Tuple) CallOption {
	return func(o *CallOptions) { o.After = t }
}

// WithBatchSize caps tuples per partition per fetch round.
func WithBatchSize(n int) CallOption {
	return func(o *CallOptions) { o.BatchSize = n }
}

// WithForceMapCall fans the read out to every partition even when a
// single-partition plan would be possible.
func WithForceMapCall() CallOption {
	return func(o *CallOptions) { o.ForceMapCall = true }
}

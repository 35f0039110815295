package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shardq/shardq/model"
)

// Direction is the scan direction of a select call.
type Direction int

const (
	// Forward iterates in ascending active-index key order.
	Forward Direction = iota
	// Reverse iterates in descending active-index key order.
	Reverse
)

// CallOptions accompany every storage RPC.
//
// SchemaVersion is the router's cached fingerprint for the target space;
// a node holding a newer schema rejects the call with KindSchemaMismatch
// so the router can refresh and retry.
type CallOptions struct {
	Timeout       time.Duration
	RequestID     string
	SchemaVersion uint64
}

// NewCallOptions builds call options with a fresh request id for
// correlation across partitions.
func NewCallOptions(timeout time.Duration, schemaVersion uint64) CallOptions {
	return CallOptions{
		Timeout:       timeout,
		RequestID:     uuid.NewString(),
		SchemaVersion: schemaVersion,
	}
}

// SelectRequest describes one per-partition scan round.
//
// AfterKey is an exclusive bound on the active index key: Forward scans
// return keys strictly greater, Reverse scans strictly less. Conditions
// other than the one backing the index are applied node-side as a filter
// where the node supports it, and router-side otherwise.
type SelectRequest struct {
	Space      string
	Index      string
	Direction  Direction
	Conditions []model.Condition
	AfterKey   model.Tuple
	AfterPK    model.Tuple
	Limit      int
}

// Node is the RPC surface of one storage partition.
//
// Calls suspend the caller until a response or the per-call timeout; an
// absent response within the timeout is a KindTimeout error,
// indistinguishable from transport loss. Within one node writes apply in
// submission order and selects return locally sorted sequences.
type Node interface {
	// ID identifies the partition, stable across calls.
	ID() string

	Insert(ctx context.Context, space string, t model.Tuple, opts CallOptions) (model.Tuple, error)
	Replace(ctx context.Context, space string, t model.Tuple, opts CallOptions) (model.Tuple, error)
	Update(ctx context.Context, space string, key model.Tuple, ops []model.UpdateOp, opts CallOptions) (model.Tuple, error)
	Upsert(ctx context.Context, space string, t model.Tuple, ops []model.UpdateOp, opts CallOptions) (model.Tuple, error)
	Delete(ctx context.Context, space string, key model.Tuple, opts CallOptions) (model.Tuple, error)
	Get(ctx context.Context, space string, key model.Tuple, opts CallOptions) (model.Tuple, error)

	// BatchInsert applies the sub-batch as one local atomic transaction
	// with prefix semantics: tuples apply in submitted order; on the first
	// failure the already-applied prefix still commits and is returned
	// together with an *Error carrying the offending tuple.
	BatchInsert(ctx context.Context, space string, tuples []model.Tuple, opts CallOptions) ([]model.Tuple, error)

	// BatchUpsert is BatchInsert with per-tuple update operations applied
	// when the key already exists. Same prefix semantics.
	BatchUpsert(ctx context.Context, space string, tuples []model.Tuple, ops [][]model.UpdateOp, opts CallOptions) ([]model.Tuple, error)

	Select(ctx context.Context, req SelectRequest, opts CallOptions) ([]model.Tuple, error)
	Len(ctx context.Context, space string, opts CallOptions) (uint64, error)
	Truncate(ctx context.Context, space string, opts CallOptions) error

	// Schema returns the node's current definition of a space.
	Schema(ctx context.Context, space string, opts CallOptions) (*model.Space, error)

	// ShardingMetadata returns the cluster sharding metadata keyed by
	// space name. Spaces absent from the map shard by primary key with
	// the built-in hash.
	ShardingMetadata(ctx context.Context, opts CallOptions) (map[string]model.ShardingInfo, error)
}

// Topology is the partition map consumed by the router.
//
// Membership and rebalancing live behind this interface; the router only
// resolves buckets to nodes and enumerates partitions for fan-out.
type Topology interface {
	// Route resolves the node owning a bucket id.
	Route(bucket uint64) (Node, error)

	// Nodes lists all partitions, stable order.
	Nodes() []Node

	// BucketCount is the size of the bucket space.
	BucketCount() uint64
}

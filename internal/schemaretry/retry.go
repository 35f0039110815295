// Package schemaretry recovers from stale-schema rejections.
//
// A storage node that moved to a newer schema rejects calls carrying the
// router's cached fingerprint with a tagged stale-schema kind. The wrapper
// invalidates the router's caches for that space and re-runs the
// operation exactly once; a second rejection surfaces verbatim, bounding
// retry storms under concurrent schema change. Transient network errors
// are the transport's problem, not retried here.
package schemaretry

import (
	"context"

	"github.com/shardq/shardq/storage"
)

// Invalidator drops process-local schema and sharding caches for a space.
type Invalidator interface {
	InvalidateSchema(space string)
}

// Do runs fn, retrying once after a cache invalidation if the error chain
// carries a stale-schema kind.
func Do[T any](ctx context.Context, inv Invalidator, space string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || !storage.IsStaleSchema(err) {
		return v, err
	}
	inv.InvalidateSchema(space)
	return fn(ctx)
}

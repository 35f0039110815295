package shardq

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shardq/shardq/internal/schemaretry"
	"github.com/shardq/shardq/storage"
)

// Len returns the total number of rows in a space, summed across
// partitions. Best effort: there is no cross-partition snapshot, so rows
// moving during the call may be counted on either side.
func (r *Router) Len(ctx context.Context, space string, optFns ...CallOption) (uint64, error) {
	start := time.Now()
	o := r.callOpts(optFns)

	total, err := schemaretry.Do(ctx, r, space, func(ctx context.Context) (uint64, error) {
		sp, err := r.schema(ctx, space)
		if err != nil {
			return 0, err
		}

		var sum atomic.Uint64
		g, gctx := errgroup.WithContext(ctx)
		for _, node := range r.topo.Nodes() {
			g.Go(func() error {
				cctx, cancel := context.WithTimeout(gctx, o.Timeout)
				defer cancel()
				opts := storage.NewCallOptions(o.Timeout, sp.SchemaVersion)
				n, err := node.Len(cctx, space, opts)
				if err != nil {
					return storage.AsError(err, node.ID(), opts.RequestID)
				}
				sum.Add(n)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
		return sum.Load(), nil
	})
	err = r.translateError(space, err)
	r.record(ctx, OpLen, space, start, err)
	return total, err
}

// Truncate removes all rows of a space on every partition. All
// partitions must acknowledge; the first failure fails the call (some
// partitions may already be truncated).
func (r *Router) Truncate(ctx context.Context, space string, optFns ...CallOption) error {
	start := time.Now()
	o := r.callOpts(optFns)

	_, err := schemaretry.Do(ctx, r, space, func(ctx context.Context) (struct{}, error) {
		sp, err := r.schema(ctx, space)
		if err != nil {
			return struct{}{}, err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, node := range r.topo.Nodes() {
			g.Go(func() error {
				cctx, cancel := context.WithTimeout(gctx, o.Timeout)
				defer cancel()
				opts := storage.NewCallOptions(o.Timeout, sp.SchemaVersion)
				if err := node.Truncate(cctx, space, opts); err != nil {
					return storage.AsError(err, node.ID(), opts.RequestID)
				}
				return nil
			})
		}
		return struct{}{}, g.Wait()
	})
	err = r.translateError(space, err)
	r.record(ctx, OpTruncate, space, start, err)
	return err
}

package shardq

import (
	"context"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shardq/shardq/internal/scatter"
	"github.com/shardq/shardq/internal/schemaretry"
	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
)

// Select runs a distributed read and returns the merged, totally ordered
// result. Routing goes to a single partition when the conditions pin the
// sharding key (or WithBucketID is given); otherwise the read fans out to
// every partition and the locally sorted partials are k-way merged.
//
// WithFirst limits the result; a negative value selects tail mode, which
// iterates backwards from WithAfter and still returns ascending order.
func (r *Router) Select(ctx context.Context, space string, conds []model.Condition, optFns ...CallOption) ([]model.Tuple, error) {
	start := time.Now()
	o := r.callOpts(optFns)

	if err := model.ValidateConditions(conds); err != nil {
		err = &ValidationError{cause: err}
		r.record(ctx, OpSelect, space, start, err)
		return nil, err
	}

	res, err := schemaretry.Do(ctx, r, space, func(ctx context.Context) ([]model.Tuple, error) {
		sp, err := r.schema(ctx, space)
		if err != nil {
			return nil, err
		}
		tuples, err := r.scatter.Select(ctx, r.scatterRequest(sp, conds, o))
		if err != nil {
			return nil, err
		}
		return model.CutTuples(tuples, sp, o.Fields)
	})
	err = r.translateError(space, err)
	r.record(ctx, OpSelect, space, start, err)
	return res, err
}

// Pairs returns the same merged sequence as Select, lazily: each step may
// suspend on an additional per-partition fetch round bounded by
// WithBatchSize. The sequence is finite and single-use; range over the
// Pairs result again to restart from the beginning.
//
// A stale-schema rejection surfaces as an iteration error rather than
// being retried: a generator cannot re-run its consumed prefix without
// duplicating side effects for the caller.
func (r *Router) Pairs(ctx context.Context, space string, conds []model.Condition, optFns ...CallOption) iter.Seq2[model.Tuple, error] {
	o := r.callOpts(optFns)

	return func(yield func(model.Tuple, error) bool) {
		start := time.Now()
		var callErr error
		defer func() {
			r.record(ctx, OpPairs, space, start, callErr)
		}()

		if err := model.ValidateConditions(conds); err != nil {
			callErr = &ValidationError{cause: err}
			yield(nil, callErr)
			return
		}
		sp, err := r.schema(ctx, space)
		if err != nil {
			callErr = r.translateError(space, err)
			yield(nil, callErr)
			return
		}

		for t, err := range r.scatter.Stream(ctx, r.scatterRequest(sp, conds, o)) {
			if err != nil {
				callErr = r.translateError(space, err)
				yield(nil, callErr)
				return
			}
			if len(o.Fields) > 0 {
				if t, err = model.CutTuple(t, sp, o.Fields); err != nil {
					callErr = err
					yield(nil, err)
					return
				}
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

// Min returns the smallest tuple of a space by the named index (empty
// name = primary). Nil result means the space is empty.
func (r *Router) Min(ctx context.Context, space, index string, optFns ...CallOption) (model.Tuple, error) {
	return r.extremum(ctx, OpMin, space, index, storage.Forward, optFns)
}

// Max returns the largest tuple of a space by the named index (empty
// name = primary). Nil result means the space is empty.
func (r *Router) Max(ctx context.Context, space, index string, optFns ...CallOption) (model.Tuple, error) {
	return r.extremum(ctx, OpMax, space, index, storage.Reverse, optFns)
}

func (r *Router) scatterRequest(sp *model.Space, conds []model.Condition, o CallOptions) scatter.Request {
	return scatter.Request{
		Space:         sp,
		Conditions:    conds,
		First:         o.First,
		After:         o.After,
		BatchSize:     o.BatchSize,
		BucketID:      o.BucketID,
		ForceMap:      o.ForceMapCall,
		Timeout:       o.Timeout,
		SchemaVersion: sp.SchemaVersion,
	}
}

// extremum fans a limit-1 scan out to every partition and reduces the
// per-partition extrema, tie-broken by node id for determinism.
func (r *Router) extremum(ctx context.Context, op Operation, space, index string, dir storage.Direction, optFns []CallOption) (model.Tuple, error) {
	start := time.Now()
	o := r.callOpts(optFns)

	res, err := schemaretry.Do(ctx, r, space, func(ctx context.Context) (model.Tuple, error) {
		sp, err := r.schema(ctx, space)
		if err != nil {
			return nil, err
		}
		idx, ok := sp.IndexByName(index)
		if !ok {
			return nil, &ValidationError{cause: errUnknownIndex(space, index)}
		}

		heads, err := r.fanOut(ctx, sp, func(ctx context.Context, node storage.Node, opts storage.CallOptions) ([]model.Tuple, error) {
			return node.Select(ctx, storage.SelectRequest{
				Space:     space,
				Index:     idx.Name,
				Direction: dir,
				Limit:     1,
			}, opts)
		}, o)
		if err != nil {
			return nil, err
		}

		var best model.Tuple
		for _, tuples := range heads {
			if len(tuples) == 0 {
				continue
			}
			t := tuples[0]
			if best == nil {
				best = t
				continue
			}
			c, err := model.CompareKeys(model.IndexKey(t, idx), model.IndexKey(best, idx))
			if err != nil {
				return nil, err
			}
			if (dir == storage.Forward && c < 0) || (dir == storage.Reverse && c > 0) {
				best = t
			}
		}
		if best == nil || len(o.Fields) == 0 {
			return best, nil
		}
		return model.CutTuple(best, sp, o.Fields)
	})
	err = r.translateError(space, err)
	r.record(ctx, op, space, start, err)
	return res, err
}

// fanOut issues one call per partition concurrently and joins; any
// partition failure fails the whole read.
func (r *Router) fanOut(ctx context.Context, sp *model.Space,
	call func(ctx context.Context, node storage.Node, opts storage.CallOptions) ([]model.Tuple, error),
	o CallOptions,
) ([][]model.Tuple, error) {
	nodes := r.topo.Nodes()
	out := make([][]model.Tuple, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	for i, node := range nodes {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, o.Timeout)
			defer cancel()
			opts := storage.NewCallOptions(o.Timeout, sp.SchemaVersion)
			tuples, err := call(cctx, node, opts)
			if err != nil {
				return storage.AsError(err, node.ID(), opts.RequestID)
			}
			out[i] = tuples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type unknownIndexError struct {
	space, index string
}

func errUnknownIndex(space, index string) error {
	return &unknownIndexError{space: space, index: index}
}

func (e *unknownIndexError) Error() string {
	return "unknown index " + e.index + " in space " + e.space
}

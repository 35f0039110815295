package shardq

import (
	"context"
	"fmt"
	"time"

	batchexec "github.com/shardq/shardq/internal/batch"
	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
)

// BatchInsert writes a batch across partitions.
//
// Per-partition sub-batches apply as one local atomic transaction with
// prefix semantics; partitions are independent of each other. The
// returned rows are the union of applied rows across partitions. On any
// partition failure the error is a *BatchError with one entry per failing
// partition carrying the offending tuple — partial success and the error
// are returned together.
func (r *Router) BatchInsert(ctx context.Context, space string, tuples []model.Tuple, optFns ...CallOption) ([]model.Tuple, error) {
	return r.batchWrite(ctx, OpBatchInsert, space, tuples, nil, optFns)
}

// BatchInsertObjects is BatchInsert for field-name keyed objects.
func (r *Router) BatchInsertObjects(ctx context.Context, space string, objs []model.Object, optFns ...CallOption) ([]model.Tuple, error) {
	start := time.Now()
	sp, err := r.schema(ctx, space)
	if err != nil {
		err = r.translateError(space, err)
		r.record(ctx, OpBatchInsert, space, start, err)
		return nil, err
	}
	tuples := make([]model.Tuple, len(objs))
	for i, obj := range objs {
		t, err := obj.ToTuple(sp)
		if err != nil {
			err = &ValidationError{cause: err}
			r.record(ctx, OpBatchInsert, space, start, err)
			return nil, err
		}
		tuples[i] = t
	}
	return r.batchWrite(ctx, OpBatchInsert, space, tuples, nil, optFns)
}

// BatchUpsert writes a batch where each tuple carries update operations
// applied instead when its primary key already exists. Same partial
// failure contract as BatchInsert.
func (r *Router) BatchUpsert(ctx context.Context, space string, tuples []model.Tuple, ops [][]model.UpdateOp, optFns ...CallOption) ([]model.Tuple, error) {
	if len(ops) != len(tuples) {
		return nil, &ValidationError{cause: fmt.Errorf("got %d tuples but %d operation lists", len(tuples), len(ops))}
	}
	for i, opList := range ops {
		if err := model.ValidateUpdateOps(opList); err != nil {
			return nil, &ValidationError{cause: fmt.Errorf("tuple %d: %w", i, err)}
		}
	}
	return r.batchWrite(ctx, OpBatchUpsert, space, tuples, ops, optFns)
}

func (r *Router) batchWrite(ctx context.Context, op Operation, space string, tuples []model.Tuple, ops [][]model.UpdateOp, optFns []CallOption) ([]model.Tuple, error) {
	start := time.Now()
	o := r.callOpts(optFns)

	if len(tuples) == 0 {
		r.record(ctx, op, space, start, nil)
		return nil, nil
	}

	run := func(ctx context.Context) (*batchexec.Result, error) {
		sp, err := r.schema(ctx, space)
		if err != nil {
			return nil, err
		}
		return r.batch.Execute(ctx, batchexec.Request{
			Space:         sp,
			Tuples:        tuples,
			Ops:           ops,
			BucketID:      o.BucketID,
			Timeout:       o.Timeout,
			SchemaVersion: sp.SchemaVersion,
		})
	}

	res, err := run(ctx)

	// A whole-batch stale-schema rejection commits nothing (the version
	// check precedes application), so one retry after invalidation is
	// safe even for writes. Anything partially applied is not retried.
	if err == nil && len(res.Rows) == 0 && len(res.Errors) > 0 && allStale(res.Errors) {
		r.InvalidateSchema(space)
		res, err = run(ctx)
	} else if err != nil && storage.IsStaleSchema(err) {
		r.InvalidateSchema(space)
		res, err = run(ctx)
	}

	if err != nil {
		err = r.translateError(space, err)
		r.record(ctx, op, space, start, err)
		return nil, err
	}

	var batchErr error
	if len(res.Errors) > 0 {
		batchErr = &BatchError{Partitions: res.Errors}
	}
	r.record(ctx, op, space, start, batchErr)
	r.logger.LogBatch(ctx, op, space, len(res.Rows), len(res.Errors))
	return res.Rows, batchErr
}

func allStale(errs []*storage.Error) bool {
	for _, e := range errs {
		if !storage.IsStaleSchema(e) {
			return false
		}
	}
	return true
}

package shardq

import (
	"context"
	"time"

	"github.com/shardq/shardq/internal/schemaretry"
	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
)

// Insert writes a new tuple, failing on a duplicate primary key.
//
// The bucket id is resolved from the sharding key (or taken from the
// tuple/option) and injected into the tuple's bucket_id slot; the caller's
// tuple is never mutated.
func (r *Router) Insert(ctx context.Context, space string, t model.Tuple, optFns ...CallOption) (model.Tuple, error) {
	return r.tupleWrite(ctx, OpInsert, space, t, nil, optFns)
}

// InsertObject is Insert for a field-name keyed object.
func (r *Router) InsertObject(ctx context.Context, space string, obj model.Object, optFns ...CallOption) (model.Tuple, error) {
	return r.objectWrite(ctx, OpInsert, space, obj, optFns)
}

// Replace writes a tuple, overwriting any existing row with the same
// primary key.
func (r *Router) Replace(ctx context.Context, space string, t model.Tuple, optFns ...CallOption) (model.Tuple, error) {
	return r.tupleWrite(ctx, OpReplace, space, t, nil, optFns)
}

// ReplaceObject is Replace for a field-name keyed object.
func (r *Router) ReplaceObject(ctx context.Context, space string, obj model.Object, optFns ...CallOption) (model.Tuple, error) {
	return r.objectWrite(ctx, OpReplace, space, obj, optFns)
}

// Upsert inserts the tuple or, when the primary key exists, applies the
// update operations to the stored row instead.
func (r *Router) Upsert(ctx context.Context, space string, t model.Tuple, ops []model.UpdateOp, optFns ...CallOption) (model.Tuple, error) {
	if err := model.ValidateUpdateOps(ops); err != nil {
		return nil, &ValidationError{cause: err}
	}
	return r.tupleWrite(ctx, OpUpsert, space, t, ops, optFns)
}

// UpsertObject is Upsert for a field-name keyed object.
func (r *Router) UpsertObject(ctx context.Context, space string, obj model.Object, ops []model.UpdateOp, optFns ...CallOption) (model.Tuple, error) {
	if err := model.ValidateUpdateOps(ops); err != nil {
		return nil, &ValidationError{cause: err}
	}
	start := time.Now()
	res, err := r.withSchema(ctx, space, func(ctx context.Context, sp *model.Space) (model.Tuple, error) {
		t, err := obj.ToTuple(sp)
		if err != nil {
			return nil, &ValidationError{cause: err}
		}
		return r.routeWrite(ctx, OpUpsert, sp, t, ops, r.callOpts(optFns))
	})
	err = r.translateError(space, err)
	r.record(ctx, OpUpsert, space, start, err)
	return res, err
}

// Update applies update operations to the row addressed by primary key.
// Returns the updated tuple, or nil when the key does not exist.
func (r *Router) Update(ctx context.Context, space string, key model.Tuple, ops []model.UpdateOp, optFns ...CallOption) (model.Tuple, error) {
	if err := model.ValidateUpdateOps(ops); err != nil {
		return nil, &ValidationError{cause: err}
	}
	return r.keyOp(ctx, OpUpdate, space, key, optFns, func(ctx context.Context, node storage.Node, sp *model.Space, opts storage.CallOptions) (model.Tuple, error) {
		return node.Update(ctx, space, key, ops, opts)
	})
}

// Delete removes the row addressed by primary key. Returns the deleted
// tuple, or nil when the key does not exist.
func (r *Router) Delete(ctx context.Context, space string, key model.Tuple, optFns ...CallOption) (model.Tuple, error) {
	return r.keyOp(ctx, OpDelete, space, key, optFns, func(ctx context.Context, node storage.Node, sp *model.Space, opts storage.CallOptions) (model.Tuple, error) {
		return node.Delete(ctx, space, key, opts)
	})
}

// Get reads the row addressed by primary key. Returns nil when the key
// does not exist.
func (r *Router) Get(ctx context.Context, space string, key model.Tuple, optFns ...CallOption) (model.Tuple, error) {
	return r.keyOp(ctx, OpGet, space, key, optFns, func(ctx context.Context, node storage.Node, sp *model.Space, opts storage.CallOptions) (model.Tuple, error) {
		return node.Get(ctx, space, key, opts)
	})
}

// tupleWrite runs a bucket-routed single-tuple write with schema retry.
func (r *Router) tupleWrite(ctx context.Context, op Operation, space string, t model.Tuple, ops []model.UpdateOp, optFns []CallOption) (model.Tuple, error) {
	start := time.Now()
	o := r.callOpts(optFns)
	res, err := r.withSchema(ctx, space, func(ctx context.Context, sp *model.Space) (model.Tuple, error) {
		return r.routeWrite(ctx, op, sp, t, ops, o)
	})
	if err == nil && len(o.Fields) > 0 {
		if sp, serr := r.schema(ctx, space); serr == nil {
			res, err = cutResult(res, sp, o.Fields)
		}
	}
	err = r.translateError(space, err)
	r.record(ctx, op, space, start, err)
	return res, err
}

func (r *Router) objectWrite(ctx context.Context, op Operation, space string, obj model.Object, optFns []CallOption) (model.Tuple, error) {
	start := time.Now()
	o := r.callOpts(optFns)
	res, err := r.withSchema(ctx, space, func(ctx context.Context, sp *model.Space) (model.Tuple, error) {
		t, err := obj.ToTuple(sp)
		if err != nil {
			return nil, &ValidationError{cause: err}
		}
		return r.routeWrite(ctx, op, sp, t, nil, o)
	})
	err = r.translateError(space, err)
	r.record(ctx, op, space, start, err)
	return res, err
}

// routeWrite resolves the bucket on a cloned tuple and issues the RPC.
func (r *Router) routeWrite(ctx context.Context, op Operation, sp *model.Space, t model.Tuple, ops []model.UpdateOp, o CallOptions) (model.Tuple, error) {
	tt := t.Clone()
	id, err := r.resolver.ForTuple(ctx, sp, tt, o.BucketID)
	if err != nil {
		return nil, err
	}
	node, err := r.topo.Route(id)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	opts := storage.NewCallOptions(o.Timeout, sp.SchemaVersion)

	var res model.Tuple
	switch op {
	case OpInsert:
		res, err = node.Insert(cctx, sp.Name, tt, opts)
	case OpReplace:
		res, err = node.Replace(cctx, sp.Name, tt, opts)
	case OpUpsert:
		res, err = node.Upsert(cctx, sp.Name, tt, ops, opts)
	default:
		return nil, storage.NewError(storage.KindInternal, "unsupported write op "+string(op))
	}
	if err != nil {
		return nil, storage.AsError(err, node.ID(), opts.RequestID)
	}
	return res, nil
}

// keyOp runs a primary-key routed operation with schema retry.
func (r *Router) keyOp(ctx context.Context, op Operation, space string, key model.Tuple, optFns []CallOption,
	call func(ctx context.Context, node storage.Node, sp *model.Space, opts storage.CallOptions) (model.Tuple, error),
) (model.Tuple, error) {
	start := time.Now()
	o := r.callOpts(optFns)
	res, err := r.withSchema(ctx, space, func(ctx context.Context, sp *model.Space) (model.Tuple, error) {
		id, err := r.resolver.ForPrimaryKey(ctx, sp, key, o.BucketID)
		if err != nil {
			return nil, err
		}
		node, err := r.topo.Route(id)
		if err != nil {
			return nil, err
		}
		cctx, cancel := context.WithTimeout(ctx, o.Timeout)
		defer cancel()
		opts := storage.NewCallOptions(o.Timeout, sp.SchemaVersion)
		res, err := call(cctx, node, sp, opts)
		if err != nil {
			return nil, storage.AsError(err, node.ID(), opts.RequestID)
		}
		return res, nil
	})
	if err == nil && len(o.Fields) > 0 {
		if sp, serr := r.schema(ctx, space); serr == nil {
			res, err = cutResult(res, sp, o.Fields)
		}
	}
	err = r.translateError(space, err)
	r.record(ctx, op, space, start, err)
	return res, err
}

// withSchema resolves the space schema and runs fn under the stale-schema
// retry wrapper: one invalidation and re-run, then verbatim failure.
func (r *Router) withSchema(ctx context.Context, space string, fn func(ctx context.Context, sp *model.Space) (model.Tuple, error)) (model.Tuple, error) {
	return schemaretry.Do(ctx, r, space, func(ctx context.Context) (model.Tuple, error) {
		sp, err := r.schema(ctx, space)
		if err != nil {
			return nil, err
		}
		return fn(ctx, sp)
	})
}

func cutResult(t model.Tuple, sp *model.Space, fields []string) (model.Tuple, error) {
	if t == nil {
		return nil, nil
	}
	return model.CutTuple(t, sp, fields)
}

// Package batch executes multi-partition writes with per-partition
// atomicity and well-defined partial failure.
//
// Tuples are grouped by their resolved bucket's partition; each partition
// receives its sub-batch as one local atomic transaction with prefix
// semantics. Partitions are awaited independently: one partition failing
// or timing out neither blocks nor cancels the others. The aggregate is
// the union of applied rows plus at most one structured error per failing
// partition.
package batch

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shardq/shardq/internal/bucket"
	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
)

// Request is one batch write.
type Request struct {
	Space  *model.Space
	Tuples []model.Tuple

	// Ops holds per-tuple update operations for upserts; nil for inserts.
	Ops [][]model.UpdateOp

	BucketID *uint64

	Timeout       time.Duration
	SchemaVersion uint64
}

// Result aggregates partial success across partitions.
//
// Rows carry no cross-partition order guarantee; they are concatenated in
// ascending node id order so repeated runs are comparable. Errors holds
// at most one entry per partition.
type Result struct {
	Rows   []model.Tuple
	Errors []*storage.Error
}

// Executor runs batch writes against a topology.
type Executor struct {
	topo     storage.Topology
	resolver *bucket.Resolver
}

// New builds an executor.
func New(topo storage.Topology, resolver *bucket.Resolver) *Executor {
	return &Executor{topo: topo, resolver: resolver}
}

type group struct {
	node   storage.Node
	tuples []model.Tuple
	ops    [][]model.UpdateOp

	rows []model.Tuple
	err  *storage.Error
}

// Execute resolves, groups and applies the batch.
//
// Any bucket resolution error aborts the whole call before a single RPC
// is issued; after that point partial failure is collected, never raised.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	groups := make(map[string]*group)

	for i := range req.Tuples {
		t := req.Tuples[i].Clone()
		id, err := e.resolver.ForTuple(ctx, req.Space, t, req.BucketID)
		if err != nil {
			return nil, err
		}
		node, err := e.topo.Route(id)
		if err != nil {
			return nil, err
		}
		g, ok := groups[node.ID()]
		if !ok {
			g = &group{node: node}
			groups[node.ID()] = g
		}
		g.tuples = append(g.tuples, t)
		if req.Ops != nil {
			g.ops = append(g.ops, req.Ops[i])
		}
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].node.ID() < ordered[j].node.ID()
	})

	// One sub-batch per partition, dispatched concurrently and awaited
	// independently: the errgroup only joins, failures stay inside each
	// group so no partition can cancel a sibling.
	var wg errgroup.Group
	for _, g := range ordered {
		wg.Go(func() error {
			g.apply(ctx, req)
			return nil
		})
	}
	_ = wg.Wait()

	res := &Result{}
	for _, g := range ordered {
		res.Rows = append(res.Rows, g.rows...)
		if g.err != nil {
			res.Errors = append(res.Errors, g.err)
		}
	}
	return res, nil
}

func (g *group) apply(ctx context.Context, req Request) {
	cctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	opts := storage.NewCallOptions(req.Timeout, req.SchemaVersion)

	var rows []model.Tuple
	var err error
	if req.Ops != nil {
		rows, err = g.node.BatchUpsert(cctx, req.Space.Name, g.tuples, g.ops, opts)
	} else {
		rows, err = g.node.BatchInsert(cctx, req.Space.Name, g.tuples, opts)
	}

	// A partition may contribute both an applied prefix and an error.
	g.rows = rows
	if err != nil {
		g.err = storage.AsError(err, g.node.ID(), opts.RequestID).WithSpace(req.Space.Name)
	}
}

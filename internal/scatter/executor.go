// Package scatter plans and executes distributed reads.
//
// A read either routes to the single partition owning its sharding key or
// fans out to every partition. Fanned-out partitions stream locally
// sorted batches which are k-way merged under the active index order, so
// the caller sees one totally ordered sequence regardless of arrival
// order. Reads are all-or-nothing: a partial merge could emit misordered
// results, so any partition failure aborts the whole call.
package scatter

import (
	"context"
	"fmt"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shardq/shardq/internal/bucket"
	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
)

// DefaultBatchSize bounds tuples per partition per RPC round when the
// caller does not say otherwise.
const DefaultBatchSize = 100

// Observer receives read execution events. Implementations must not
// block; reporting never affects the call result.
type Observer interface {
	MapReduce(space string)
	Fetch(fetched, lookedUp int, space string)
}

// Request is one planned read.
type Request struct {
	Space      *model.Space
	Conditions []model.Condition

	// First is the signed result limit: 0 = unlimited, negative = tail
	// mode (requires After).
	First     int
	After     model.Tuple
	BatchSize int
	BucketID  *uint64
	ForceMap  bool

	Timeout       time.Duration
	SchemaVersion uint64
}

// Executor runs scatter-gather reads against a topology.
type Executor struct {
	topo     storage.Topology
	resolver *bucket.Resolver
	obs      Observer
}

// New builds an executor.
func New(topo storage.Topology, resolver *bucket.Resolver, obs Observer) *Executor {
	return &Executor{topo: topo, resolver: resolver, obs: obs}
}

type plan struct {
	space     *model.Space
	nodes     []storage.Node
	index     model.Index
	direction storage.Direction
	scanCond  *model.Condition
	postConds []model.Condition
	tail      bool
	limit     int // absolute result limit, 0 = unlimited
	batchSize int
	scattered bool
}

// Select drains the merged sequence and returns it as a slice, already in
// ascending order even for tail mode.
func (e *Executor) Select(ctx context.Context, req Request) ([]model.Tuple, error) {
	var out []model.Tuple
	for t, err := range e.Stream(ctx, req) {
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Stream returns the merged sequence as a finite lazy iterator. Each step
// may suspend on an additional per-partition fetch round when a buffered
// batch drains. The iterator is single-use; call Stream again to restart.
func (e *Executor) Stream(ctx context.Context, req Request) iter.Seq2[model.Tuple, error] {
	return func(yield func(model.Tuple, error) bool) {
		p, err := e.plan(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}

		streams, err := e.openStreams(ctx, req, p)
		fetched := func() int {
			n := 0
			for _, s := range streams {
				n += s.fetched
			}
			return n
		}
		lookedUp := 0
		defer func() {
			e.obs.Fetch(fetched(), lookedUp, req.Space.Name)
		}()
		if err != nil {
			yield(nil, err)
			return
		}

		nodeIDs := make([]string, len(streams))
		for i, s := range streams {
			nodeIDs[i] = s.node.ID()
		}
		h := newMergeHeap(p.direction == storage.Reverse, nodeIDs)
		for i, s := range streams {
			if t, ok := s.head(); ok {
				h.Push(e.item(t, p, i))
			}
		}

		// Tail mode buffers so the final output can be flipped back to
		// ascending order.
		var tailBuf []model.Tuple

		emitted := 0
		for p.limit == 0 || emitted < p.limit {
			item, ok := h.Pop()
			if !ok {
				break
			}
			if cmpErr := h.Err(); cmpErr != nil {
				yield(nil, cmpErr)
				return
			}

			s := streams[item.stream]
			s.advance()
			hasNext, err := s.ensure(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if hasNext {
				next, _ := s.head()
				h.Push(e.item(next, p, item.stream))
				if cmpErr := h.Err(); cmpErr != nil {
					yield(nil, cmpErr)
					return
				}
			}

			lookedUp++
			match, err := model.MatchAll(item.tuple, req.Space, p.postConds)
			if err != nil {
				yield(nil, err)
				return
			}
			if !match {
				continue
			}

			emitted++
			if p.tail {
				tailBuf = append(tailBuf, item.tuple)
				continue
			}
			if !yield(item.tuple, nil) {
				return
			}
		}

		for i := len(tailBuf) - 1; i >= 0; i-- {
			if !yield(tailBuf[i], nil) {
				return
			}
		}
	}
}

func (e *Executor) item(t model.Tuple, p plan, stream int) mergeItem {
	key := model.IndexKey(t, p.index)
	key = append(key, model.IndexKey(t, p.space.PrimaryIndex)...)
	return mergeItem{tuple: t, sortKey: key, stream: stream}
}

func (e *Executor) plan(ctx context.Context, req Request) (plan, error) {
	if err := model.ValidateConditions(req.Conditions); err != nil {
		return plan{}, err
	}

	p := plan{
		space:     req.Space,
		batchSize: req.BatchSize,
		limit:     req.First,
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultBatchSize
	}
	if req.First < 0 {
		if req.After == nil {
			return plan{}, fmt.Errorf("tail mode (first < 0) requires an after tuple")
		}
		p.tail = true
		p.limit = -req.First
	}

	p.index, p.direction, p.scanCond, p.postConds = chooseIndex(req.Space, req.Conditions)
	if p.tail {
		if p.direction == storage.Forward {
			p.direction = storage.Reverse
		} else {
			p.direction = storage.Forward
		}
	}

	nodes, scattered, err := e.route(ctx, req)
	if err != nil {
		return plan{}, err
	}
	p.nodes = nodes
	p.scattered = scattered
	if scattered {
		e.obs.MapReduce(req.Space.Name)
	}
	return p, nil
}

// route decides single-partition vs. fan-out.
func (e *Executor) route(ctx context.Context, req Request) ([]storage.Node, bool, error) {
	if req.BucketID != nil && !req.ForceMap {
		node, err := e.topo.Route(*req.BucketID)
		if err != nil {
			return nil, false, err
		}
		return []storage.Node{node}, false, nil
	}

	if !req.ForceMap {
		fields, err := e.resolver.ShardingFields(ctx, req.Space)
		if err != nil {
			return nil, false, err
		}
		if key, ok := equalityKey(req.Conditions, fields); ok {
			id, err := e.resolver.ForKey(ctx, req.Space.Name, key, nil)
			if err != nil {
				return nil, false, err
			}
			node, err := e.topo.Route(id)
			if err != nil {
				return nil, false, err
			}
			return []storage.Node{node}, false, nil
		}
	}

	return e.topo.Nodes(), true, nil
}

// equalityKey extracts the sharding key when equality conditions cover
// every sharding field.
func equalityKey(conds []model.Condition, fields []string) (model.Tuple, bool) {
	key := make(model.Tuple, 0, len(fields))
	for _, f := range fields {
		found := false
		for _, c := range conds {
			if c.Op == model.OpEq && c.Field == f {
				key = append(key, c.Value)
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return key, len(fields) > 0
}

// chooseIndex picks the condition driving the index scan: the first one
// whose field leads an index. Everything else is post-filtered.
func chooseIndex(sp *model.Space, conds []model.Condition) (model.Index, storage.Direction, *model.Condition, []model.Condition) {
	for i, c := range conds {
		idx, ok := leadingIndex(sp, c.Field)
		if !ok {
			continue
		}
		post := make([]model.Condition, 0, len(conds)-1)
		post = append(post, conds[:i]...)
		post = append(post, conds[i+1:]...)
		dir := storage.Forward
		if c.Op == model.OpLt || c.Op == model.OpLe {
			dir = storage.Reverse
		}
		cond := c
		return idx, dir, &cond, post
	}
	return sp.PrimaryIndex, storage.Forward, nil, conds
}

func leadingIndex(sp *model.Space, field string) (model.Index, bool) {
	pos, ok := sp.FieldIndex(field)
	if !ok {
		return model.Index{}, false
	}
	if len(sp.PrimaryIndex.Parts) > 0 && sp.PrimaryIndex.Parts[0] == pos {
		return sp.PrimaryIndex, true
	}
	for _, idx := range sp.Indexes {
		if len(idx.Parts) > 0 && idx.Parts[0] == pos {
			return idx, true
		}
	}
	return model.Index{}, false
}

// openStreams issues the first fetch round to every planned partition
// concurrently (issue-then-join), then hands the streams to the merge.
func (e *Executor) openStreams(ctx context.Context, req Request, p plan) ([]*nodeStream, error) {
	streams := make([]*nodeStream, len(p.nodes))
	for i, node := range p.nodes {
		sreq := storage.SelectRequest{
			Space:     req.Space.Name,
			Index:     p.index.Name,
			Direction: p.direction,
			Limit:     p.batchSize,
		}
		if p.scanCond != nil {
			sreq.Conditions = []model.Condition{*p.scanCond}
		}
		if req.After != nil {
			sreq.AfterKey = model.IndexKey(req.After, p.index)
			sreq.AfterPK = model.IndexKey(req.After, req.Space.PrimaryIndex)
		}
		streams[i] = &nodeStream{
			node:    node,
			req:     sreq,
			index:   p.index,
			primary: req.Space.PrimaryIndex,
			timeout: req.Timeout,
			version: req.SchemaVersion,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range streams {
		g.Go(func() error {
			return s.refill(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return streams, err
	}
	return streams, nil
}

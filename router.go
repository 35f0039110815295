package shardq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	batchexec "github.com/shardq/shardq/internal/batch"
	"github.com/shardq/shardq/internal/bucket"
	"github.com/shardq/shardq/internal/scatter"
	"github.com/shardq/shardq/internal/shardkey"
	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
)

// DefaultTimeout bounds storage RPCs when neither the router nor the call
// sets one.
const DefaultTimeout = 2 * time.Second

// Router fronts a partitioned tuple store.
//
// All state is process-local caching (space schemas, sharding metadata);
// the store itself lives behind the storage.Topology. A Router is safe
// for concurrent use.
type Router struct {
	topo     storage.Topology
	shardkey *shardkey.Cache
	resolver *bucket.Resolver
	scatter  *scatter.Executor
	batch    *batchexec.Executor
	schemas  *schemaCache

	logger           *Logger
	stats            StatsCollector
	defaultTimeout   time.Duration
	defaultBatchSize int
}

// New builds a Router over a topology.
func New(topo storage.Topology, optFns ...Option) (*Router, error) {
	if topo == nil {
		return nil, fmt.Errorf("topology is required")
	}
	if len(topo.Nodes()) == 0 {
		return nil, fmt.Errorf("topology has no storage nodes")
	}
	if topo.BucketCount() == 0 {
		return nil, fmt.Errorf("topology has zero buckets")
	}

	opts := options{
		logger:           NoopLogger(),
		stats:            NoopStatsCollector{},
		defaultTimeout:   DefaultTimeout,
		defaultBatchSize: scatter.DefaultBatchSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Router{
		topo:             topo,
		logger:           opts.logger,
		stats:            opts.stats,
		defaultTimeout:   opts.defaultTimeout,
		defaultBatchSize: opts.defaultBatchSize,
	}
	r.schemas = newSchemaCache(topo, opts.defaultTimeout)
	r.shardkey = shardkey.New(r.fetchShardingMetadata)
	r.resolver = bucket.New(r.shardkey, topo, opts.shardingFn)
	r.scatter = scatter.New(topo, r.resolver, statsObserver{r.stats})
	r.batch = batchexec.New(topo, r.resolver)
	return r, nil
}

// InvalidateSchema drops the cached schema for one space and all cached
// sharding metadata. The next call refetches both. Called by the
// stale-schema retry path and available to callers that changed a schema
// out of band.
func (r *Router) InvalidateSchema(space string) {
	r.schemas.invalidate(space)
	r.shardkey.Invalidate()
	r.logger.LogSchemaRetry(context.Background(), space)
}

// InvalidateShardingMetadata drops all cached sharding metadata.
func (r *Router) InvalidateShardingMetadata() {
	r.shardkey.Invalidate()
}

func (r *Router) fetchShardingMetadata(ctx context.Context) (map[string]model.ShardingInfo, error) {
	node := r.topo.Nodes()[0]
	cctx, cancel := context.WithTimeout(ctx, r.defaultTimeout)
	defer cancel()
	return node.ShardingMetadata(cctx, storage.NewCallOptions(r.defaultTimeout, 0))
}

// schema resolves a space definition through the process-local cache.
func (r *Router) schema(ctx context.Context, space string) (*model.Space, error) {
	return r.schemas.get(ctx, space)
}

// callOpts merges per-call options over router defaults.
func (r *Router) callOpts(optFns []CallOption) CallOptions {
	o := CallOptions{
		Timeout:   r.defaultTimeout,
		BatchSize: r.defaultBatchSize,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.Timeout <= 0 {
		o.Timeout = r.defaultTimeout
	}
	return o
}

// record finishes a call for stats and logs.
func (r *Router) record(ctx context.Context, op Operation, space string, start time.Time, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	r.stats.RecordCall(op, space, status, time.Since(start))
	r.logger.LogCall(ctx, op, space, err)
}

// statsObserver adapts the public collector to the scatter executor.
type statsObserver struct {
	stats StatsCollector
}

func (s statsObserver) MapReduce(space string) { s.stats.RecordMapReduce(space) }

func (s statsObserver) Fetch(fetched, lookedUp int, space string) {
	s.stats.RecordFetch(fetched, lookedUp, space)
}

// schemaCache holds space definitions fetched from the cluster, one
// single-flight fetch per space.
type schemaCache struct {
	topo    storage.Topology
	timeout time.Duration

	group singleflight.Group

	mu     sync.RWMutex
	spaces map[string]*model.Space
}

func newSchemaCache(topo storage.Topology, timeout time.Duration) *schemaCache {
	return &schemaCache{
		topo:    topo,
		timeout: timeout,
		spaces:  make(map[string]*model.Space),
	}
}

func (c *schemaCache) get(ctx context.Context, space string) (*model.Space, error) {
	c.mu.RLock()
	sp, ok := c.spaces[space]
	c.mu.RUnlock()
	if ok {
		return sp, nil
	}

	ch := c.group.DoChan(space, func() (any, error) {
		node := c.topo.Nodes()[0]
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		sp, err := node.Schema(cctx, space, storage.NewCallOptions(c.timeout, 0))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.spaces[space] = sp
		c.mu.Unlock()
		return sp, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Space), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *schemaCache) invalidate(space string) {
	c.mu.Lock()
	delete(c.spaces, space)
	c.mu.Unlock()
}

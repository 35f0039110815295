// Package shardq is a CRUD query router for a horizontally partitioned
// tuple store.
//
// Callers issue logical operations against a named space; the router
// resolves which partition owns which rows and hides the fan-out:
//
//   - Point operations (Insert, Get, Update, Delete, ...) hash the
//     sharding key to a bucket and route to the single owning partition.
//   - Range and secondary-index reads (Select, Pairs) fan out to every
//     partition and k-way merge the locally sorted partials into one
//     totally ordered sequence, under limit and pagination constraints.
//   - Batch writes (BatchInsert, BatchUpsert) group tuples by partition
//     and apply one atomic sub-batch per partition in parallel, reporting
//     partial success together with at most one error per partition.
//
// Sharding metadata and space schemas are cached process-locally behind
// single-flight fetches; when a partition reports the cached schema is
// stale, the operation invalidates the caches and retries exactly once.
//
// # Quick Start
//
//	topo, err := statictopology.New(256, nodes...)
//	if err != nil {
//	    panic(err)
//	}
//	router, err := shardq.New(topo,
//	    shardq.WithStats(stats),
//	    shardq.WithDefaultTimeout(time.Second),
//	)
//	if err != nil {
//	    panic(err)
//	}
//
//	_, err = router.Insert(ctx, "accounts", model.Tuple{int64(1), nil, "alice"})
//
//	tuples, err := router.Select(ctx, "accounts",
//	    []model.Condition{model.Gt("id", int64(0))},
//	    shardq.WithFirst(10),
//	)
//
//	for t, err := range router.Pairs(ctx, "accounts", nil) {
//	    if err != nil {
//	        break
//	    }
//	    process(t)
//	}
//
// The storage engine itself is an external collaborator: the router only
// consumes the storage.Node RPC surface and the storage.Topology
// partition map. See storage/inmem for a reference node implementation.
package shardq

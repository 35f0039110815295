// Package inmem is a reference storage.Node used by tests and examples.
//
// It is a single-process stand-in for a real partition: rows live in
// memory ordered by primary key, batch writes have the same atomic-prefix
// contract as the RPC surface, calls are schema-version checked, and
// every written tuple round-trips through the configured codec so values
// that would not survive the wire fail early.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/shardq/shardq/codec"
	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
)

// Node is an in-memory partition.
type Node struct {
	id string

	mu       sync.Mutex
	spaces   map[string]*spaceData
	sharding map[string]model.ShardingInfo
	codec    codec.Codec
	limiter  *rate.Limiter
	failWith error

	metadataCalls int
}

type spaceData struct {
	def  *model.Space
	rows []model.Tuple // sorted by primary key
}

// Option configures a Node.
type Option func(*Node)

// WithCodec sets the codec tuples round-trip through on writes.
func WithCodec(c codec.Codec) Option {
	return func(n *Node) {
		if c == nil {
			c = codec.Default
		}
		n.codec = c
	}
}

// WithRateLimit throttles calls, simulating a slow partition. Tests use
// this with short timeouts to exercise per-partition timeout handling.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(n *Node) {
		n.limiter = rate.NewLimiter(r, burst)
	}
}

// WithShardingMetadata sets the cluster sharding metadata this node
// serves.
func WithShardingMetadata(m map[string]model.ShardingInfo) Option {
	return func(n *Node) {
		n.sharding = m
	}
}

// New builds a node.
func New(id string, optFns ...Option) *Node {
	n := &Node{
		id:       id,
		spaces:   make(map[string]*spaceData),
		sharding: make(map[string]model.ShardingInfo),
		codec:    codec.Default,
	}
	for _, fn := range optFns {
		fn(n)
	}
	return n
}

// ID implements storage.Node.
func (n *Node) ID() string { return n.id }

// CreateSpace registers a space definition on this node.
func (n *Node) CreateSpace(sp *model.Space) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.spaces[sp.Name] = &spaceData{def: sp}
}

// BumpSchema increments a space's schema version in place, making every
// cached router fingerprint stale.
func (n *Node) BumpSchema(space string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if sd, ok := n.spaces[space]; ok {
		def := *sd.def
		def.SchemaVersion++
		sd.def = &def
	}
}

// SetShardingMetadata replaces the cluster sharding metadata this node
// serves.
func (n *Node) SetShardingMetadata(m map[string]model.ShardingInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sharding = m
}

// FailWith makes every subsequent call return err until reset with nil.
func (n *Node) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failWith = err
}

// Dump returns a copy of a space's rows in primary key order. Missing
// spaces dump as empty. Test helper, not part of storage.Node.
func (n *Node) Dump(space string) []model.Tuple {
	n.mu.Lock()
	defer n.mu.Unlock()
	sd, ok := n.spaces[space]
	if !ok {
		return nil
	}
	out := make([]model.Tuple, len(sd.rows))
	for i, row := range sd.rows {
		out[i] = row.Clone()
	}
	return out
}

// MetadataCalls returns how many ShardingMetadata RPCs this node served.
func (n *Node) MetadataCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.metadataCalls
}

// gate applies the rate limiter and failure injection before a call.
func (n *Node) gate(ctx context.Context) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return storage.WrapError(storage.KindTimeout, err).WithNode(n.id)
		}
	}
	if err := ctx.Err(); err != nil {
		return storage.WrapError(storage.KindTimeout, err).WithNode(n.id)
	}
	n.mu.Lock()
	failWith := n.failWith
	n.mu.Unlock()
	if failWith != nil {
		return failWith
	}
	return nil
}

func (n *Node) space(name string, version uint64) (*spaceData, error) {
	sd, ok := n.spaces[name]
	if !ok {
		return nil, storage.NewError(storage.KindSpaceNotFound, fmt.Sprintf("space %q does not exist", name)).WithNode(n.id)
	}
	if version != 0 && version != sd.def.SchemaVersion {
		return nil, storage.NewError(storage.KindSchemaMismatch,
			fmt.Sprintf("space %q is at schema version %d, caller has %d", name, sd.def.SchemaVersion, version)).
			WithNode(n.id).WithSpace(name)
	}
	return sd, nil
}

// Insert implements storage.Node.
func (n *Node) Insert(ctx context.Context, space string, t model.Tuple, opts storage.CallOptions) (model.Tuple, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return nil, err
	}
	row, err := n.through(t)
	if err != nil {
		return nil, err
	}
	if err := sd.insert(row, n.id); err != nil {
		return nil, err
	}
	return row, nil
}

// Replace implements storage.Node.
func (n *Node) Replace(ctx context.Context, space string, t model.Tuple, opts storage.CallOptions) (model.Tuple, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return nil, err
	}
	row, err := n.through(t)
	if err != nil {
		return nil, err
	}
	pos, exists, err := sd.find(model.IndexKey(row, sd.def.PrimaryIndex))
	if err != nil {
		return nil, err
	}
	if exists {
		sd.rows[pos] = row
	} else {
		sd.rows = append(sd.rows, nil)
		copy(sd.rows[pos+1:], sd.rows[pos:])
		sd.rows[pos] = row
	}
	return row, nil
}

// Update implements storage.Node.
func (n *Node) Update(ctx context.Context, space string, key model.Tuple, ops []model.UpdateOp, opts storage.CallOptions) (model.Tuple, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return nil, err
	}
	pos, exists, err := sd.find(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	row, err := n.applyOps(sd, sd.rows[pos], ops, space)
	if err != nil {
		return nil, err
	}
	sd.rows[pos] = row
	return row, nil
}

// Upsert implements storage.Node.
func (n *Node) Upsert(ctx context.Context, space string, t model.Tuple, ops []model.UpdateOp, opts storage.CallOptions) (model.Tuple, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return nil, err
	}
	row, err := n.through(t)
	if err != nil {
		return nil, err
	}
	return sd.upsert(n, row, ops, space)
}

// Delete implements storage.Node.
func (n *Node) Delete(ctx context.Context, space string, key model.Tuple, opts storage.CallOptions) (model.Tuple, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return nil, err
	}
	pos, exists, err := sd.find(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	row := sd.rows[pos]
	sd.rows = append(sd.rows[:pos], sd.rows[pos+1:]...)
	return row, nil
}

// Get implements storage.Node.
func (n *Node) Get(ctx context.Context, space string, key model.Tuple, opts storage.CallOptions) (model.Tuple, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return nil, err
	}
	pos, exists, err := sd.find(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return sd.rows[pos], nil
}

// BatchInsert implements storage.Node with atomic-prefix semantics: the
// sub-batch applies in order inside one lock hold; the first failure
// keeps the applied prefix committed and is reported with its tuple.
func (n *Node) BatchInsert(ctx context.Context, space string, tuples []model.Tuple, opts storage.CallOptions) ([]model.Tuple, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return nil, err
	}

	var applied []model.Tuple
	for _, t := range tuples {
		row, err := n.through(t)
		if err != nil {
			return applied, storage.WrapError(storage.KindInternal, err).WithNode(n.id).WithSpace(space).WithTuple(t)
		}
		if err := sd.insert(row, n.id); err != nil {
			return applied, storage.AsError(err, n.id, opts.RequestID).WithSpace(space).WithTuple(t)
		}
		applied = append(applied, row)
	}
	return applied, nil
}

// BatchUpsert implements storage.Node. Same prefix contract as
// BatchInsert.
func (n *Node) BatchUpsert(ctx context.Context, space string, tuples []model.Tuple, ops [][]model.UpdateOp, opts storage.CallOptions) ([]model.Tuple, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return nil, err
	}

	var applied []model.Tuple
	for i, t := range tuples {
		row, err := n.through(t)
		if err != nil {
			return applied, storage.WrapError(storage.KindInternal, err).WithNode(n.id).WithSpace(space).WithTuple(t)
		}
		var opList []model.UpdateOp
		if i < len(ops) {
			opList = ops[i]
		}
		out, err := sd.upsert(n, row, opList, space)
		if err != nil {
			return applied, storage.AsError(err, n.id, opts.RequestID).WithSpace(space).WithTuple(t)
		}
		applied = append(applied, out)
	}
	return applied, nil
}

// Select implements storage.Node: filter by the given conditions, sort by
// the active index key (primary key appended as tie-break), apply the
// exclusive resume bound in scan direction, cap at the limit.
func (n *Node) Select(ctx context.Context, req storage.SelectRequest, opts storage.CallOptions) ([]model.Tuple, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(req.Space, opts.SchemaVersion)
	if err != nil {
		return nil, err
	}
	idx, ok := sd.def.IndexByName(req.Index)
	if !ok {
		return nil, storage.NewError(storage.KindUnknownField,
			fmt.Sprintf("space %q has no index %q", req.Space, req.Index)).WithNode(n.id).WithSpace(req.Space)
	}

	var out []model.Tuple
	for _, row := range sd.rows {
		match, err := model.MatchAll(row, sd.def, req.Conditions)
		if err != nil {
			return nil, storage.WrapError(storage.KindUnknownField, err).WithNode(n.id).WithSpace(req.Space)
		}
		if match {
			out = append(out, row)
		}
	}

	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		c, err := compareRows(out[i], out[j], idx, sd.def.PrimaryIndex)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		if req.Direction == storage.Reverse {
			return c > 0
		}
		return c < 0
	})
	if sortErr != nil {
		return nil, storage.WrapError(storage.KindInternal, sortErr).WithNode(n.id).WithSpace(req.Space)
	}

	if req.AfterKey != nil {
		bound := append(req.AfterKey.Clone(), req.AfterPK...)
		filtered := out[:0]
		for _, row := range out {
			key := append(model.IndexKey(row, idx), model.IndexKey(row, sd.def.PrimaryIndex)...)
			c, err := model.CompareKeys(key, bound)
			if err != nil {
				return nil, storage.WrapError(storage.KindInternal, err).WithNode(n.id).WithSpace(req.Space)
			}
			if (req.Direction == storage.Forward && c > 0) || (req.Direction == storage.Reverse && c < 0) {
				filtered = append(filtered, row)
			}
		}
		out = filtered
	}

	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// Len implements storage.Node.
func (n *Node) Len(ctx context.Context, space string, opts storage.CallOptions) (uint64, error) {
	if err := n.gate(ctx); err != nil {
		return 0, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return 0, err
	}
	return uint64(len(sd.rows)), nil
}

// Truncate implements storage.Node.
func (n *Node) Truncate(ctx context.Context, space string, opts storage.CallOptions) error {
	if err := n.gate(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, opts.SchemaVersion)
	if err != nil {
		return err
	}
	sd.rows = nil
	return nil
}

// Schema implements storage.Node.
func (n *Node) Schema(ctx context.Context, space string, opts storage.CallOptions) (*model.Space, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	sd, err := n.space(space, 0)
	if err != nil {
		return nil, err
	}
	return sd.def, nil
}

// ShardingMetadata implements storage.Node.
func (n *Node) ShardingMetadata(ctx context.Context, opts storage.CallOptions) (map[string]model.ShardingInfo, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.metadataCalls++
	return n.sharding, nil
}

func (sd *spaceData) insert(row model.Tuple, nodeID string) error {
	pk := model.IndexKey(row, sd.def.PrimaryIndex)
	pos, exists, err := sd.find(pk)
	if err != nil {
		return err
	}
	if exists {
		return storage.NewError(storage.KindDuplicateKey,
			fmt.Sprintf("duplicate primary key in space %q", sd.def.Name)).WithNode(nodeID).WithSpace(sd.def.Name)
	}
	if err := sd.checkUniqueSecondary(row, -1, nodeID); err != nil {
		return err
	}
	sd.rows = append(sd.rows, nil)
	copy(sd.rows[pos+1:], sd.rows[pos:])
	sd.rows[pos] = row
	return nil
}

func (sd *spaceData) upsert(n *Node, row model.Tuple, ops []model.UpdateOp, space string) (model.Tuple, error) {
	pos, exists, err := sd.find(model.IndexKey(row, sd.def.PrimaryIndex))
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := sd.insert(row, n.id); err != nil {
			return nil, err
		}
		return row, nil
	}
	out, err := n.applyOps(sd, sd.rows[pos], ops, space)
	if err != nil {
		return nil, err
	}
	sd.rows[pos] = out
	return out, nil
}

func (n *Node) applyOps(sd *spaceData, row model.Tuple, ops []model.UpdateOp, space string) (model.Tuple, error) {
	out, err := model.ApplyUpdateOps(row, sd.def, ops)
	if err != nil {
		return nil, storage.WrapError(storage.KindUnknownField, err).WithNode(n.id).WithSpace(space)
	}
	return out, nil
}

// find locates a primary key, returning the insertion position when
// absent.
func (sd *spaceData) find(pk model.Tuple) (int, bool, error) {
	var findErr error
	pos := sort.Search(len(sd.rows), func(i int) bool {
		c, err := model.CompareKeys(model.IndexKey(sd.rows[i], sd.def.PrimaryIndex), pk)
		if err != nil && findErr == nil {
			findErr = err
		}
		return c >= 0
	})
	if findErr != nil {
		return 0, false, storage.WrapError(storage.KindInternal, findErr)
	}
	if pos < len(sd.rows) {
		c, err := model.CompareKeys(model.IndexKey(sd.rows[pos], sd.def.PrimaryIndex), pk)
		if err != nil {
			return 0, false, storage.WrapError(storage.KindInternal, err)
		}
		if c == 0 {
			return pos, true, nil
		}
	}
	return pos, false, nil
}

func (sd *spaceData) checkUniqueSecondary(row model.Tuple, skip int, nodeID string) error {
	for _, idx := range sd.def.Indexes {
		if !idx.Unique {
			continue
		}
		key := model.IndexKey(row, idx)
		for i, other := range sd.rows {
			if i == skip {
				continue
			}
			c, err := model.CompareKeys(model.IndexKey(other, idx), key)
			if err != nil {
				return storage.WrapError(storage.KindInternal, err)
			}
			if c == 0 {
				return storage.NewError(storage.KindDuplicateKey,
					fmt.Sprintf("duplicate key for unique index %q in space %q", idx.Name, sd.def.Name)).
					WithNode(nodeID).WithSpace(sd.def.Name)
			}
		}
	}
	return nil
}

func compareRows(a, b model.Tuple, idx, primary model.Index) (int, error) {
	c, err := model.CompareKeys(model.IndexKey(a, idx), model.IndexKey(b, idx))
	if err != nil || c != 0 {
		return c, err
	}
	return model.CompareKeys(model.IndexKey(a, primary), model.IndexKey(b, primary))
}

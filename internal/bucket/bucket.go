// Package bucket resolves the partition id for keys and tuples.
package bucket

import (
	"context"
	"errors"
	"fmt"

	"github.com/shardq/shardq/internal/shardkey"
	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
)

var (
	// ErrIDConflict is returned when a caller-supplied bucket id disagrees
	// with one already embedded in the tuple. The tuple is never silently
	// rerouted.
	ErrIDConflict = errors.New("bucket id conflict")

	// ErrNoBucketField is returned when the space format has no bucket id
	// slot to inject into.
	ErrNoBucketField = errors.New("space format has no bucket_id field")
)

// Resolver computes bucket ids from sharding metadata.
type Resolver struct {
	cache       *shardkey.Cache
	bucketCount uint64
	defaultFn   model.ShardingFunc
}

// New builds a resolver. defaultFn may be nil to use the built-in hash.
func New(cache *shardkey.Cache, topo storage.Topology, defaultFn model.ShardingFunc) *Resolver {
	if defaultFn == nil {
		defaultFn = model.DefaultShardingFunc
	}
	return &Resolver{
		cache:       cache,
		bucketCount: topo.BucketCount(),
		defaultFn:   defaultFn,
	}
}

// ShardingFields returns the field names the space shards by: the cached
// custom definition when present, else the primary key fields.
func (r *Resolver) ShardingFields(ctx context.Context, sp *model.Space) ([]string, error) {
	def, err := r.cache.Key(ctx, sp.Name)
	if err != nil {
		return nil, err
	}
	if def != nil {
		return def.Fields, nil
	}
	return sp.PrimaryKeyFields(), nil
}

// ForKey computes the bucket id for an extracted sharding key. A non-nil
// override wins unconditionally (there is no embedded id to conflict with).
func (r *Resolver) ForKey(ctx context.Context, space string, key model.Tuple, override *uint64) (uint64, error) {
	if override != nil {
		return *override, nil
	}
	fn, err := r.shardingFn(ctx, space)
	if err != nil {
		return 0, err
	}
	return fn(key, r.bucketCount)
}

// ForPrimaryKey computes the bucket id for a point operation addressed by
// primary key. The sharding fields must be a subset of the primary key,
// otherwise the key alone cannot route.
func (r *Resolver) ForPrimaryKey(ctx context.Context, sp *model.Space, pk model.Tuple, override *uint64) (uint64, error) {
	if override != nil {
		return *override, nil
	}
	fields, err := r.ShardingFields(ctx, sp)
	if err != nil {
		return 0, err
	}
	pkFields := sp.PrimaryKeyFields()
	key := make(model.Tuple, 0, len(fields))
	for _, name := range fields {
		pos := -1
		for i, pkName := range pkFields {
			if pkName == name {
				pos = i
				break
			}
		}
		if pos < 0 || pos >= len(pk) {
			return 0, fmt.Errorf("sharding field %q of space %q is not covered by the primary key", name, sp.Name)
		}
		key = append(key, pk[pos])
	}
	return r.ForKey(ctx, sp.Name, key, nil)
}

// ForTuple resolves and injects the bucket id for a write.
//
// An id already embedded at the dedicated slot wins; a conflicting
// override is ErrIDConflict. Otherwise the id is computed from the
// sharding key fields (falling back to the primary key), written into the
// slot and returned. The tuple is modified in place — callers own a copy.
func (r *Resolver) ForTuple(ctx context.Context, sp *model.Space, t model.Tuple, override *uint64) (uint64, error) {
	slot, ok := sp.BucketField()
	if !ok {
		return 0, fmt.Errorf("space %q: %w", sp.Name, ErrNoBucketField)
	}
	if slot >= len(t) {
		return 0, fmt.Errorf("space %q: tuple too short for bucket_id slot %d", sp.Name, slot)
	}

	if embedded, has, err := embeddedID(t[slot]); err != nil {
		return 0, fmt.Errorf("space %q: %w", sp.Name, err)
	} else if has {
		if override != nil && *override != embedded {
			return 0, fmt.Errorf("space %q: tuple carries bucket id %d, option says %d: %w",
				sp.Name, embedded, *override, ErrIDConflict)
		}
		return embedded, nil
	}

	if override != nil {
		t[slot] = *override
		return *override, nil
	}

	fields, err := r.ShardingFields(ctx, sp)
	if err != nil {
		return 0, err
	}
	key, err := model.ExtractKey(t, sp, fields)
	if err != nil {
		return 0, err
	}
	id, err := r.ForKey(ctx, sp.Name, key, nil)
	if err != nil {
		return 0, err
	}
	t[slot] = id
	return id, nil
}

func (r *Resolver) shardingFn(ctx context.Context, space string) (model.ShardingFunc, error) {
	def, err := r.cache.Func(ctx, space)
	if err != nil {
		return nil, err
	}
	if def != nil && def.Fn != nil {
		return def.Fn, nil
	}
	return r.defaultFn, nil
}

func embeddedID(v any) (uint64, bool, error) {
	switch id := v.(type) {
	case nil:
		return 0, false, nil
	case uint64:
		return id, true, nil
	case int64:
		if id < 0 {
			return 0, false, fmt.Errorf("negative bucket id %d", id)
		}
		return uint64(id), true, nil
	case int:
		if id < 0 {
			return 0, false, fmt.Errorf("negative bucket id %d", id)
		}
		return uint64(id), true, nil
	default:
		return 0, false, fmt.Errorf("bucket id slot holds %T, want unsigned", v)
	}
}

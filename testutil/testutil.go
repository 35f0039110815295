// Package testutil provides cluster fixtures shared by the router tests.
package testutil

import (
	"fmt"

	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
	"github.com/shardq/shardq/storage/inmem"
	"github.com/shardq/shardq/storage/statictopology"
)

// DefaultBucketCount keeps test bucket spaces small enough to reason
// about by hand.
const DefaultBucketCount = 64

// Cluster is a set of in-memory partitions behind a static topology.
type Cluster struct {
	Nodes []*inmem.Node
	Topo  *statictopology.Topology
}

// NewCluster builds n partitions named p1..pn.
func NewCluster(n int, bucketCount uint64, optFns ...inmem.Option) (*Cluster, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cluster needs at least one node, got %d", n)
	}
	c := &Cluster{}
	storageNodes := make([]storage.Node, 0, n)
	for i := 0; i < n; i++ {
		node := inmem.New(fmt.Sprintf("p%d", i+1), optFns...)
		c.Nodes = append(c.Nodes, node)
		storageNodes = append(storageNodes, node)
	}
	topo, err := statictopology.New(bucketCount, storageNodes...)
	if err != nil {
		return nil, err
	}
	c.Topo = topo
	return c, nil
}

// MustCluster is NewCluster for test setup paths that cannot fail.
func MustCluster(n int, bucketCount uint64, optFns ...inmem.Option) *Cluster {
	c, err := NewCluster(n, bucketCount, optFns...)
	if err != nil {
		panic(err)
	}
	return c
}

// CreateSpace registers the space on every partition.
func (c *Cluster) CreateSpace(sp *model.Space) {
	for _, node := range c.Nodes {
		node.CreateSpace(sp)
	}
}

// SetSharding installs the same sharding metadata on every partition.
func (c *Cluster) SetSharding(m map[string]model.ShardingInfo) {
	for _, node := range c.Nodes {
		node.SetShardingMetadata(m)
	}
}

// Rows returns one slice per partition with that partition's current
// rows, in node order.
func (c *Cluster) Rows(space string) [][]model.Tuple {
	out := make([][]model.Tuple, len(c.Nodes))
	for i, node := range c.Nodes {
		out[i] = node.Dump(space)
	}
	return out
}

// AccountsSpace is the canonical test space: integer primary key, the
// reserved bucket id slot, and a non-unique secondary index on balance.
func AccountsSpace() *model.Space {
	return &model.Space{
		Name: "accounts",
		Format: []model.Field{
			{Name: "id", Type: model.FieldTypeInteger},
			{Name: model.BucketIDField, Type: model.FieldTypeUnsigned},
			{Name: "name", Type: model.FieldTypeString},
			{Name: "balance", Type: model.FieldTypeInteger},
		},
		PrimaryIndex: model.Index{Name: "primary", Unique: true, Parts: []int{0}},
		Indexes: []model.Index{
			{Name: "balance", Parts: []int{3}},
		},
		SchemaVersion: 1,
	}
}

// Account builds an accounts tuple with a nil bucket id slot for the
// router to fill.
func Account(id int64, name string, balance int64) model.Tuple {
	return model.Tuple{id, nil, name, balance}
}

// FixedSharding returns a sharding function that maps the first key
// field (an int64 id) through an explicit assignment table. Scenario
// tests use it to pin tuples to known partitions.
func FixedSharding(assign map[int64]uint64) model.ShardingFunc {
	return func(key model.Tuple, bucketCount uint64) (uint64, error) {
		if len(key) == 0 {
			return 0, fmt.Errorf("empty sharding key")
		}
		id, ok := key[0].(int64)
		if !ok {
			return 0, fmt.Errorf("fixed sharding expects int64 ids, got %T", key[0])
		}
		bucket, ok := assign[id]
		if !ok {
			return 0, fmt.Errorf("no bucket assigned for id %d", id)
		}
		if bucket >= bucketCount {
			return 0, fmt.Errorf("assigned bucket %d out of range [0, %d)", bucket, bucketCount)
		}
		return bucket, nil
	}
}

// ShardByID is sharding metadata that shards the given spaces by their
// id field through fn.
func ShardByID(fn model.ShardingFunc, spaces ...string) map[string]model.ShardingInfo {
	m := make(map[string]model.ShardingInfo, len(spaces))
	for _, space := range spaces {
		m[space] = model.ShardingInfo{
			Key:  &model.ShardingKeyDef{Fields: []string{"id"}},
			Func: &model.ShardingFuncDef{Name: "fixed", Fn: fn},
		}
	}
	return m
}

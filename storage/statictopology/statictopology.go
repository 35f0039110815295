// Package statictopology maps buckets onto a fixed, ordered partition
// list. Bucket b lives on nodes[b % len(nodes)]; with a stable node
// order the mapping is deterministic across processes.
package statictopology

import (
	"fmt"

	"github.com/shardq/shardq/storage"
)

// Topology implements storage.Topology over a fixed node list.
type Topology struct {
	nodes       []storage.Node
	bucketCount uint64
}

// New builds a topology with the given bucket count over the nodes in
// the given order.
func New(bucketCount uint64, nodes ...storage.Node) (*Topology, error) {
	if bucketCount == 0 {
		return nil, fmt.Errorf("bucket count must be positive")
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("at least one node is required")
	}
	return &Topology{
		nodes:       nodes,
		bucketCount: bucketCount,
	}, nil
}

// Route implements storage.Topology.
func (t *Topology) Route(bucket uint64) (storage.Node, error) {
	if bucket >= t.bucketCount {
		return nil, fmt.Errorf("bucket %d out of range [0, %d)", bucket, t.bucketCount)
	}
	return t.nodes[bucket%uint64(len(t.nodes))], nil
}

// Nodes implements storage.Topology.
func (t *Topology) Nodes() []storage.Node {
	return t.nodes
}

// BucketCount implements storage.Topology.
func (t *Topology) BucketCount() uint64 {
	return t.bucketCount
}

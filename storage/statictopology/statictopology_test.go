package statictopology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardq/shardq/storage"
	"github.com/shardq/shardq/storage/inmem"
)

func TestNew(t *testing.T) {
	n1, n2 := inmem.New("p1"), inmem.New("p2")

	_, err := New(0, n1)
	assert.Error(t, err)

	_, err = New(16)
	assert.Error(t, err)

	topo, err := New(16, n1, n2)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), topo.BucketCount())
	assert.Len(t, topo.Nodes(), 2)
}

func TestRoute(t *testing.T) {
	n1, n2 := inmem.New("p1"), inmem.New("p2")
	topo, err := New(16, n1, n2)
	require.NoError(t, err)

	for bucket := uint64(0); bucket < 16; bucket++ {
		node, err := topo.Route(bucket)
		require.NoError(t, err)
		want := storage.Node(n1)
		if bucket%2 == 1 {
			want = n2
		}
		assert.Same(t, want, node, "bucket %d", bucket)
	}

	_, err = topo.Route(16)
	assert.Error(t, err)
}

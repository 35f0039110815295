package scatter

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardq/shardq/model"
)

func TestMergeHeapOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, descending := range []bool{false, true} {
		h := newMergeHeap(descending, []string{"p1", "p2", "p3"})

		keys := make([]int64, 100)
		for i := range keys {
			keys[i] = int64(rng.Intn(30))
			h.Push(mergeItem{sortKey: model.Tuple{keys[i], int64(i)}, stream: i % 3})
		}
		require.NoError(t, h.Err())

		sort.Slice(keys, func(i, j int) bool {
			if descending {
				return keys[i] > keys[j]
			}
			return keys[i] < keys[j]
		})

		for i := 0; i < len(keys); i++ {
			item, ok := h.Pop()
			require.True(t, ok)
			assert.Equal(t, keys[i], item.sortKey[0], "pop %d descending=%v", i, descending)
		}
		_, ok := h.Pop()
		assert.False(t, ok)
	}
}

func TestMergeHeapTieBreakByPartition(t *testing.T) {
	h := newMergeHeap(false, []string{"p2", "p1"})
	h.Push(mergeItem{sortKey: model.Tuple{int64(1)}, stream: 0})
	h.Push(mergeItem{sortKey: model.Tuple{int64(1)}, stream: 1})

	first, ok := h.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, first.stream, "p1 sorts before p2 on equal keys")
}

func TestMergeHeapIncomparable(t *testing.T) {
	h := newMergeHeap(false, []string{"p1", "p2"})
	h.Push(mergeItem{sortKey: model.Tuple{int64(1)}, stream: 0})
	h.Push(mergeItem{sortKey: model.Tuple{"one"}, stream: 1})
	assert.Error(t, h.Err())
}

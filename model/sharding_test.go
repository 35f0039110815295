package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultShardingFunc(t *testing.T) {
	const buckets = 1024

	t.Run("Deterministic", func(t *testing.T) {
		a, err := DefaultShardingFunc(Tuple{int64(42), "user"}, buckets)
		require.NoError(t, err)
		b, err := DefaultShardingFunc(Tuple{int64(42), "user"}, buckets)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("InRange", func(t *testing.T) {
		for i := int64(0); i < 1000; i++ {
			id, err := DefaultShardingFunc(Tuple{i}, buckets)
			require.NoError(t, err)
			assert.Less(t, id, uint64(buckets))
		}
	})

	t.Run("TypeTagged", func(t *testing.T) {
		// int64(i) and its decimal string must not collide systematically:
		// the encoding tags each value's type before hashing.
		differs := false
		for i := int64(0); i < 16 && !differs; i++ {
			a, err := DefaultShardingFunc(Tuple{i}, 1<<32)
			require.NoError(t, err)
			b, err := DefaultShardingFunc(Tuple{fmt.Sprintf("%d", i)}, 1<<32)
			require.NoError(t, err)
			differs = a != b
		}
		assert.True(t, differs)
	})

	t.Run("Spread", func(t *testing.T) {
		seen := make(map[uint64]bool)
		for i := int64(0); i < 1000; i++ {
			id, err := DefaultShardingFunc(Tuple{i}, buckets)
			require.NoError(t, err)
			seen[id] = true
		}
		assert.Greater(t, len(seen), 500, "1000 sequential ids should spread across most of 1024 buckets")
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := DefaultShardingFunc(Tuple{struct{}{}}, buckets)
		assert.Error(t, err)
	})
}

package shardq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/storage"
	"github.com/shardq/shardq/testutil"
)

// bumpAll moves every partition to the next schema version behind the
// router's back, so its cached fingerprint goes stale.
func bumpAll(c *testutil.Cluster, space string) {
	for _, node := range c.Nodes {
		node.BumpSchema(space)
	}
}

func TestStaleSchemaRetryOnWrite(t *testing.T) {
	r, c := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	_, err := r.Insert(ctx, "accounts", testutil.Account(1, "a", 1))
	require.NoError(t, err)

	bumpAll(c, "accounts")

	// The stale fingerprint is rejected once, the caches refresh, the
	// retry lands. The caller never sees the hiccup.
	row, err := r.Insert(ctx, "accounts", testutil.Account(2, "b", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), row[0])

	got, err := r.Get(ctx, "accounts", model.Tuple{int64(2)})
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStaleSchemaRetryOnRead(t *testing.T) {
	r, c := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()
	for i := int64(1); i <= 4; i++ {
		_, err := r.Insert(ctx, "accounts", testutil.Account(i, "acc", i))
		require.NoError(t, err)
	}

	bumpAll(c, "accounts")

	rows, err := r.Select(ctx, "accounts", []model.Condition{model.Ge("id", int64(1))})
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestStaleSchemaRetryOnBatch(t *testing.T) {
	r, c := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	_, err := r.BatchInsert(ctx, "accounts", []model.Tuple{testutil.Account(1, "a", 1)})
	require.NoError(t, err)

	bumpAll(c, "accounts")

	// The whole batch is rejected by the version check before anything
	// applies, so the retry cannot double-apply.
	rows, err := r.BatchInsert(ctx, "accounts", []model.Tuple{
		testutil.Account(2, "b", 2),
		testutil.Account(3, "c", 3),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	count, err := r.Len(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestStaleSchemaSecondRejectionSurfaces(t *testing.T) {
	r, c := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	_, err := r.Insert(ctx, "accounts", testutil.Account(1, "a", 1))
	require.NoError(t, err)

	// p2 keeps moving: the refreshed schema comes from p1 (version 2)
	// while p2 is already at version 3, so the retry is rejected again
	// and the error surfaces.
	bumpAll(c, "accounts")
	c.Nodes[1].BumpSchema("accounts")

	_, err = r.Insert(ctx, "accounts", testutil.Account(3, "c", 3))
	require.Error(t, err)
	assert.True(t, storage.IsStaleSchema(err))
}

func TestInvalidateSchemaForcesRefetch(t *testing.T) {
	r, c := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	_, err := r.Insert(ctx, "accounts", testutil.Account(1, "a", 1))
	require.NoError(t, err)

	bumpAll(c, "accounts")
	r.InvalidateSchema("accounts")

	// With the cache dropped up front, the next call fetches the new
	// version and succeeds without needing the retry path.
	_, err = r.Insert(ctx, "accounts", testutil.Account(2, "b", 2))
	require.NoError(t, err)
}

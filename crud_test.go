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

func TestInsertGet(t *testing.T) {
	r, c := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	in := testutil.Account(3, "alice", 100)
	inserted, err := r.Insert(ctx, "accounts", in)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), inserted[1], "bucket id injected into the returned tuple")
	assert.Nil(t, in[1], "caller tuple not mutated")

	got, err := r.Get(ctx, "accounts", model.Tuple{int64(3)})
	require.NoError(t, err)
	assert.Equal(t, inserted, got)

	// The row physically lives on p2 only.
	assert.Empty(t, c.Nodes[0].Dump("accounts"))
	assert.Len(t, c.Nodes[1].Dump("accounts"), 1)
}

func TestInsertDuplicate(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	_, err := r.Insert(ctx, "accounts", testutil.Account(1, "a", 1))
	require.NoError(t, err)

	_, err = r.Insert(ctx, "accounts", testutil.Account(1, "a", 1))
	require.Error(t, err)
	var pe *PartitionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, storage.KindDuplicateKey, pe.Kind)
	assert.Equal(t, "p2", pe.Node)
	assert.NotEmpty(t, pe.RequestID, "failed RPCs carry their correlation id")
	assert.Contains(t, err.Error(), pe.RequestID)
}

func TestInsertObject(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	inserted, err := r.InsertObject(ctx, "accounts", model.Object{
		"id": int64(2), "name": "bob", "balance": int64(50),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted[0])
	assert.Equal(t, uint64(0), inserted[1])

	_, err = r.InsertObject(ctx, "accounts", model.Object{"id": int64(4), "ghost": true})
	require.Error(t, err)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestReplace(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	_, err := r.Insert(ctx, "accounts", testutil.Account(1, "old", 1))
	require.NoError(t, err)

	replaced, err := r.Replace(ctx, "accounts", testutil.Account(1, "new", 2))
	require.NoError(t, err)
	assert.Equal(t, "new", replaced[2])

	got, err := r.Get(ctx, "accounts", model.Tuple{int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "new", got[2])

	// Replace also works without a prior row.
	fresh, err := r.ReplaceObject(ctx, "accounts", model.Object{"id": int64(6), "name": "f", "balance": int64(0)})
	require.NoError(t, err)
	assert.Equal(t, int64(6), fresh[0])
}

func TestUpdate(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	_, err := r.Insert(ctx, "accounts", testutil.Account(1, "a", 100))
	require.NoError(t, err)

	updated, err := r.Update(ctx, "accounts", model.Tuple{int64(1)}, []model.UpdateOp{
		model.Add("balance", int64(-30)),
		model.Assign("name", "renamed"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(70), updated[3])
	assert.Equal(t, "renamed", updated[2])

	missing, err := r.Update(ctx, "accounts", model.Tuple{int64(99)}, []model.UpdateOp{model.Del("name")})
	require.NoError(t, err)
	assert.Nil(t, missing, "updating an absent key is not an error")

	_, err = r.Update(ctx, "accounts", model.Tuple{int64(1)}, []model.UpdateOp{{Op: "*", Field: "x"}})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestUpsert(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	ops := []model.UpdateOp{model.Add("balance", int64(10))}

	first, err := r.Upsert(ctx, "accounts", testutil.Account(1, "a", 100), ops)
	require.NoError(t, err)
	assert.Equal(t, int64(100), first[3])

	second, err := r.Upsert(ctx, "accounts", testutil.Account(1, "a", 100), ops)
	require.NoError(t, err)
	assert.Equal(t, int64(110), second[3])

	obj := model.Object{"id": int64(2), "name": "b", "balance": int64(5)}
	_, err = r.UpsertObject(ctx, "accounts", obj, ops)
	require.NoError(t, err)
	got, err := r.Get(ctx, "accounts", model.Tuple{int64(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got[3])
}

func TestDelete(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	_, err := r.Insert(ctx, "accounts", testutil.Account(1, "a", 1))
	require.NoError(t, err)

	deleted, err := r.Delete(ctx, "accounts", model.Tuple{int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted[0])

	again, err := r.Delete(ctx, "accounts", model.Tuple{int64(1)})
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestFieldsProjection(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	_, err := r.Insert(ctx, "accounts", testutil.Account(1, "alice", 100))
	require.NoError(t, err)

	got, err := r.Get(ctx, "accounts", model.Tuple{int64(1)}, WithFields("name", "id"))
	require.NoError(t, err)
	assert.Equal(t, model.Tuple{"alice", int64(1)}, got)
}

func TestBucketIDOverrideAndConflict(t *testing.T) {
	r, c := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()

	// Override reroutes id 1 (would hash to p2) onto bucket 0 / p1.
	_, err := r.Insert(ctx, "accounts", testutil.Account(1, "a", 1), WithBucketID(0))
	require.NoError(t, err)
	assert.Len(t, c.Nodes[0].Dump("accounts"), 1)

	// A tuple carrying a different embedded id fails fast.
	_, err = r.Insert(ctx, "accounts", model.Tuple{int64(2), uint64(5), "b", int64(2)}, WithBucketID(6))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBucketIDConflict)
	var re *RoutingError
	assert.ErrorAs(t, err, &re)
}

func TestUnknownSpace(t *testing.T) {
	stats := NewBasicStatsCollector()
	r, _ := newTestRouter(t, 2, evenOdd, WithStats(stats))

	_, err := r.Get(context.Background(), "ghost", model.Tuple{int64(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpaceNotFound)
	var re *RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "ghost", re.Space)
	assert.Equal(t, int64(1), stats.SpaceNotFound())
}

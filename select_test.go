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

// seedAccounts inserts ids 1..n with balance == id through the router.
func seedAccounts(t *testing.T, r *Router, n int64) {
	t.Helper()
	for i := int64(1); i <= n; i++ {
		_, err := r.Insert(context.Background(), "accounts", testutil.Account(i, "acc", i))
		require.NoError(t, err)
	}
}

func ids(rows []model.Tuple) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r[0].(int64)
	}
	return out
}

// An uneven split (p1 holds 4 rows, p2 one) must still merge into one
// ascending sequence, costing exactly one map-reduce and five lookups.
func TestSelectScatterGather(t *testing.T) {
	stats := NewBasicStatsCollector()
	r, c := newTestRouter(t, 2, testutil.FixedSharding(map[int64]uint64{
		1: 0, 2: 0, 3: 0, 4: 0, 5: 1,
	}), WithStats(stats))
	seedAccounts(t, r, 5)
	require.Len(t, c.Nodes[0].Dump("accounts"), 4)
	require.Len(t, c.Nodes[1].Dump("accounts"), 1)

	rows, err := r.Select(context.Background(), "accounts",
		[]model.Condition{model.Gt("balance", int64(0))},
		WithFirst(10),
	)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(rows))
	assert.Equal(t, int64(1), stats.MapReduces("accounts"))
	assert.Equal(t, int64(5), stats.LookedUp())
	assert.Equal(t, int64(5), stats.Fetched())
}

// Equality on the sharding key routes to the owning partition only.
func TestSelectSinglePartitionFastPath(t *testing.T) {
	stats := NewBasicStatsCollector()
	r, c := newTestRouter(t, 2, evenOdd, WithStats(stats))
	seedAccounts(t, r, 6)

	c.Nodes[0].FailWith(storage.NewError(storage.KindUnavailable, "p1 down"))
	defer c.Nodes[0].FailWith(nil)

	// Id 3 lives on p2; p1 being down must not matter.
	rows, err := r.Select(context.Background(), "accounts",
		[]model.Condition{model.Eq("id", int64(3))},
	)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(rows))
	assert.Zero(t, stats.MapReduces("accounts"))
}

func TestSelectPaginationAcrossPartitions(t *testing.T) {
	r, _ := newTestRouter(t, 3, nil)
	seedAccounts(t, r, 25)

	var got []int64
	var after model.Tuple
	for {
		opts := []CallOption{WithFirst(7), WithBatchSize(3)}
		if after != nil {
			opts = append(opts, WithAfter(after))
		}
		page, err := r.Select(context.Background(), "accounts",
			[]model.Condition{model.Ge("id", int64(1))}, opts...)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		got = append(got, ids(page)...)
		after = page[len(page)-1]
	}

	want := make([]int64, 25)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, got)
}

func TestSelectTailMode(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	seedAccounts(t, r, 10)

	anchor, err := r.Get(context.Background(), "accounts", model.Tuple{int64(6)})
	require.NoError(t, err)

	rows, err := r.Select(context.Background(), "accounts",
		[]model.Condition{model.Ge("balance", int64(0))},
		WithFirst(-3), WithAfter(anchor),
	)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 5}, ids(rows), "tail rows come back ascending")
}

// A tail anchor that no longer exists still bounds the scan: iteration
// starts at its nearest predecessor.
func TestSelectTailModeDeletedAnchor(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	seedAccounts(t, r, 10)

	anchor, err := r.Get(context.Background(), "accounts", model.Tuple{int64(6)})
	require.NoError(t, err)
	_, err = r.Delete(context.Background(), "accounts", model.Tuple{int64(6)})
	require.NoError(t, err)

	rows, err := r.Select(context.Background(), "accounts",
		[]model.Condition{model.Ge("balance", int64(0))},
		WithFirst(-3), WithAfter(anchor),
	)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 5}, ids(rows))
}

func TestSelectTailModeWithoutAfter(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	_, err := r.Select(context.Background(), "accounts", nil, WithFirst(-3))
	assert.Error(t, err)
}

func TestSelectSecondaryIndexOrder(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()
	// Balances out of id order, with a duplicate to exercise the
	// primary key tie-break.
	for _, acc := range []struct{ id, balance int64 }{
		{1, 30}, {2, 10}, {3, 20}, {4, 10},
	} {
		_, err := r.Insert(ctx, "accounts", testutil.Account(acc.id, "acc", acc.balance))
		require.NoError(t, err)
	}

	rows, err := r.Select(ctx, "accounts", []model.Condition{model.Ge("balance", int64(0))})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 3, 1}, ids(rows))

	// A leading < flips the scan, output is descending.
	rows, err = r.Select(ctx, "accounts", []model.Condition{model.Le("balance", int64(100))})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 2}, ids(rows))
}

func TestSelectFieldsProjection(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	seedAccounts(t, r, 3)

	rows, err := r.Select(context.Background(), "accounts",
		[]model.Condition{model.Ge("id", int64(1))},
		WithFields("name", "id"),
	)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, model.Tuple{"acc", int64(1)}, rows[0])
}

func TestSelectValidation(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	_, err := r.Select(context.Background(), "accounts",
		[]model.Condition{{Op: "!=", Field: "id", Value: int64(1)}})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestPairsStreamsLazily(t *testing.T) {
	stats := NewBasicStatsCollector()
	r, _ := newTestRouter(t, 2, evenOdd, WithStats(stats))
	seedAccounts(t, r, 40)

	n := 0
	for row, err := range r.Pairs(context.Background(), "accounts",
		[]model.Condition{model.Ge("id", int64(1))},
		WithBatchSize(4),
	) {
		require.NoError(t, err)
		assert.Equal(t, int64(n+1), row[0])
		n++
		if n == 5 {
			break
		}
	}
	assert.Equal(t, 5, n)
	assert.Less(t, stats.Fetched(), int64(40), "breaking early must not drain the partitions")
}

func TestPairsFullDrainMatchesSelect(t *testing.T) {
	r, _ := newTestRouter(t, 3, nil)
	seedAccounts(t, r, 21)

	want, err := r.Select(context.Background(), "accounts",
		[]model.Condition{model.Ge("id", int64(1))})
	require.NoError(t, err)

	var got []model.Tuple
	for row, err := range r.Pairs(context.Background(), "accounts",
		[]model.Condition{model.Ge("id", int64(1))},
		WithBatchSize(5),
	) {
		require.NoError(t, err)
		got = append(got, row)
	}
	assert.Equal(t, want, got)
}

func TestMinMax(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	ctx := context.Background()
	for _, acc := range []struct{ id, balance int64 }{
		{1, 30}, {2, 10}, {3, 20},
	} {
		_, err := r.Insert(ctx, "accounts", testutil.Account(acc.id, "acc", acc.balance))
		require.NoError(t, err)
	}

	minRow, err := r.Min(ctx, "accounts", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), minRow[0])

	maxRow, err := r.Max(ctx, "accounts", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), maxRow[0])

	minBal, err := r.Min(ctx, "accounts", "balance")
	require.NoError(t, err)
	assert.Equal(t, int64(2), minBal[0])

	maxBal, err := r.Max(ctx, "accounts", "balance")
	require.NoError(t, err)
	assert.Equal(t, int64(1), maxBal[0])

	_, err = r.Min(ctx, "accounts", "ghost")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestMinMaxEmptySpace(t *testing.T) {
	r, _ := newTestRouter(t, 2, evenOdd)
	row, err := r.Min(context.Background(), "accounts", "")
	require.NoError(t, err)
	assert.Nil(t, row)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpace() *Space {
	return &Space{
		Name: "accounts",
		Format: []Field{
			{Name: "id", Type: FieldTypeInteger},
			{Name: BucketIDField, Type: FieldTypeUnsigned},
			{Name: "name", Type: FieldTypeString},
			{Name: "balance", Type: FieldTypeInteger},
		},
		PrimaryIndex: Index{Name: "primary", Unique: true, Parts: []int{0}},
		Indexes: []Index{
			{Name: "balance", Parts: []int{3}},
		},
		SchemaVersion: 1,
	}
}

func TestConditionValidate(t *testing.T) {
	assert.NoError(t, Gt("id", int64(0)).Validate())
	assert.Error(t, Condition{Op: "!=", Field: "id"}.Validate())
	assert.Error(t, Condition{Op: OpEq}.Validate())

	err := ValidateConditions([]Condition{Eq("id", int64(1)), {Op: "~", Field: "x"}})
	assert.Error(t, err)
}

func TestConditionMatch(t *testing.T) {
	sp := testSpace()
	row := Tuple{int64(7), uint64(3), "alice", int64(100)}

	t.Run("Operators", func(t *testing.T) {
		for _, tc := range []struct {
			cond Condition
			want bool
		}{
			{Eq("id", int64(7)), true},
			{Eq("id", int64(8)), false},
			{Gt("balance", int64(99)), true},
			{Ge("balance", int64(100)), true},
			{Lt("balance", int64(100)), false},
			{Le("name", "alice"), true},
		} {
			ok, err := tc.cond.Match(row, sp)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok, "%v", tc.cond)
		}
	})

	t.Run("UnknownField", func(t *testing.T) {
		_, err := Eq("missing", int64(1)).Match(row, sp)
		assert.Error(t, err)
	})

	t.Run("ShortTupleIsNil", func(t *testing.T) {
		ok, err := Lt("balance", int64(0)).Match(Tuple{int64(1)}, sp)
		require.NoError(t, err)
		assert.True(t, ok, "missing slot compares as nil, before every value")
	})

	t.Run("MatchAll", func(t *testing.T) {
		ok, err := MatchAll(row, sp, []Condition{Gt("id", int64(0)), Eq("name", "alice")})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = MatchAll(row, sp, []Condition{Gt("id", int64(0)), Eq("name", "bob")})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

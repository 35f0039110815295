package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardq/shardq/model"
)

func TestAsErrorAttribution(t *testing.T) {
	t.Run("attaches node and request id to bare storage errors", func(t *testing.T) {
		e := AsError(NewError(KindDuplicateKey, "dup"), "p1", "req-42")
		assert.Equal(t, "p1", e.Node)
		assert.Equal(t, "req-42", e.RequestID)
	})

	t.Run("keeps existing attribution", func(t *testing.T) {
		in := NewError(KindUnavailable, "down").WithNode("p2").WithRequestID("req-1")
		e := AsError(in, "p9", "req-9")
		assert.Equal(t, "p2", e.Node)
		assert.Equal(t, "req-1", e.RequestID)
	})

	t.Run("wraps context deadline as timeout", func(t *testing.T) {
		e := AsError(context.DeadlineExceeded, "p1", "req-7")
		assert.Equal(t, KindTimeout, e.Kind)
		assert.Equal(t, "req-7", e.RequestID)
		assert.ErrorIs(t, e, context.DeadlineExceeded)
	})

	t.Run("wraps untagged errors as internal", func(t *testing.T) {
		cause := errors.New("boom")
		e := AsError(cause, "p3", "")
		assert.Equal(t, KindInternal, e.Kind)
		assert.Equal(t, "p3", e.Node)
		assert.ErrorIs(t, e, cause)
	})
}

func TestErrorMessageCarriesRequestID(t *testing.T) {
	e := NewError(KindTimeout, "slow").WithNode("p1").WithSpace("accounts").WithRequestID("req-13")
	assert.Contains(t, e.Error(), "p1/accounts")
	assert.Contains(t, e.Error(), "req-13")

	plain := NewError(KindInternal, "boom")
	assert.NotContains(t, plain.Error(), "request")
}

func TestErrorWithersDoNotMutate(t *testing.T) {
	base := NewError(KindDuplicateKey, "dup")
	tagged := base.WithNode("p1").WithRequestID("req-5").WithTuple(model.Tuple{int64(1)})

	assert.Empty(t, base.Node)
	assert.Empty(t, base.RequestID)
	assert.Nil(t, base.Tuple)
	assert.Equal(t, "p1", tagged.Node)
	assert.Equal(t, "req-5", tagged.RequestID)
}

func TestIsMatchesByKind(t *testing.T) {
	err := NewError(KindSchemaMismatch, "stale").WithNode("p1")
	assert.ErrorIs(t, err, NewError(KindSchemaMismatch, ""))
	assert.NotErrorIs(t, err, NewError(KindTimeout, ""))

	require.True(t, IsStaleSchema(err))
	require.True(t, IsStaleSchema(NewError(KindUnknownField, "gone")))
	require.False(t, IsStaleSchema(NewError(KindDuplicateKey, "dup")))
}

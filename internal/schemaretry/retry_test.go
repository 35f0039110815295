package schemaretry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardq/shardq/storage"
)

type recordingInvalidator struct {
	spaces []string
}

func (r *recordingInvalidator) InvalidateSchema(space string) {
	r.spaces = append(r.spaces, space)
}

func staleErr() error {
	return storage.NewError(storage.KindSchemaMismatch, "schema moved")
}

func TestDoRetriesStaleOnce(t *testing.T) {
	inv := &recordingInvalidator{}
	calls := 0

	v, err := Do(context.Background(), inv, "accounts", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, staleErr()
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"accounts"}, inv.spaces)
}

func TestDoSecondStaleSurfacesVerbatim(t *testing.T) {
	inv := &recordingInvalidator{}
	calls := 0
	second := storage.NewError(storage.KindSchemaMismatch, "still stale")

	_, err := Do(context.Background(), inv, "accounts", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, staleErr()
		}
		return 0, second
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls, "exactly one retry")
	assert.Same(t, second, err.(*storage.Error))
	assert.Equal(t, []string{"accounts"}, inv.spaces, "no second invalidation")
}

func TestDoDoesNotRetryOtherErrors(t *testing.T) {
	inv := &recordingInvalidator{}
	calls := 0
	boom := errors.New("network down")

	_, err := Do(context.Background(), inv, "accounts", func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, inv.spaces)
}

func TestDoSuccessPassesThrough(t *testing.T) {
	inv := &recordingInvalidator{}
	v, err := Do(context.Background(), inv, "accounts", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Empty(t, inv.spaces)
}

func TestDoRetriesUnknownFieldKind(t *testing.T) {
	inv := &recordingInvalidator{}
	calls := 0

	_, err := Do(context.Background(), inv, "accounts", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, storage.NewError(storage.KindUnknownField, "field added upstream")
		}
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

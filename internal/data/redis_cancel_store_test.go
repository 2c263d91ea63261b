package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om239903-ai/internship-project/internal/testutil"
)

func TestRedisCancelStore(t *testing.T) {
	mr, client := testutil.SetupMiniRedis(t)
	store := NewRedisCancelStore(client, time.Hour)
	ctx := context.Background()

	set, err := store.IsCancelFlagSet(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, store.SetCancelFlag(ctx, "run-1"))
	set, err = store.IsCancelFlagSet(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, time.Hour, mr.TTL("dealscan:cancel:run-1"))

	require.NoError(t, store.ClearCancelFlag(ctx, "run-1"))
	set, err = store.IsCancelFlagSet(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, set)
}

func TestRedisCancelStore_FlagExpires(t *testing.T) {
	mr, client := testutil.SetupMiniRedis(t)
	store := NewRedisCancelStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.SetCancelFlag(ctx, "run-1"))
	mr.FastForward(2 * time.Minute)

	set, err := store.IsCancelFlagSet(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, set)
}

func TestRedisCancelStore_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewRedisCancelStore(nil, 0).IsCancelFlagSet(ctx, "run-1")
	require.ErrorIs(t, err, ErrRedisNotAvailable)

	mr, client := testutil.SetupMiniRedis(t)
	store := NewRedisCancelStore(client, 0)
	require.Error(t, store.SetCancelFlag(ctx, ""))

	mr.Close()
	require.Error(t, store.SetCancelFlag(ctx, "run-1"))
}

package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type page struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

func TestCacheSetGet(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)

	var got page
	found, err := GetCache(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetCache(ctx, rdb, "k", page{Items: []string{"a"}, Total: 1}, time.Minute))
	found, err = GetCache(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, page{Items: []string{"a"}, Total: 1}, got)

	mr.FastForward(2 * time.Minute)
	found, err = GetCache(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var got page
	found, err := GetCache(ctx, rdb, "k", &got)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	for _, k := range []string{"stakes:user:1:page=1", "stakes:user:1:page=2", "stakes:user:2:page=1"} {
		require.NoError(t, mr.Set(k, "{}"))
	}

	require.NoError(t, DeleteByPrefix(ctx, rdb, "stakes:user:1:"))
	assert.False(t, mr.Exists("stakes:user:1:page=1"))
	assert.False(t, mr.Exists("stakes:user:1:page=2"))
	assert.True(t, mr.Exists("stakes:user:2:page=1"))

	require.NoError(t, DeleteCache(ctx, rdb, "stakes:user:2:page=1"))
	assert.False(t, mr.Exists("stakes:user:2:page=1"))
}

func TestCacheNilClient(t *testing.T) {
	ctx := context.Background()
	var got page

	found, err := GetCache(ctx, nil, "k", &got)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetCache(ctx, nil, "k", got, time.Minute))
	assert.NoError(t, DeleteCache(ctx, nil, "k"))
	assert.NoError(t, DeleteByPrefix(ctx, nil, "k"))
}

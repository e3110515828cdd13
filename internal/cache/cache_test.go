package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kiranshivaraju/authgraph/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newMiniRedis starts an in-process Redis and returns a RedisCache bound to it.
func newMiniRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

// setupRedis spins up a Redis container and returns a connected RedisCache.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rc, err := cache.NewRedisCache("redis://" + host + ":" + port.Port())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

// --- RedisCache ---

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := cache.NewRedisCache("not a url")
	assert.Error(t, err)
}

func TestSetGet_Roundtrip(t *testing.T) {
	rc, _ := newMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "k", []byte("hello"), 10*time.Second))
	val, ok, err := rc.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), val)
}

func TestGet_Miss(t *testing.T) {
	rc, _ := newMiniRedis(t)

	val, ok, err := rc.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestSet_Expires(t *testing.T) {
	rc, mr := newMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, ok, err := rc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_NoKeys(t *testing.T) {
	rc, _ := newMiniRedis(t)
	assert.NoError(t, rc.Delete(context.Background()))
}

func TestDeletePattern(t *testing.T) {
	rc, mr := newMiniRedis(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("authgraph:user_roles_service:u:t:%d", i), "x"))
	}
	require.NoError(t, mr.Set("authgraph:user_roles:u:t", "keep"))

	n, err := rc.DeletePattern(ctx, "authgraph:user_roles_service:u:t:*")
	require.NoError(t, err)
	assert.Equal(t, int64(250), n)
	assert.True(t, mr.Exists("authgraph:user_roles:u:t"))
}

func TestDeletePattern_NoMatches(t *testing.T) {
	rc, mr := newMiniRedis(t)
	require.NoError(t, mr.Set("authgraph:tenant:1", "x"))

	n, err := rc.DeletePattern(context.Background(), "authgraph:user_roles_service:*")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, mr.Exists("authgraph:tenant:1"))
}

func TestIncr(t *testing.T) {
	rc, _ := newMiniRedis(t)
	ctx := context.Background()

	v, err := rc.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = rc.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestPing_ServerDown(t *testing.T) {
	rc, mr := newMiniRedis(t)
	require.NoError(t, rc.Ping(context.Background()))

	mr.Close()
	assert.Error(t, rc.Ping(context.Background()))
}

func TestDeletePattern_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, rc.Set(ctx, fmt.Sprintf("scan:%d", i), []byte("x"), time.Minute))
	}
	require.NoError(t, rc.Set(ctx, "other", []byte("x"), time.Minute))

	n, err := rc.DeletePattern(ctx, "scan:*")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	_, ok, err := rc.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
}

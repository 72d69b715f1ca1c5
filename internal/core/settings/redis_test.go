package settings

import (
	"context"
	"sync"
	"testing"
	"time"

	"lifekit-core/internal/constants"
	coreerrors "lifekit-core/internal/core/errors"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newEmbeddedStore(t *testing.T) (*TypedStore, *RedisBackend) {
	t.Helper()
	backend, err := NewEmbeddedRedisBackend()
	require.NoError(t, err)
	s, err := NewStore(backend)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, backend
}

func TestRedisBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, backend := newEmbeddedStore(t)

	require.NoError(t, s.SetInt(ctx, "cleanup.slow_batch", 4))
	v, err := s.GetInt(ctx, "cleanup.slow_batch")
	require.NoError(t, err)
	require.Equal(t, int64(4), v)

	_, err = s.GetString(ctx, "missing")
	require.True(t, coreerrors.IsCode(err, coreerrors.CodeNotFound))

	require.NoError(t, s.SetString(ctx, "runtime.profile", "conservative"))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"cleanup.slow_batch", "runtime.profile"}, keys)

	// 存储布局：单一 hash，设置键为 field
	raw, err := backend.Client().HGet(ctx, constants.KeyPrefixSettings, "runtime.profile").Result()
	require.NoError(t, err)
	require.Equal(t, "conservative", raw)

	require.NoError(t, s.Delete(ctx, "cleanup.slow_batch"))
	_, err = s.GetInt(ctx, "cleanup.slow_batch")
	require.True(t, coreerrors.IsCode(err, coreerrors.CodeNotFound))
}

func TestRedisBackend_WatchViaPubSub(t *testing.T) {
	ctx := context.Background()
	s, _ := newEmbeddedStore(t)

	var mu sync.Mutex
	var got []string
	_, err := s.Watch("runtime.profile", func(value string) {
		mu.Lock()
		got = append(got, value)
		mu.Unlock()
	})
	require.NoError(t, err)

	// 本地写入经 pub/sub 回流触发监听
	require.NoError(t, s.SetString(ctx, "runtime.profile", "fast"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "fast"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Delete(ctx, "runtime.profile"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2 && got[1] == ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBackend_CrossInstancePropagation(t *testing.T) {
	ctx := context.Background()
	watcherStore, backend := newEmbeddedStore(t)

	// 第二个实例连到同一个内嵌服务
	writer := NewRedisBackendFromClient(redis.NewClient(&redis.Options{Addr: backend.Addr()}))
	writerStore, err := NewStore(writer)
	require.NoError(t, err)
	defer writerStore.Close()

	var mu sync.Mutex
	var got string
	_, err = watcherStore.Watch("subscription.default_cap", func(value string) {
		mu.Lock()
		got = value
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, writerStore.SetInt(ctx, "subscription.default_cap", 64))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got == "64"
	}, 2*time.Second, 10*time.Millisecond)

	// 写入方读自己的存储也看到同一份数据
	v, err := watcherStore.GetInt(ctx, "subscription.default_cap")
	require.NoError(t, err)
	require.Equal(t, int64(64), v)
}

func TestRedisBackend_Ping(t *testing.T) {
	_, backend := newEmbeddedStore(t)
	require.NoError(t, backend.Ping(context.Background()))
}

//go:build integration

package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-inclusionfilter/pkg/cache"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRawRedisClient(t *testing.T, addr string) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSource_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	rc := emulators.GetDefaultRedisImageContainer()
	redisConn := emulators.SetupRedisContainer(t, ctx, rc)
	rawClient := newRawRedisClient(t, redisConn.EmulatorAddress)

	newSource := func(t *testing.T, ttl time.Duration, fallback cache.Fetcher) (*cache.RedisSource, string) {
		t.Helper()
		prefix := "selector-test:" + uuid.NewString() + ":"
		source, err := cache.NewRedisSource(ctx, &cache.RedisConfig{
			Addr:      redisConn.EmulatorAddress,
			KeyPrefix: prefix,
			CacheTTL:  ttl,
		}, zerolog.Nop(), fallback)
		require.NoError(t, err)
		t.Cleanup(func() { _ = source.Close() })
		return source, prefix
	}

	t.Run("Miss computes and stores, hit reads", func(t *testing.T) {
		var computed atomic.Int32
		source, prefix := newSource(t, time.Minute, cache.FetcherFunc(func(ctx context.Context, key string) (float64, error) {
			computed.Add(1)
			return 2.5, nil
		}))

		v, err := source.Fetch(ctx, "5")
		require.NoError(t, err)
		assert.Equal(t, 2.5, v)
		assert.Equal(t, int32(1), computed.Load())

		stored, err := rawClient.Get(ctx, prefix+"5").Result()
		require.NoError(t, err)
		assert.Equal(t, "2.5", stored)

		v, err = source.Fetch(ctx, "5")
		require.NoError(t, err)
		assert.Equal(t, 2.5, v)
		assert.Equal(t, int32(1), computed.Load(), "Fallback should NOT be called on a Redis hit")
	})

	t.Run("Stored values expire after the TTL", func(t *testing.T) {
		var computed atomic.Int32
		source, prefix := newSource(t, 150*time.Millisecond, cache.FetcherFunc(func(ctx context.Context, key string) (float64, error) {
			computed.Add(1)
			return 1.0, nil
		}))

		_, err := source.Fetch(ctx, "3")
		require.NoError(t, err)
		ttl, err := rawClient.PTTL(ctx, prefix+"3").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, 150*time.Millisecond)

		require.Eventually(t, func() bool {
			n, err := rawClient.Exists(ctx, prefix+"3").Result()
			return err == nil && n == 0
		}, 5*time.Second, 50*time.Millisecond)

		_, err = source.Fetch(ctx, "3")
		require.NoError(t, err)
		assert.Equal(t, int32(2), computed.Load(), "An expired key is computed again")
	})

	t.Run("Losing the write race returns the stored value", func(t *testing.T) {
		var prefix string
		var source *cache.RedisSource
		// Another process stores its value while this one is still computing.
		source, prefix = newSource(t, time.Minute, cache.FetcherFunc(func(ctx context.Context, key string) (float64, error) {
			require.NoError(t, rawClient.Set(ctx, prefix+key, "7.5", time.Minute).Err())
			return 1.0, nil
		}))

		v, err := source.Fetch(ctx, "9")
		require.NoError(t, err)
		assert.Equal(t, 7.5, v)

		stored, err := rawClient.Get(ctx, prefix+"9").Result()
		require.NoError(t, err)
		assert.Equal(t, "7.5", stored, "The winner's value must not be overwritten")
	})

	t.Run("Backs a KeyedCache", func(t *testing.T) {
		source, _ := newSource(t, time.Minute, cache.StaticFetcher(4.0))
		c := cache.NewKeyedCache(nil, source, nil, zerolog.Nop())
		require.NoError(t, c.Init(ctx))
		t.Cleanup(func() { _ = c.Teardown() })

		e, err := c.GetOrCreate(ctx, "5")
		require.NoError(t, err)
		assert.Equal(t, 4.0, e.Value)
	})
}

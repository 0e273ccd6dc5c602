package data

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisRepo(t *testing.T) (*RedisCacheRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheRepo(client, "test:"), mr
}

func TestRedisCacheRepo_SetGetDelete(t *testing.T) {
	repo, mr := newMiniredisRepo(t)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "k1", []byte("v1"), 5*time.Minute))

		got, err := repo.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		assert.True(t, mr.Exists("test:k1"), "key is stored with prefix")
		ttl := mr.TTL("test:k1")
		assert.True(t, ttl > 0 && ttl <= 5*time.Minute)
	})

	t.Run("get missing key", func(t *testing.T) {
		got, err := repo.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "short", []byte("x"), time.Second))
		mr.FastForward(2 * time.Second)
		got, err := repo.Get(ctx, "short")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "gone", []byte("x"), 0))
		deleted, err := repo.Delete(ctx, "gone")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, repo.Set(ctx, "", nil, 0), errEmptyCacheKey)
		_, err := repo.Get(ctx, "")
		assert.ErrorIs(t, err, errEmptyCacheKey)
		_, err = repo.Delete(ctx, "")
		assert.ErrorIs(t, err, errEmptyCacheKey)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, repo.Health(ctx))
	})
}

func TestRedisCacheRepo_ServerDown(t *testing.T) {
	repo, mr := newMiniredisRepo(t)
	mr.Close()

	ctx := context.Background()
	_, err := repo.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, repo.Set(ctx, "k", []byte("v"), 0))
	assert.Error(t, repo.Health(ctx))
}

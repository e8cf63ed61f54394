package storage

import (
	"context"
	"testing"
	"time"

	"github.com/findosh/quantdesk/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*CacheRepository, *time.Time) {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewCacheRepository(db)
	repo.now = func() time.Time { return now }
	return repo, &now
}

func TestCacheRepository_SetGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	require.NoError(t, repo.Set(ctx, "history:AAPL:1y:1d", []byte(`[1,2,3]`), time.Hour))

	value, found, err := repo.Get(ctx, "history:AAPL:1y:1d")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[1,2,3]`, string(value))

	_, found, err = repo.Get(ctx, "history:MSFT:1y:1d")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	require.NoError(t, repo.Set(ctx, "k", []byte("old"), time.Hour))
	require.NoError(t, repo.Set(ctx, "k", []byte("new"), time.Hour))

	value, found, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "new", string(value))
}

func TestCacheRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo, now := newTestRepository(t)

	require.NoError(t, repo.Set(ctx, "quote:AAPL", []byte("v"), 30*time.Second))

	*now = now.Add(30 * time.Second)
	_, found, err := repo.Get(ctx, "quote:AAPL")
	require.NoError(t, err)
	assert.False(t, found)

	purged, err := repo.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestCacheRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	require.NoError(t, repo.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, repo.Delete(ctx, "k"))

	_, found, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, repo.Ping(ctx))
}

func TestCacheRepository_NonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	repo, now := newTestRepository(t)

	require.NoError(t, repo.Set(ctx, "quote:AAPL", []byte("v"), 0))
	require.NoError(t, repo.Set(ctx, "quote:MSFT", []byte("v"), -time.Second))

	for _, key := range []string{"quote:AAPL", "quote:MSFT"} {
		_, found, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, found, key)
	}

	*now = now.Add(cache.DefaultTTL)
	_, found, err := repo.Get(ctx, "quote:AAPL")
	require.NoError(t, err)
	assert.False(t, found)
}

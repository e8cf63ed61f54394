package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryStore(t *testing.T, opts ...MemoryOption) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(append([]MemoryOption{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(func() { store.Close() })
	return store, clock
}

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestMemoryStore(t)

	require.NoError(t, store.Set(ctx, "quote:AAPL", []byte(`{"price":"1"}`), time.Minute))

	value, found, err := store.Get(ctx, "quote:AAPL")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"price":"1"}`, string(value))

	_, found, err = store.Get(ctx, "quote:MSFT")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestMemoryStore(t)

	require.NoError(t, store.Set(ctx, "quote:AAPL", []byte("v"), 30*time.Second))

	clock.Advance(29 * time.Second)
	_, found, _ := store.Get(ctx, "quote:AAPL")
	assert.True(t, found, "entry should be live before its ttl elapses")

	clock.Advance(time.Second)
	_, found, _ = store.Get(ctx, "quote:AAPL")
	assert.False(t, found, "entry must not be returned once its ttl has elapsed")
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestMemoryStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "never-set"))

	_, found, _ := store.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryStore_ValueIsCopied(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestMemoryStore(t)

	buf := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'z'

	value, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(value))
}

func TestMemoryStore_Eviction(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestMemoryStore(t, WithMaxEntries(10))

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour))
		clock.Advance(time.Second)
	}
	require.NoError(t, store.Set(ctx, "k10", []byte("v"), time.Hour))

	_, found, _ := store.Get(ctx, "k0")
	assert.False(t, found, "oldest entry should be evicted")
	_, found, _ = store.Get(ctx, "k10")
	assert.True(t, found)
	assert.Equal(t, 10, store.Stats()["entries"])
}

func TestMemoryStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestMemoryStore(t)

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("v"), time.Hour))

	clock.Advance(time.Minute)
	store.cleanup()

	assert.Equal(t, 1, store.Stats()["entries"])
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestMemoryStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%5)
			_ = store.Set(ctx, key, []byte("v"), time.Minute)
			_, _, _ = store.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, store.Stats()["entries"])
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestMemoryStore(t)

	type payload struct {
		Ticker string  `json:"ticker"`
		Price  float64 `json:"price"`
	}

	require.NoError(t, SetJSON(ctx, store, "quote:AAPL", payload{Ticker: "AAPL", Price: 175.5}, time.Minute))

	got, err := GetJSON[payload](ctx, store, "quote:AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, 175.5, got.Price)

	_, err = GetJSON[payload](ctx, store, "quote:NONE")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "bad", []byte("{not json"), time.Minute))
	_, err = GetJSON[payload](ctx, store, "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

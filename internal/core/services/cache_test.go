package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven/mocks"
)

type cachedProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Tags  []string
}

func newTestCache(allowClear bool) (*mocks.MockKVStore, *fakeClock, *Cache) {
	clock := newFakeClock()
	store := mocks.NewMockKVStore()
	store.Now = clock.Now
	cache := NewCache(CacheConfig{
		Store:      store,
		DefaultTTL: 30 * time.Minute,
		AllowClear: allowClear,
	})
	return store, clock, cache
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	_, _, cache := newTestCache(false)
	ctx := context.Background()

	in := cachedProfile{ID: "p-1", Email: "a@x.com", Tags: []string{"x", "y"}}
	require.NoError(t, cache.Set(ctx, "profile:p-1", in))

	var out cachedProfile
	require.True(t, cache.Get(ctx, "profile:p-1", &out))
	assert.Equal(t, in, out)
}

func TestCache_Expiry(t *testing.T) {
	_, clock, cache := newTestCache(false)
	ctx := context.Background()

	require.NoError(t, cache.SetWithTTL(ctx, "k", "v", time.Minute))

	var v string
	assert.True(t, cache.Get(ctx, "k", &v))
	assert.True(t, cache.Exists(ctx, "k"))

	clock.Advance(time.Minute)
	assert.False(t, cache.Get(ctx, "k", &v))
	assert.False(t, cache.Exists(ctx, "k"))
}

func TestCache_DefaultTTLAppliesToSet(t *testing.T) {
	_, clock, cache := newTestCache(false)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1))
	clock.Advance(cache.DefaultTTL() - time.Second)

	var n int
	require.True(t, cache.Get(ctx, "k", &n))

	clock.Advance(time.Second)
	assert.False(t, cache.Get(ctx, "k", &n))
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	_, clock, cache := newTestCache(false)
	ctx := context.Background()

	require.NoError(t, cache.SetWithTTL(ctx, "k", "v", 0))
	clock.Advance(365 * 24 * time.Hour)

	assert.True(t, cache.Exists(ctx, "k"))
}

func TestCache_Miss(t *testing.T) {
	_, _, cache := newTestCache(false)

	var v string
	assert.False(t, cache.Get(context.Background(), "missing", &v))
	assert.Empty(t, v)
}

func TestCache_InvalidInput(t *testing.T) {
	_, _, cache := newTestCache(false)
	ctx := context.Background()

	assert.ErrorIs(t, cache.Set(ctx, "k", make(chan int)), domain.ErrInvalidInput)
	assert.ErrorIs(t, cache.SetWithTTL(ctx, "k", "v", -time.Second), domain.ErrInvalidInput)
	assert.ErrorIs(t, cache.Set(ctx, "", "v"), domain.ErrInvalidInput)
}

func TestCache_UndecodableValueIsMiss(t *testing.T) {
	store, _, cache := newTestCache(false)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("{not json"), 0))

	var out cachedProfile
	assert.False(t, cache.Get(ctx, "k", &out))
}

func TestCache_Delete(t *testing.T) {
	_, _, cache := newTestCache(false)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v"))
	require.NoError(t, cache.Delete(ctx, "k"))
	assert.False(t, cache.Exists(ctx, "k"))

	assert.NoError(t, cache.Delete(ctx, "never-set"))
}

func TestCache_BackendFailure(t *testing.T) {
	store, _, cache := newTestCache(true)
	ctx := context.Background()
	store.Err = errors.New("connection refused")

	var v string
	assert.False(t, cache.Get(ctx, "k", &v), "reads degrade to a miss")
	assert.False(t, cache.Exists(ctx, "k"))

	assert.ErrorIs(t, cache.Set(ctx, "k", "v"), domain.ErrUnavailable)
	assert.ErrorIs(t, cache.Delete(ctx, "k"), domain.ErrUnavailable)
	assert.ErrorIs(t, cache.Clear(ctx), domain.ErrUnavailable)

	_, err := cache.Increment(ctx, "n", time.Minute)
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	assert.Error(t, cache.Ping(ctx))
}

func TestCache_ClearGated(t *testing.T) {
	t.Run("refused when disabled", func(t *testing.T) {
		store, _, cache := newTestCache(false)
		ctx := context.Background()
		require.NoError(t, cache.Set(ctx, "k", "v"))

		assert.ErrorIs(t, cache.Clear(ctx), domain.ErrForbidden)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("drops every entry when enabled", func(t *testing.T) {
		store, _, cache := newTestCache(true)
		ctx := context.Background()
		require.NoError(t, cache.Set(ctx, "a", 1))
		require.NoError(t, cache.Set(ctx, "b", 2))

		require.NoError(t, cache.Clear(ctx))
		assert.Equal(t, 0, store.Len())
	})
}

func TestCache_Increment(t *testing.T) {
	_, clock, cache := newTestCache(false)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := cache.Increment(ctx, "n", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	var n int64
	require.True(t, cache.Get(ctx, "n", &n))
	assert.Equal(t, int64(3), n)

	clock.Advance(time.Minute)
	n2, err := cache.Increment(ctx, "n", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n2, "counter restarts after its window")
}

func TestCache_RecordsMetrics(t *testing.T) {
	metrics := &mocks.MockAuthMetrics{}
	metrics.On("CacheOperation", "set", "ok").Once()
	metrics.On("CacheOperation", "get", "hit").Once()
	metrics.On("CacheOperation", "get", "miss").Once()

	cache := NewCache(CacheConfig{Store: mocks.NewMockKVStore(), Metrics: metrics})
	ctx := context.Background()

	var v string
	require.NoError(t, cache.Set(ctx, "k", "v"))
	cache.Get(ctx, "k", &v)
	cache.Get(ctx, "other", &v)

	metrics.AssertExpectations(t)
}

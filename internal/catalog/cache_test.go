package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ProductCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProductCache(client, time.Minute), mr
}

func TestProductCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	product := Product{ID: 7, Name: "Latte", Ingredients: []Ingredient{
		{StockItemID: 1, Unit: "kg", QuantityRequired: 0.02},
	}}

	_, ok := cache.Get(ctx, 7)
	require.False(t, ok)

	cache.Set(ctx, product)
	cached, ok := cache.Get(ctx, 7)
	require.True(t, ok)
	require.Equal(t, product.Name, cached.Name)
	require.Len(t, cached.Ingredients, 1)
	require.InDelta(t, 0.02, cached.Ingredients[0].QuantityRequired, 1e-9)
}

func TestProductCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, Product{ID: 3, Name: "Espresso"})
	cache.Invalidate(ctx, 3)

	_, ok := cache.Get(ctx, 3)
	require.False(t, ok)
}

func TestProductCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, Product{ID: 5, Name: "Mocha"})
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, 5)
	require.False(t, ok)
}

func TestNilCacheIsNoop(t *testing.T) {
	var cache *ProductCache
	ctx := context.Background()

	cache.Set(ctx, Product{ID: 1})
	cache.Invalidate(ctx, 1)
	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)
}

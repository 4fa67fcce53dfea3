//go:build integration

package hospitals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := OpenRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCache(client)

	_, ok, err := cache.Get(ctx, "manila")
	require.NoError(t, err)
	assert.False(t, ok)

	in := &Result{
		Location:  "Manila",
		Origin:    Point{Lat: 14.5995, Lon: 120.9842},
		Hospitals: []Hospital{{Name: "Near Medical Center", Address: "Near Medical Center, Manila", DistanceKM: 2.1}},
	}
	require.NoError(t, cache.Set(ctx, "manila", in, time.Minute))

	got, ok, err := cache.Get(ctx, "manila")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, got)

	ttl, err := client.TTL(ctx, redisKeyPrefix+"manila").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Total int64 `json:"total"`
}

func TestNoopAlwaysMisses(t *testing.T) {
	var c Noop
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", summary{Total: 1}))
	var dest summary
	found, err := c.Get(ctx, "k", &dest)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	// уникальный префикс, чтобы не пересекаться с другими прогонами
	c, err := Connect(ctx, addr, "test:"+uuid.NewString()+":", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	var dest summary
	found, err := c.Get(ctx, "summary", &dest)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "summary", summary{Total: 5}))
	found, err = c.Get(ctx, "summary", &dest)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(5), dest.Total)

	require.NoError(t, c.Delete(ctx, "summary"))
	found, err = c.Get(ctx, "summary", &dest)
	require.NoError(t, err)
	assert.False(t, found)

	stats := c.GetStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(1), stats.Sets)
	assert.Equal(t, uint64(1), stats.Deletes)
	assert.NoError(t, c.Ping(ctx))
}

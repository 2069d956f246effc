package mecache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "u1", []byte(`{"a":1}`), 250*time.Millisecond))
	b, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, string(b))

	now = now.Add(time.Second)
	_, ok, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "", []byte("x"), time.Minute))
	_, ok, _ = c.Get(ctx, "")
	require.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisCache(client, "")
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "u1", []byte(`{"user":{}}`), 15*time.Second))
	require.True(t, mr.Exists("me:u1"))
	b, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"user":{}}`, string(b))

	mr.FastForward(16 * time.Second)
	_, ok, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)
}

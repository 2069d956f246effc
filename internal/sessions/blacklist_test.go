package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBlacklist(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bl := NewRedisBlacklist(client)
	ctx := context.Background()

	ok, err := bl.Contains(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, bl.Add(ctx, "tok", time.Minute))
	require.True(t, mr.Exists("blacklist:access:tok"))
	ok, err = bl.Contains(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = bl.Contains(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)

	// already expired tokens are not stored
	require.NoError(t, bl.Add(ctx, "old", 0))
	require.False(t, mr.Exists("blacklist:access:old"))
}

func TestMemoryBlacklist(t *testing.T) {
	bl := NewMemoryBlacklist()
	now := time.Unix(1000, 0)
	bl.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, bl.Add(ctx, "tok", time.Minute))
	require.NoError(t, bl.Add(ctx, "neg", -time.Second))

	ok, _ := bl.Contains(ctx, "tok")
	require.True(t, ok)
	ok, _ = bl.Contains(ctx, "neg")
	require.False(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = bl.Contains(ctx, "tok")
	require.False(t, ok)
}

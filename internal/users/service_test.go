package users

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

func TestUpsertFromDiscord(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo)
	ctx := context.Background()

	u, err := svc.UpsertFromDiscord(ctx, &discordgo.User{ID: "42", Username: "sparck", Avatar: "a1"})
	require.NoError(t, err)
	require.NotNil(t, u)
	require.NotEmpty(t, u.ID)
	require.Equal(t, "sparck", u.Username)
	require.False(t, u.CreatedAt.IsZero())
	require.False(t, u.CreatedAt.After(u.UpdatedAt))

	// second login refreshes profile, keeps identity and creation time
	u2, err := svc.UpsertFromDiscord(ctx, &discordgo.User{ID: "42", Username: "renamed", GlobalName: "R"})
	require.NoError(t, err)
	require.Equal(t, u.ID, u2.ID)
	require.Equal(t, u.CreatedAt, u2.CreatedAt)
	require.Equal(t, "renamed", u2.Username)
	require.Empty(t, u2.Avatar)

	got, err := svc.GetByDiscordID(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, "R", got.GlobalName)

	missing, err := svc.GetByDiscordID(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	// missing id => nil
	u3, err := svc.UpsertFromDiscord(ctx, &discordgo.User{Username: "ghost"})
	require.NoError(t, err)
	require.Nil(t, u3)
}

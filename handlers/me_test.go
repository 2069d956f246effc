package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sparcky/panel-api/internal/models"
	"github.com/sparcky/panel-api/internal/tokens"
	"github.com/stretchr/testify/require"
)

func TestMe_SuccessAndCache(t *testing.T) {
	env := newTestEnv(t)
	env.discord.guilds = []*discordgo.UserGuild{
		{ID: "g1", Name: "One", Icon: "ic1", Owner: true},
		{ID: "g2", Name: "Two"},
	}
	token := env.login(t, "42")

	w, body := env.do(t, http.MethodGet, "/api/me", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	user := body["user"].(map[string]interface{})
	require.Equal(t, "42", user["id"])
	require.Equal(t, "user42", user["username"])
	require.Equal(t, "https://cdn.discordapp.com/embed/avatars/0.png?size=128", user["avatarUrl"])

	bot := body["bot"].(map[string]interface{})
	require.Equal(t, "999", bot["id"])
	require.Equal(t, "Sparcky", bot["username"])

	guilds := body["guilds"].([]interface{})
	require.Len(t, guilds, 2)
	g1 := guilds[0].(map[string]interface{})
	require.Equal(t, "g1", g1["id"])
	require.Equal(t, "https://cdn.discordapp.com/icons/g1/ic1.png?size=64", g1["iconUrl"])
	require.Nil(t, guilds[1].(map[string]interface{})["iconUrl"])

	// second call is served from cache
	w, _ = env.do(t, http.MethodGet, "/api/me", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, env.discord.guildCalls)
}

func TestMe_NoBotIDGivesNullBot(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Discord.BotID = ""
	token := env.login(t, "7")

	w, body := env.do(t, http.MethodGet, "/api/me", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, body, "bot")
	require.Nil(t, body["bot"])
	require.Equal(t, []interface{}{}, body["guilds"])
}

func TestMe_MissingSession(t *testing.T) {
	env := newTestEnv(t)
	tok, err := tokens.GenerateAccessToken(env.cfg, &models.User{DiscordID: "1"}, "no-such-session", time.Hour)
	require.NoError(t, err)

	w, body := env.do(t, http.MethodGet, "/api/me", tok, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Missing Discord access token", body["error"])
}

func TestMe_DiscordUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	env.discord.guildsErr = restError(http.StatusForbidden)
	w, body := env.do(t, http.MethodGet, "/api/me", env.login(t, "1"), "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Discord token invalid or expired", body["error"])
}

func TestMe_DiscordFailure(t *testing.T) {
	env := newTestEnv(t)
	env.discord.guildsErr = restError(http.StatusInternalServerError)
	w, body := env.do(t, http.MethodGet, "/api/me", env.login(t, "1"), "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "Failed to fetch user data", body["error"])
	require.Equal(t, float64(500), body["meta"].(map[string]interface{})["discordStatus"])
}

func TestMe_RateLimitIsCached(t *testing.T) {
	env := newTestEnv(t)
	env.discord.guildsErr = rateLimitError(1500 * time.Millisecond)
	token := env.login(t, "5")

	w, body := env.do(t, http.MethodGet, "/api/me", token, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1.5", w.Header().Get("Retry-After"))
	require.Equal(t, "Discord rate limited", body["error"])
	require.Equal(t, 1.5, body["retry_after"])

	// replayed from cache without another Discord call
	env.discord.guildsErr = nil
	w, body = env.do(t, http.MethodGet, "/api/me", token, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1.5", w.Header().Get("Retry-After"))
	require.Equal(t, 1.5, body["retry_after"])
	require.Equal(t, 1, env.discord.guildCalls)
}

func TestMe_RateLimitWithoutRetryAfter(t *testing.T) {
	env := newTestEnv(t)
	env.discord.guildsErr = restError(http.StatusTooManyRequests)
	w, body := env.do(t, http.MethodGet, "/api/me", env.login(t, "6"), "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Empty(t, w.Header().Get("Retry-After"))
	require.Contains(t, body, "retry_after")
	require.Nil(t, body["retry_after"])
}

package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func withGuild(env *testEnv) {
	env.discord.botUser = &discordgo.User{ID: "999", Username: "Sparcky", Avatar: "botav"}
	env.discord.guild = &discordgo.Guild{ID: "g1", Name: "Guild One", Icon: "gic", OwnerID: "42"}
	env.discord.channels = []*discordgo.Channel{
		{ID: "c2", Name: "general", Type: discordgo.ChannelTypeGuildText, Position: 1, ParentID: "cat"},
		{ID: "cat", Name: "Text", Type: discordgo.ChannelTypeGuildCategory, Position: 5},
		{ID: "c1", Name: "alpha", Type: discordgo.ChannelTypeGuildText, Position: 1},
	}
}

func TestGuildDetails(t *testing.T) {
	env := newTestEnv(t)
	withGuild(env)
	token := env.login(t, "42")

	w, body := env.do(t, http.MethodGet, "/api/guilds/g1", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["botInGuild"])
	require.Nil(t, body["inviteUrl"])

	guild := body["guild"].(map[string]interface{})
	require.Equal(t, "Guild One", guild["name"])
	require.Equal(t, "https://cdn.discordapp.com/icons/g1/gic.png?size=128", guild["iconUrl"])
	require.Equal(t, "42", guild["owner_id"])

	bot := body["bot"].(map[string]interface{})
	require.Equal(t, "online", bot["status"])

	channels := body["channels"].([]interface{})
	ids := make([]string, 0, len(channels))
	for _, ch := range channels {
		ids = append(ids, ch.(map[string]interface{})["id"].(string))
	}
	require.Equal(t, []string{"cat", "c1", "c2"}, ids)

	cfg := body["config"].(map[string]interface{})
	require.Equal(t, "g1", cfg["guildId"])
	require.Equal(t, "fr", cfg["language"])

	src := body["configSource"].(map[string]interface{})
	require.Equal(t, "sparcky", src["db"])
	require.Equal(t, "guildconfigurations", src["collection"])
	require.Equal(t, false, src["hasDoc"])

	// once a config is stored the source reports it
	w, _ = env.do(t, http.MethodPut, "/api/guilds/g1/config", token, `{"modLogChannel":"logs"}`)
	require.Equal(t, http.StatusOK, w.Code)
	_, body = env.do(t, http.MethodGet, "/api/guilds/g1", token, "")
	require.Equal(t, true, body["configSource"].(map[string]interface{})["hasDoc"])
}

func TestGuildDetails_BotAbsent(t *testing.T) {
	env := newTestEnv(t)
	withGuild(env)
	env.cfg.Discord.InvitePermissions = "8"
	env.discord.guildErr = restError(http.StatusNotFound)

	w, body := env.do(t, http.MethodGet, "/api/guilds/g1", env.login(t, "42"), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, body["botInGuild"])
	require.Contains(t, body["inviteUrl"], "client_id=999")
	require.Contains(t, body["inviteUrl"], "guild_id=g1")
	require.Contains(t, body["inviteUrl"], "permissions=8")
	require.Equal(t, map[string]interface{}{"id": "g1"}, body["guild"])
	require.Equal(t, "absent", body["bot"].(map[string]interface{})["status"])
	require.Equal(t, []interface{}{}, body["channels"])
	require.NotNil(t, body["config"])
	require.NotContains(t, body, "configSource")
	require.Equal(t, "Bot is not in this guild (or missing permissions)", body["error"])
}

func TestGuildDetails_Failures(t *testing.T) {
	env := newTestEnv(t)
	withGuild(env)
	token := env.login(t, "42")

	env.discord.guildErr = restError(http.StatusInternalServerError)
	w, body := env.do(t, http.MethodGet, "/api/guilds/g1", token, "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "Failed to fetch guild details", body["error"])

	env.discord.hasBot = false
	w, body = env.do(t, http.MethodGet, "/api/guilds/g1", token, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "Missing DISCORD_BOT_TOKEN", body["error"])
	require.NotEmpty(t, body["meta"].(map[string]interface{})["hint"])
}

func TestGuildConfig_GetPut(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "42")

	w, body := env.do(t, http.MethodGet, "/api/guilds/g9/config", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "g9", body["guildId"])
	cfg := body["config"].(map[string]interface{})
	require.Equal(t, false, cfg["antispam"])
	require.Nil(t, cfg["welcomeChannel"])

	w, body = env.do(t, http.MethodPut, "/api/guilds/g9/config", token,
		`{"welcomeChannel":"w1","antispam":true,"antilink":"yes","language":"EN!","badWords":[" foo ","",3]}`)
	require.Equal(t, http.StatusOK, w.Code)
	cfg = body["config"].(map[string]interface{})
	require.Equal(t, "w1", cfg["welcomeChannel"])
	require.Equal(t, true, cfg["antispam"])
	require.Equal(t, false, cfg["antilink"])
	require.Equal(t, "en", cfg["language"])
	require.Equal(t, []interface{}{"foo", "3"}, cfg["badWords"])

	// channels not supplied are cleared; flags stay
	w, body = env.do(t, http.MethodPut, "/api/guilds/g9/config", token, `{"antilink":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	cfg = body["config"].(map[string]interface{})
	require.Nil(t, cfg["welcomeChannel"])
	require.Equal(t, true, cfg["antispam"])
	require.Equal(t, true, cfg["antilink"])

	stored, err := env.store.FindOne(context.Background(), "guildconfigurations", bson.D{{Key: "guildId", Value: "g9"}})
	require.NoError(t, err)
	require.Equal(t, true, stored["antilink"])

	w, body = env.do(t, http.MethodPut, "/api/guilds/g9/config", token, `{"antilink":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid JSON body", body["error"])
}

func TestGuildLogs(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "42")

	w, body := env.do(t, http.MethodGet, "/api/guilds/g1/logs", token, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "No modLogChannel configured for this guild", body["error"])

	_, err := env.configs.Set(context.Background(), "g1", map[string]interface{}{"modLogChannel": "modlog"})
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.discord.messages = []*discordgo.Message{
		{ID: "m1", ChannelID: "modlog", Content: "banned x", Timestamp: ts, Author: &discordgo.User{ID: "999", Username: "Sparcky"}},
	}
	w, body = env.do(t, http.MethodGet, "/api/guilds/g1/logs?limit=500", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 100, env.discord.lastLimit)
	require.Equal(t, "modlog", env.discord.lastChannel)
	require.Equal(t, "modlog", body["channelId"])
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 1)
	m := msgs[0].(map[string]interface{})
	require.Equal(t, "banned x", m["content"])
	require.Nil(t, m["author"].(map[string]interface{})["global_name"])

	env.do(t, http.MethodGet, "/api/guilds/g1/logs", token, "")
	require.Equal(t, 50, env.discord.lastLimit)

	env.discord.messagesErr = restError(http.StatusForbidden)
	w, body = env.do(t, http.MethodGet, "/api/guilds/g1/logs", token, "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "Missing permissions to read log channel", body["error"])

	env.discord.messagesErr = restError(http.StatusNotFound)
	w, body = env.do(t, http.MethodGet, "/api/guilds/g1/logs", token, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "Log channel not found", body["error"])

	env.discord.messagesErr = restError(http.StatusBadGateway)
	w, body = env.do(t, http.MethodGet, "/api/guilds/g1/logs", token, "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "Failed to fetch logs", body["error"])
}

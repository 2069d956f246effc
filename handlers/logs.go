package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/discord"
	"github.com/sparcky/panel-api/internal/document/query"
	"github.com/sparcky/panel-api/pkg/logger"
)

// LogsLimitBounds bounds the number of moderation log messages per request.
var LogsLimitBounds = query.Bounds{Min: 1, Max: 100, Default: 50}

// Logs returns the latest messages of the guild's modLogChannel.
func (h *GuildsHandler) Logs(c *gin.Context) {
	guildID := c.Param("guildId")
	if !h.discord.HasBot() {
		apperror.Respond(c, apperror.Upstream("Missing DISCORD_BOT_TOKEN", nil))
		return
	}
	limit := query.ParseBoundedInt(c.Query("limit"), LogsLimitBounds)

	cfg, err := h.configs.Get(c.Request.Context(), guildID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	if cfg.ModLogChannel == nil || *cfg.ModLogChannel == "" {
		apperror.Respond(c, apperror.BadRequest("No modLogChannel configured for this guild"))
		return
	}
	channelID := *cfg.ModLogChannel

	msgs, err := h.discord.ChannelMessages(c.Request.Context(), channelID, limit)
	if err != nil {
		switch status := discord.StatusCode(err); status {
		case http.StatusForbidden:
			apperror.Respond(c, apperror.Forbidden("Missing permissions to read log channel"))
		case http.StatusNotFound:
			apperror.Respond(c, apperror.NotFound("Log channel not found"))
		default:
			logger.With(logger.LevelError, "guild logs failed", "guild_id", guildID, "channel_id", channelID, "discord_status", status, "error", err.Error())
			apperror.Respond(c, apperror.BadGateway("Failed to fetch logs", err))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"guildId": guildID, "channelId": channelID, "messages": discord.SimplifyMessages(msgs)})
}

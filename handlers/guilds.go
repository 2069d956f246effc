package handlers

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/sparcky/panel-api/internal/discord"
	"github.com/sparcky/panel-api/internal/document/query"
	"github.com/sparcky/panel-api/internal/guildconfig"
	"github.com/sparcky/panel-api/pkg/logger"
)

const maxConfigBodyBytes = 1 << 20

const missingBotTokenHint = "Set DISCORD_BOT_TOKEN in the API environment to list channels and check whether the bot is in the guild."

// GuildsHandler serves guild details, guild configuration and moderation logs.
type GuildsHandler struct {
	cfg     *config.Config
	discord discord.Client
	configs *guildconfig.Repository
}

func NewGuildsHandler(cfg *config.Config, dc discord.Client, configs *guildconfig.Repository) *GuildsHandler {
	return &GuildsHandler{cfg: cfg, discord: dc, configs: configs}
}

func (h *GuildsHandler) Register(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := rg.Group("/guilds/:guildId", requireAuth)
	g.GET("", h.Details)
	g.GET("/config", h.GetConfig)
	g.PUT("/config", h.PutConfig)
	g.GET("/logs", h.Logs)
}

type guildSummary struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Icon    *string `json:"icon,omitempty"`
	IconURL *string `json:"iconUrl,omitempty"`
	OwnerID string  `json:"owner_id,omitempty"`
}

type botStatus struct {
	ID        *string `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
	Status    string  `json:"status"`
}

type configSource struct {
	DB         string `json:"db"`
	Collection string `json:"collection"`
	HasDoc     bool   `json:"hasDoc"`
}

type guildDetails struct {
	BotInGuild   bool                `json:"botInGuild"`
	InviteURL    *string             `json:"inviteUrl"`
	Guild        guildSummary        `json:"guild"`
	Bot          botStatus           `json:"bot"`
	Channels     []discord.Channel   `json:"channels"`
	Config       *guildconfig.Config `json:"config"`
	ConfigSource *configSource       `json:"configSource,omitempty"`
	Error        string              `json:"error,omitempty"`
}

func (h *GuildsHandler) Details(c *gin.Context) {
	guildID := c.Param("guildId")
	if !h.discord.HasBot() {
		apperror.Respond(c, apperror.Upstream("Missing DISCORD_BOT_TOKEN", nil).WithMeta("hint", missingBotTokenHint))
		return
	}
	ctx := c.Request.Context()

	botUser, guild, channels, err := h.fetchGuild(c, guildID)
	if err != nil {
		status := discord.StatusCode(err)
		if status == http.StatusForbidden || status == http.StatusNotFound {
			h.absent(c, guildID)
			return
		}
		logger.With(logger.LevelError, "guild details failed", "guild_id", guildID, "discord_status", status, "error", err.Error())
		apperror.Respond(c, apperror.BadGateway("Failed to fetch guild details", err))
		return
	}

	raw, err := h.configs.Raw(ctx, guildID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	cfg := guildconfig.FromDocument(raw, guildID)
	if !h.cfg.IsProduction() {
		var modLog any
		if cfg.ModLogChannel != nil {
			modLog = *cfg.ModLogChannel
		}
		logger.With(logger.LevelDebug, "guild config loaded",
			"guild_id", guildID, "db", h.configs.Database(), "collection", h.configs.Collection(),
			"has_doc", raw != nil, "mod_log_channel", modLog)
	}

	var icon *string
	if guild.Icon != "" {
		icon = &guild.Icon
	}
	c.JSON(http.StatusOK, guildDetails{
		BotInGuild: true,
		Guild: guildSummary{
			ID:      guild.ID,
			Name:    guild.Name,
			Icon:    icon,
			IconURL: discord.GuildIconURL(guild.ID, guild.Icon, 128),
			OwnerID: guild.OwnerID,
		},
		Bot: botStatus{
			ID:        &botUser.ID,
			Username:  botUser.Username,
			AvatarURL: discord.AvatarURL(botUser.ID, botUser.Avatar, 128),
			Status:    "online",
		},
		Channels: discord.NormalizeChannels(channels),
		Config:   cfg,
		ConfigSource: &configSource{
			DB:         h.configs.Database(),
			Collection: h.configs.Collection(),
			HasDoc:     raw != nil,
		},
	})
}

func (h *GuildsHandler) fetchGuild(c *gin.Context, guildID string) (*discordgo.User, *discordgo.Guild, []*discordgo.Channel, error) {
	ctx := c.Request.Context()
	botUser, err := h.discord.BotUser(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	guild, err := h.discord.Guild(ctx, guildID)
	if err != nil {
		return nil, nil, nil, err
	}
	channels, err := h.discord.GuildChannels(ctx, guildID)
	if err != nil {
		return nil, nil, nil, err
	}
	return botUser, guild, channels, nil
}

// absent answers 200 for guilds the bot cannot see, with an invite link.
func (h *GuildsHandler) absent(c *gin.Context, guildID string) {
	cfg, err := h.configs.Get(c.Request.Context(), guildID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	dc := h.cfg.Discord
	clientID := dc.BotID
	if clientID == "" {
		clientID = dc.ClientID
	}
	var botID *string
	if dc.BotID != "" {
		botID = &dc.BotID
	}
	username := dc.BotUsername
	if username == "" {
		username = "Bot"
	}
	c.JSON(http.StatusOK, guildDetails{
		BotInGuild: false,
		InviteURL:  discord.InviteURL(clientID, dc.InvitePermissions, guildID),
		Guild:      guildSummary{ID: guildID},
		Bot: botStatus{
			ID:        botID,
			Username:  username,
			AvatarURL: discord.AvatarURL(dc.BotID, dc.BotAvatar, 128),
			Status:    "absent",
		},
		Channels: []discord.Channel{},
		Config:   cfg,
		Error:    "Bot is not in this guild (or missing permissions)",
	})
}

func (h *GuildsHandler) GetConfig(c *gin.Context) {
	guildID := c.Param("guildId")
	cfg, err := h.configs.Get(c.Request.Context(), guildID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guildId": guildID, "config": cfg})
}

func (h *GuildsHandler) PutConfig(c *gin.Context) {
	guildID := c.Param("guildId")
	raw, err := readJSONBody(c, maxConfigBodyBytes)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	cfg, err := h.configs.Set(c.Request.Context(), guildID, raw)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guildId": guildID, "config": cfg})
}

// readJSONBody decodes an optional JSON body, keeping key order. An empty
// body yields nil.
func readJSONBody(c *gin.Context, limit int64) (any, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	data, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.BadRequest("Request body too large")
		}
		return nil, apperror.BadRequest("Failed to read request body")
	}
	if len(data) == 0 {
		return nil, nil
	}
	v, err := query.DecodeOrdered(data)
	if err != nil {
		return nil, apperror.BadRequest("Invalid JSON body")
	}
	return v, nil
}

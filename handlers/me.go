package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/sparcky/panel-api/internal/discord"
	"github.com/sparcky/panel-api/internal/mecache"
	"github.com/sparcky/panel-api/internal/sessions"
	"github.com/sparcky/panel-api/pkg/logger"
	"github.com/sparcky/panel-api/pkg/metrics"
	"github.com/sparcky/panel-api/pkg/middleware"
)

const (
	// minimum and fallback lifetimes of a cached Discord 429
	rateLimitCacheMin      = 250 * time.Millisecond
	rateLimitCacheFallback = time.Second
)

// BotInfo is the bot identity shown by the panel, taken from configuration.
type BotInfo struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Avatar    *string `json:"avatar"`
	AvatarURL *string `json:"avatarUrl"`
}

// botInfoFromConfig returns nil without DISCORD_BOT_ID.
func botInfoFromConfig(dc config.DiscordConfig) *BotInfo {
	if dc.BotID == "" {
		return nil
	}
	b := &BotInfo{ID: dc.BotID, Username: dc.BotUsername, AvatarURL: discord.AvatarURL(dc.BotID, dc.BotAvatar, 128)}
	if b.Username == "" {
		b.Username = "Bot"
	}
	if dc.BotAvatar != "" {
		b.Avatar = &dc.BotAvatar
	}
	return b
}

type meUser struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Avatar    *string `json:"avatar"`
	AvatarURL *string `json:"avatarUrl"`
}

type meGuild struct {
	*discordgo.UserGuild
	IconURL *string `json:"iconUrl"`
}

type mePayload struct {
	User   meUser    `json:"user"`
	Bot    *BotInfo  `json:"bot"`
	Guilds []meGuild `json:"guilds"`
}

// cachedMe is what the cache stores: a rendered body plus the status it was
// served with, so a Discord 429 replays as a 429.
type cachedMe struct {
	Status     int             `json:"status"`
	RetryAfter string          `json:"retryAfter,omitempty"`
	Body       json.RawMessage `json:"body"`
}

// MeHandler serves /api/me.
type MeHandler struct {
	cfg      *config.Config
	discord  discord.Client
	sessions *sessions.Service
	cache    mecache.Cache
}

func NewMeHandler(cfg *config.Config, dc discord.Client, s *sessions.Service, cache mecache.Cache) *MeHandler {
	if cache == nil {
		cache = mecache.NewMemoryCache()
	}
	return &MeHandler{cfg: cfg, discord: dc, sessions: s, cache: cache}
}

func (h *MeHandler) Register(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	rg.GET("/me", requireAuth, h.Me)
}

func (h *MeHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	sess, err := h.sessions.Validate(ctx, middleware.SessionID(c))
	if err != nil {
		apperror.Respond(c, apperror.Upstream("Failed to load session", err))
		return
	}
	if sess == nil || sess.AccessToken == "" {
		apperror.Respond(c, apperror.Unauthorized("Missing Discord access token"))
		return
	}

	if raw, ok, err := h.cache.Get(ctx, userID); err != nil {
		logger.Warnf("me cache read failed: %v", err)
	} else if ok {
		var entry cachedMe
		if err := json.Unmarshal(raw, &entry); err == nil {
			metrics.MeCache.WithLabelValues("hit").Inc()
			if entry.RetryAfter != "" {
				c.Header("Retry-After", entry.RetryAfter)
			}
			c.Data(entry.Status, "application/json; charset=utf-8", entry.Body)
			return
		}
	}
	metrics.MeCache.WithLabelValues("miss").Inc()

	guilds, err := h.discord.UserGuilds(ctx, sess.AccessToken)
	if err != nil {
		h.discordError(c, userID, err)
		return
	}

	payload := mePayload{
		User:   h.userFromClaims(c, userID),
		Bot:    botInfoFromConfig(h.cfg.Discord),
		Guilds: make([]meGuild, 0, len(guilds)),
	}
	for _, g := range guilds {
		if g == nil {
			continue
		}
		payload.Guilds = append(payload.Guilds, meGuild{UserGuild: g, IconURL: discord.GuildIconURL(g.ID, g.Icon, 64)})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		apperror.Respond(c, apperror.Upstream("Failed to render user data", err))
		return
	}
	h.store(c, userID, cachedMe{Status: http.StatusOK, Body: body}, h.cfg.Panel.MeCacheTTL)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *MeHandler) userFromClaims(c *gin.Context, userID string) meUser {
	v, _ := c.Get(middleware.ClaimsKey)
	claims, _ := v.(map[string]interface{})
	u := meUser{ID: userID}
	u.Username, _ = claims["username"].(string)
	avatar, _ := claims["avatar"].(string)
	if avatar != "" {
		u.Avatar = &avatar
	}
	u.AvatarURL = discord.AvatarURL(userID, avatar, 128)
	return u
}

func (h *MeHandler) discordError(c *gin.Context, userID string, err error) {
	status := discord.StatusCode(err)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		apperror.Respond(c, apperror.Unauthorized("Discord token invalid or expired"))
	case http.StatusTooManyRequests:
		var retryAfter any
		header := ""
		ttl := rateLimitCacheFallback
		if d, ok := discord.RetryAfter(err); ok {
			secs := d.Seconds()
			retryAfter = secs
			header = strconv.FormatFloat(secs, 'f', -1, 64)
			ttl = time.Duration(math.Ceil(secs*1000)) * time.Millisecond
			if ttl < rateLimitCacheMin {
				ttl = rateLimitCacheMin
			}
		}
		body, _ := json.Marshal(gin.H{"error": "Discord rate limited", "retry_after": retryAfter})
		h.store(c, userID, cachedMe{Status: http.StatusTooManyRequests, RetryAfter: header, Body: body}, ttl)
		metrics.HTTPErrors.WithLabelValues(string(apperror.TypeRateLimited)).Inc()
		if header != "" {
			c.Header("Retry-After", header)
		}
		c.Data(http.StatusTooManyRequests, "application/json; charset=utf-8", body)
	default:
		e := apperror.BadGateway("Failed to fetch user data", err)
		if status != 0 {
			e = e.WithMeta("discordStatus", status)
		}
		apperror.Respond(c, e)
	}
}

func (h *MeHandler) store(c *gin.Context, userID string, entry cachedMe, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := h.cache.Set(c.Request.Context(), userID, raw, ttl); err != nil {
		logger.Warnf("me cache write failed: %v", err)
	}
}

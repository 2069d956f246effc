package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/auth"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/sparcky/panel-api/internal/discord"
	"github.com/sparcky/panel-api/internal/sessions"
	"github.com/sparcky/panel-api/internal/tokens"
	"github.com/sparcky/panel-api/internal/users"
	"github.com/sparcky/panel-api/pkg/logger"
	"github.com/sparcky/panel-api/pkg/middleware"
)

const (
	stateCookie    = "panel_oauth_state"
	stateCookieTTL = 10 * time.Minute
)

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	provider    *auth.Provider
	discord     discord.Client
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	blacklist   sessions.Blacklist
}

func NewAuthHandler(cfg *config.Config, p *auth.Provider, dc discord.Client, u *users.Service, s *sessions.Service, bl sessions.Blacklist) *AuthHandler {
	return &AuthHandler{cfg: cfg, provider: p, discord: dc, usersSvc: u, sessionsSvc: s, blacklist: bl}
}

// Register routes under /auth. requireAuth guards logout.
func (h *AuthHandler) Register(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.GET("/discord", h.Login)
	a.GET("/discord/callback", h.Callback)
	a.POST("/logout", requireAuth, h.Logout)
}

// Login redirects to the Discord consent page.
func (h *AuthHandler) Login(c *gin.Context) {
	state, err := auth.NewState()
	if err != nil {
		apperror.Respond(c, apperror.Upstream("Failed to start login", err))
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(stateCookieTTL.Seconds()), "/auth", "", h.cfg.IsProduction(), true)
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// Callback finishes the authorization-code flow and hands a session token to
// the panel through its /login page.
func (h *AuthHandler) Callback(c *gin.Context) {
	expected, _ := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/auth", "", h.cfg.IsProduction(), true)
	if expected == "" || c.Query("state") != expected {
		c.String(http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	ctx := c.Request.Context()
	tok, err := h.provider.Exchange(ctx, c.Query("code"))
	if err != nil {
		h.oauthError(c, "token exchange", err)
		return
	}
	du, err := h.discord.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		h.oauthError(c, "fetch user", err)
		return
	}
	u, err := h.usersSvc.UpsertFromDiscord(ctx, du)
	if err == nil && u == nil {
		err = errors.New("discord returned a user without id")
	}
	if err != nil {
		h.oauthError(c, "user upsert", err)
		return
	}
	sess, err := h.sessionsSvc.CreateSession(ctx, u.DiscordID, tok, h.cfg.JWT.SessionTTL)
	if err != nil {
		h.oauthError(c, "create session", err)
		return
	}
	jwtToken, err := tokens.GenerateAccessToken(h.cfg, u, sess.ID, h.cfg.JWT.SessionTTL)
	if err != nil {
		h.oauthError(c, "sign token", err)
		return
	}
	logger.Infof("login: discord user %s (session %s)", u.DiscordID, sess.ID)
	c.Redirect(http.StatusFound, strings.TrimRight(h.cfg.Panel.URL, "/")+"/login?token="+url.QueryEscape(jwtToken))
}

func (h *AuthHandler) oauthError(c *gin.Context, step string, err error) {
	logger.With(logger.LevelError, "oauth callback failed", "step", step, "discord_status", discord.StatusCode(err), "error", err.Error())
	c.String(http.StatusInternalServerError, "OAuth error")
}

// Logout drops the server-side session and blacklists the presented token
// until its own expiry.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.sessionsSvc.Delete(ctx, middleware.SessionID(c)); err != nil {
		apperror.Respond(c, apperror.Upstream("Failed to remove session", err))
		return
	}
	if h.blacklist != nil {
		if ttl := remainingTTL(c); ttl > 0 {
			if err := h.blacklist.Add(ctx, c.GetString(middleware.RawTokenKey), ttl); err != nil {
				apperror.Respond(c, apperror.Upstream("Failed to revoke token", err))
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func remainingTTL(c *gin.Context) time.Duration {
	v, _ := c.Get(middleware.ClaimsKey)
	claims, _ := v.(map[string]interface{})
	exp, ok := claims["exp"].(float64)
	if !ok {
		return 0
	}
	return time.Until(time.Unix(int64(exp), 0))
}

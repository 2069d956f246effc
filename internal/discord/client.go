// Package discord wraps the Discord REST API calls made by the panel, both
// with the bot token and with a user's OAuth bearer token.
package discord

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ErrNoBotToken is returned by bot calls when DISCORD_BOT_TOKEN is unset.
var ErrNoBotToken = errors.New("discord: missing DISCORD_BOT_TOKEN")

// Client is the subset of the Discord API used by the handlers.
type Client interface {
	HasBot() bool
	BotUser(ctx context.Context) (*discordgo.User, error)
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	ChannelMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error)
	// CurrentUser and UserGuilds act on behalf of the user owning accessToken.
	CurrentUser(ctx context.Context, accessToken string) (*discordgo.User, error)
	UserGuilds(ctx context.Context, accessToken string) ([]*discordgo.UserGuild, error)
}

// RESTClient implements Client with discordgo sessions. Rate limits are never
// waited out: a 429 surfaces immediately as an error so callers can report
// Retry-After upstream.
type RESTClient struct {
	bot        *discordgo.Session
	httpClient *http.Client
}

// NewRESTClient builds a client; botToken may be empty, in which case only
// the user-bearer calls work.
func NewRESTClient(botToken string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	c := &RESTClient{httpClient: httpClient}
	if botToken != "" {
		c.bot = c.session("Bot " + botToken)
	}
	return c
}

func (c *RESTClient) session(authorization string) *discordgo.Session {
	// discordgo.New only fails for login flows, never for a raw token
	s, _ := discordgo.New(authorization)
	s.Client = c.httpClient
	s.ShouldRetryOnRateLimit = false
	s.MaxRestRetries = 0
	return s
}

func (c *RESTClient) HasBot() bool {
	return c.bot != nil
}

func (c *RESTClient) BotUser(ctx context.Context) (*discordgo.User, error) {
	if c.bot == nil {
		return nil, ErrNoBotToken
	}
	return c.bot.User("@me", discordgo.WithContext(ctx))
}

func (c *RESTClient) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if c.bot == nil {
		return nil, ErrNoBotToken
	}
	return c.bot.Guild(guildID, discordgo.WithContext(ctx))
}

func (c *RESTClient) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	if c.bot == nil {
		return nil, ErrNoBotToken
	}
	return c.bot.GuildChannels(guildID, discordgo.WithContext(ctx))
}

func (c *RESTClient) ChannelMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	if c.bot == nil {
		return nil, ErrNoBotToken
	}
	return c.bot.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
}

func (c *RESTClient) CurrentUser(ctx context.Context, accessToken string) (*discordgo.User, error) {
	return c.session("Bearer "+accessToken).User("@me", discordgo.WithContext(ctx))
}

func (c *RESTClient) UserGuilds(ctx context.Context, accessToken string) ([]*discordgo.UserGuild, error) {
	return c.session("Bearer "+accessToken).UserGuilds(200, "", "", false, discordgo.WithContext(ctx))
}

// StatusCode extracts the HTTP status of a failed Discord call; 0 when the
// error did not come from a Discord response.
func StatusCode(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return http.StatusTooManyRequests
	}
	return 0
}

// RetryAfter returns the wait Discord asked for on a 429.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) && rl.RateLimit != nil && rl.TooManyRequests != nil {
		return rl.RetryAfter, true
	}
	return 0, false
}

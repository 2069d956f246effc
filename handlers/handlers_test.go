package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/sparcky/panel-api/internal/auth"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/sparcky/panel-api/internal/document/repository"
	"github.com/sparcky/panel-api/internal/guildconfig"
	"github.com/sparcky/panel-api/internal/mecache"
	"github.com/sparcky/panel-api/internal/models"
	"github.com/sparcky/panel-api/internal/sessions"
	"github.com/sparcky/panel-api/internal/tokens"
	"github.com/sparcky/panel-api/internal/users"
	"github.com/sparcky/panel-api/pkg/middleware"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeDiscord implements discord.Client with canned answers.
type fakeDiscord struct {
	mu sync.Mutex

	hasBot   bool
	botUser  *discordgo.User
	guild    *discordgo.Guild
	channels []*discordgo.Channel
	guildErr error

	messages    []*discordgo.Message
	messagesErr error
	lastLimit   int
	lastChannel string

	user       *discordgo.User
	guilds     []*discordgo.UserGuild
	guildsErr  error
	guildCalls int
}

func (f *fakeDiscord) HasBot() bool { return f.hasBot }

func (f *fakeDiscord) BotUser(ctx context.Context) (*discordgo.User, error) {
	return f.botUser, nil
}

func (f *fakeDiscord) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if f.guildErr != nil {
		return nil, f.guildErr
	}
	return f.guild, nil
}

func (f *fakeDiscord) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	return f.channels, nil
}

func (f *fakeDiscord) ChannelMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	f.lastChannel = channelID
	return f.messages, f.messagesErr
}

func (f *fakeDiscord) CurrentUser(ctx context.Context, accessToken string) (*discordgo.User, error) {
	return f.user, nil
}

func (f *fakeDiscord) UserGuilds(ctx context.Context, accessToken string) ([]*discordgo.UserGuild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guildCalls++
	return f.guilds, f.guildsErr
}

func restError(status int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: status}, ResponseBody: []byte(`{}`)}
}

func rateLimitError(retryAfter time.Duration) error {
	return &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{
		TooManyRequests: &discordgo.TooManyRequests{RetryAfter: retryAfter},
		URL:             "https://discord.com/api/v9/users/@me/guilds",
	}}
}

type testEnv struct {
	cfg       *config.Config
	engine    *gin.Engine
	discord   *fakeDiscord
	store     *repository.MemoryStore
	sessions  *sessions.Service
	blacklist *sessions.MemoryBlacklist
	configs   *guildconfig.Repository
	tokenURL  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.JWT.Secret = "handlers-test-secret-32-bytes-xxxxxx"
	cfg.JWT.SessionTTL = time.Hour
	cfg.Panel.URL = "http://panel.local/"
	cfg.Panel.MeCacheTTL = 15 * time.Second
	cfg.Discord = config.DiscordConfig{
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURI:  "http://api.local/auth/discord/callback",
		BotID:        "999",
		BotUsername:  "Sparcky",
	}

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"discord-at","refresh_token":"discord-rt","token_type":"Bearer","expires_in":604800}`)
	}))
	t.Cleanup(tokenSrv.Close)

	env := &testEnv{
		cfg:       cfg,
		discord:   &fakeDiscord{hasBot: true},
		store:     repository.NewMemoryStore("sparcky"),
		sessions:  sessions.NewService(sessions.NewMemoryRepository()),
		blacklist: sessions.NewMemoryBlacklist(),
		tokenURL:  tokenSrv.URL,
	}
	env.configs = guildconfig.NewRepository(env.store, "")

	provider := auth.NewProvider(cfg.Discord, oauth2.Endpoint{
		AuthURL:   tokenSrv.URL + "/authorize",
		TokenURL:  tokenSrv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	})
	requireAuth := middleware.AuthMiddleware(tokens.NewVerifier(cfg.JWT.Secret, env.blacklist))

	r := gin.New()
	NewAuthHandler(cfg, provider, env.discord, users.NewService(users.NewMemoryUserRepository()), env.sessions, env.blacklist).
		Register(&r.RouterGroup, requireAuth)
	api := r.Group("/api")
	NewMeHandler(cfg, env.discord, env.sessions, mecache.NewMemoryCache()).Register(api, requireAuth)
	NewGuildsHandler(cfg, env.discord, env.configs).Register(api, requireAuth)
	RegisterDebugRoutes(api, env.store, requireAuth)
	env.engine = r
	return env
}

// login creates a server-side session and returns its bearer token.
func (e *testEnv) login(t *testing.T, discordID string) string {
	t.Helper()
	sess, err := e.sessions.CreateSession(context.Background(), discordID, &oauth2.Token{AccessToken: "at-" + discordID}, time.Hour)
	require.NoError(t, err)
	tok, err := tokens.GenerateAccessToken(e.cfg, &models.User{DiscordID: discordID, Username: "user" + discordID}, sess.ID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

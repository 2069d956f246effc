// Package auth implements the Discord OAuth2 authorization-code login used
// by the panel.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/sparcky/panel-api/internal/config"
	"golang.org/x/oauth2"
)

// Discord OAuth2 endpoints.
var DiscordEndpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/oauth2/authorize",
	TokenURL:  "https://discord.com/api/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Scopes requested at login. guilds is needed by /api/me.
var Scopes = []string{"identify", "guilds"}

// ErrNotConfigured is returned when the Discord application credentials are missing.
var ErrNotConfigured = errors.New("auth: discord oauth is not configured")

// Provider wraps the oauth2 configuration of the Discord application.
type Provider struct {
	conf *oauth2.Config
}

// NewProvider builds a provider from the Discord settings. endpoint may be
// zero to use DiscordEndpoint.
func NewProvider(dc config.DiscordConfig, endpoint oauth2.Endpoint) *Provider {
	if endpoint.AuthURL == "" {
		endpoint = DiscordEndpoint
	}
	return &Provider{conf: &oauth2.Config{
		ClientID:     dc.ClientID,
		ClientSecret: dc.ClientSecret,
		RedirectURL:  dc.RedirectURI,
		Scopes:       Scopes,
		Endpoint:     endpoint,
	}}
}

// Configured reports whether client id, secret and redirect uri are all set.
func (p *Provider) Configured() bool {
	return p.conf.ClientID != "" && p.conf.ClientSecret != "" && p.conf.RedirectURL != ""
}

// AuthCodeURL returns the Discord consent page URL for state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for a user token. An *http.Client
// stored in ctx under oauth2.HTTPClient is used when present.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	if code == "" {
		return nil, errors.New("auth: missing code")
	}
	return p.conf.Exchange(ctx, code)
}

// NewState returns a random hex value for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

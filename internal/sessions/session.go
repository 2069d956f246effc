package sessions

import (
	"time"

	"golang.org/x/oauth2"
)

// Session is the server-side half of a panel login. It keeps the Discord
// OAuth token out of the JWT handed to the browser.
type Session struct {
	ID           string    `bson:"_id" json:"id"`
	UserID       string    `bson:"userId" json:"userId"`
	AccessToken  string    `bson:"accessToken" json:"accessToken"`
	RefreshToken string    `bson:"refreshToken,omitempty" json:"refreshToken,omitempty"`
	TokenType    string    `bson:"tokenType,omitempty" json:"tokenType,omitempty"`
	TokenExpiry  time.Time `bson:"tokenExpiry,omitempty" json:"tokenExpiry,omitempty"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// Expired reports whether the session is past its expiry at t.
func (s *Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && t.After(s.ExpiresAt)
}

// OAuthToken rebuilds the Discord token stored with the session.
func (s *Session) OAuthToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.TokenExpiry,
	}
}

package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/sparcky/panel-api/internal/models"
	"github.com/sparcky/panel-api/internal/sessions"
	"github.com/sparcky/panel-api/pkg/middleware"
)

// ErrRevoked is returned by Verify for tokens that were logged out.
var ErrRevoked = errors.New("tokens: token revoked")

// ErrNoExpiry rejects tokens without an exp claim.
var ErrNoExpiry = errors.New("tokens: missing exp claim")

// Claims is the payload of a panel session token. Subject carries the
// Discord user id.
type Claims struct {
	SessionID string `json:"sid"`
	Username  string `json:"username,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken creates a signed JWT access token for the user
func GenerateAccessToken(cfg *config.Config, u *models.User, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		Username:  u.Username,
		Avatar:    u.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.DiscordID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// ParseAccessToken verifies signature, algorithm and expiry.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, ErrNoExpiry
	}
	return &claims, nil
}

// Verifier adapts ParseAccessToken to the auth middleware and rejects
// blacklisted tokens.
type Verifier struct {
	secret    string
	blacklist sessions.Blacklist
}

func NewVerifier(secret string, blacklist sessions.Blacklist) *Verifier {
	return &Verifier{secret: secret, blacklist: blacklist}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims, err := ParseAccessToken(v.secret, raw)
	if err != nil {
		return nil, err
	}
	if v.blacklist != nil {
		revoked, err := v.blacklist.Contains(ctx, raw)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return verified{claims: claims}, nil
}

type verified struct {
	claims *Claims
}

// Claims decodes the token payload into v through its JSON form, so callers
// may ask for either *Claims or a generic map.
func (t verified) Claims(v interface{}) error {
	if c, ok := v.(*Claims); ok {
		*c = *t.claims
		return nil
	}
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

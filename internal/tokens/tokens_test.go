package tokens

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/sparcky/panel-api/internal/models"
	"github.com/sparcky/panel-api/internal/sessions"
	"github.com/stretchr/testify/require"
)

func testConfig(secret string) *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	return cfg
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	cfg := testConfig("test-secret-32-bytes-should-be-long-enough")
	u := &models.User{DiscordID: "user-123", Username: "tester", Avatar: "abc"}

	tokenStr, err := GenerateAccessToken(cfg, u, "sess-1", 2*time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg.JWT.Secret, tokenStr)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject)
	require.Equal(t, "sess-1", claims.SessionID)
	require.Equal(t, "tester", claims.Username)
}

func TestParseAccessToken_Expired(t *testing.T) {
	cfg := testConfig("another-secret-32-bytes-longgggg")
	tokenStr, err := GenerateAccessToken(cfg, &models.User{DiscordID: "u2"}, "s", -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg.JWT.Secret, tokenStr)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestParseAccessToken_WrongSecretFails(t *testing.T) {
	cfg := testConfig("secret-one-32-bytes-xxxxxxxxxxxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, &models.User{DiscordID: "u3"}, "s", 2*time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken("different-secret-xxxxxxxxxxxxxxxx", tokenStr)
	require.Error(t, err)
}

func TestParseAccessToken_Malformed(t *testing.T) {
	_, err := ParseAccessToken("x", "not.a.jwt")
	require.Error(t, err)
}

func TestParseAccessToken_AlgNoneRejected(t *testing.T) {
	enc := base64.RawURLEncoding
	tok := enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(`{"sub":"u-none","sid":"s","exp":9999999999}`)) + "."
	_, err := ParseAccessToken("x", tok)
	require.Error(t, err)
}

func TestParseAccessToken_TamperedPayload(t *testing.T) {
	cfg := testConfig("tamper-test-secret-32-bytes-xxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, &models.User{DiscordID: "user-t"}, "s", 5*time.Minute)
	require.NoError(t, err)

	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))

	_, err = ParseAccessToken(cfg.JWT.Secret, strings.Join(parts, "."))
	require.Error(t, err)
}

func TestVerifier_RejectsBlacklisted(t *testing.T) {
	cfg := testConfig("verifier-secret-32-bytes-xxxxxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, &models.User{DiscordID: "u4", Username: "n"}, "sid-4", time.Minute)
	require.NoError(t, err)

	bl := sessions.NewMemoryBlacklist()
	v := NewVerifier(cfg.JWT.Secret, bl)
	ctx := context.Background()

	tok, err := v.Verify(ctx, tokenStr)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, tok.Claims(&m))
	require.Equal(t, "u4", m["sub"])
	require.Equal(t, "sid-4", m["sid"])

	var c Claims
	require.NoError(t, tok.Claims(&c))
	require.Equal(t, "sid-4", c.SessionID)

	require.NoError(t, bl.Add(ctx, tokenStr, time.Minute))
	_, err = v.Verify(ctx, tokenStr)
	require.ErrorIs(t, err, ErrRevoked)
}

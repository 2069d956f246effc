package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sparcky/panel-api/internal/apperror"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey    = "claims"
	UserIDKey    = "userID"
	SessionIDKey = "sessionID"
	RawTokenKey  = "rawToken"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			apperror.Respond(c, apperror.Unauthorized("Missing Authorization header"))
			return
		}
		// Expect 'Bearer <token>'
		parts := strings.Fields(auth)
		if len(parts) < 2 || !strings.EqualFold(parts[0], "Bearer") {
			apperror.Respond(c, apperror.Unauthorized("Missing token"))
			return
		}
		raw := parts[1]

		tok, err := ver.Verify(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				apperror.Respond(c, apperror.Unauthorized("Token expired"))
				return
			}
			apperror.Respond(c, apperror.Unauthorized("Invalid token"))
			return
		}

		// Extract claims
		var claims map[string]interface{}
		if err := tok.Claims(&claims); err != nil {
			apperror.Respond(c, apperror.Unauthorized("Invalid token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(RawTokenKey, raw)
		if sub, ok := claims["sub"].(string); ok {
			c.Set(UserIDKey, sub)
		}
		if sid, ok := claims["sid"].(string); ok {
			c.Set(SessionIDKey, sid)
		}
		c.Next()
	}
}

// UserID returns the authenticated subject, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// SessionID returns the session id carried by the bearer token.
func SessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

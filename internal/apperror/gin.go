package apperror

import (
	"github.com/gin-gonic/gin"
	"github.com/sparcky/panel-api/pkg/logger"
	"github.com/sparcky/panel-api/pkg/metrics"
)

// Respond writes err as a structured JSON response, records the error metric
// and logs it at a level matching its type.
func Respond(c *gin.Context, err error) {
	e := As(err)
	metrics.HTTPErrors.WithLabelValues(string(e.Type)).Inc()

	attrs := []any{
		"error_type", e.Type,
		"message", e.Message,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"status", e.HTTPStatus(),
	}
	if uid := c.GetString("userID"); uid != "" {
		attrs = append(attrs, "user_id", uid)
	}
	switch e.Type {
	case TypeUpstream, TypeBadGateway:
		if e.Cause != nil {
			attrs = append(attrs, "cause", e.Cause.Error())
		}
		logger.With(logger.LevelError, "request failed", attrs...)
	default:
		logger.With(logger.LevelDebug, "request rejected", attrs...)
	}

	c.AbortWithStatusJSON(e.HTTPStatus(), e.ToResponse())
}

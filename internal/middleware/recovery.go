package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"eventhub/internal/metrics"
)

// Recovery turns a handler panic into a logged 500. If the handler already
// started the response, the connection is only aborted.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			metrics.PanicsRecoveredTotal.Inc()
			log.Error().
				Interface("error", r).
				Str("route", c.FullPath()).
				Str("request_id", RequestIDFrom(c)).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal server error",
			})
		}()
		c.Next()
	}
}

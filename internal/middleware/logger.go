package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// health and metrics endpoints are polled constantly; their successes only show at debug
var quietPaths = map[string]struct{}{
	"/api/healthz": {},
	"/metrics":     {},
}

// Logger writes one line per request. Authenticated requests carry the
// account's role and id so actions can be traced back to an admin or user.
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := requestEvent(log, c.Request.URL.Path, status)

		event = event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("request_id", RequestIDFrom(c))

		if account, ok := CurrentAccount(c); ok {
			event = event.Str("account_role", string(account.Role)).Str("account_id", account.ID)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.Msg("http request")
	}
}

func requestEvent(log zerolog.Logger, path string, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return log.Error()
	case status >= 400:
		return log.Warn()
	}
	if _, quiet := quietPaths[path]; quiet {
		return log.Debug()
	}
	return log.Info()
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/errs"
)

// Logger writes one access line per request. Authenticated requests carry
// the caller's subject and role; refused ones carry the denial reason
// recorded by WriteError.
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", RequestIDFrom(c))

		if caller := CallerFrom(c); caller != nil {
			event.Str("subject_id", caller.SubjectID).Str("role", string(caller.Role))
			if caller.OrganisationID != nil {
				event.Str("organisation_id", *caller.OrganisationID)
			}
		}
		if last := c.Errors.Last(); last != nil {
			if reason := errs.ReasonOf(last.Err); reason != "" {
				event.Str("reason", string(reason))
			}
		}

		event.Msg("http request")
	}
}

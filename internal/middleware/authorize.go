package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/metrics"
)

// Authorize evaluates the policy registered for the matched route. Routes
// without a policy are refused.
func Authorize(policies authz.PolicyTable, engine *authz.Engine, m *metrics.Metrics, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy, ok := policies.Lookup(c.Request.Method, c.FullPath())
		if !ok {
			log.Error().Str("method", c.Request.Method).Str("route", c.FullPath()).Msg("route has no authorization policy")
			m.AuthorizationDecision(false, "no_policy")
			WriteError(c, log, errs.Forbidden(errs.ReasonRoleNotPermitted, "route is not available"))
			return
		}

		var resourceID string
		if policy.Param != "" {
			resourceID = c.Param(policy.Param)
		}

		if err := engine.Authorize(c.Request.Context(), CallerFrom(c), policy, resourceID); err != nil {
			m.AuthorizationDecision(false, string(errs.ReasonOf(err)))
			WriteError(c, log, err)
			return
		}

		m.AuthorizationDecision(true, "")
		c.Next()
	}
}

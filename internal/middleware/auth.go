package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/security"
)

const callerKey = "caller"

// Auth verifies the bearer access token and stores the caller. Verification
// is stateless; no store is consulted.
func Auth(tokens *security.TokenIssuer, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			WriteError(c, log, errs.Unauthenticated())
			return
		}

		claims, err := tokens.ParseAccessToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("access token rejected")
			WriteError(c, log, errs.Unauthenticated())
			return
		}

		c.Set(callerKey, &authz.Caller{
			SubjectID: claims.Subject,
			Email:     claims.Email,
			Role:      models.UserRole(claims.Role),
		})
		c.Next()
	}
}

// CallerFrom returns the caller stored by Auth, or nil.
func CallerFrom(c *gin.Context) *authz.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*authz.Caller)
	return caller
}

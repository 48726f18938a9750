package middleware

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bytesecuritas/sensi-back/internal/authz"
)

const corsMaxAge = "600"

// CORS answers browser preflights and tags cross-origin responses. An empty
// origin list, or "*", allows every origin. Tokens travel in the
// Authorization header, so credentials are never advertised. Preflights are
// answered with the methods of the route policy table.
func CORS(allowedOrigins []string, policies authz.PolicyTable) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowedOrigins))
	allowAll := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			allowAll = true
		}
		origins[origin] = struct{}{}
	}
	methods := strings.Join(policyMethods(policies), ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		c.Header("Vary", "Origin")
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""
		if _, ok := origins[origin]; !ok && !allowAll {
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Expose-Headers", requestIDHeader)
		if preflight {
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+requestIDHeader)
			c.Header("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// policyMethods lists the distinct methods of the table plus OPTIONS, sorted.
func policyMethods(policies authz.PolicyTable) []string {
	seen := map[string]struct{}{http.MethodOptions: {}}
	for key := range policies {
		method, _, _ := strings.Cut(key, " ")
		seen[method] = struct{}{}
	}
	methods := make([]string, 0, len(seen))
	for method := range seen {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/invoiceworks/billing-core/internal/auth"
	"github.com/invoiceworks/billing-core/internal/tenant"
)

const principalKey = "principal"

// AuthMiddleware resolves the request token into a Principal and stores it in
// the gin context. Requests without a valid token are rejected before any
// handler runs, except on the public endpoints.
func AuthMiddleware(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublicEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		token := extractToken(c)
		principal, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "authentication required",
			})
			c.Abort()
			return
		}

		c.Set(principalKey, principal)

		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")

		c.Next()
	}
}

// Principal returns the authenticated principal stored by AuthMiddleware, or
// nil on public endpoints.
func Principal(c *gin.Context) *tenant.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	return asPrincipal(v)
}

func asPrincipal(v any) *tenant.Principal {
	p, _ := v.(*tenant.Principal)
	return p
}

// extractToken gets the authentication token from its supported carriers.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	if sessionToken := c.GetHeader("X-Session-Token"); sessionToken != "" {
		return sessionToken
	}

	if cookie, err := c.Cookie("billing_session"); err == nil {
		return cookie
	}

	return ""
}

// isPublicEndpoint matches the route exactly; a prefix match would silently
// exempt any future route sharing a public path segment.
func isPublicEndpoint(path string) bool {
	switch path {
	case "/health", "/ready", "/metrics", "/api/v1/auth/login":
		return true
	}
	return false
}

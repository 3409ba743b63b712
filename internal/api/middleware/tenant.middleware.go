package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/invoiceworks/billing-core/internal/tenant"
)

const scopeKey = "scope"

// TenantScopeMiddleware derives the effective tenant scope from the
// authenticated principal, once per request. Handlers read it back with
// Scope(c) and pass it through every gateway call; the response also carries
// the effective organization in X-Tenant-Organization-Id so clients and
// operators can see which tenant a request was confined to.
func TenantScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Principal(c)
		if p == nil {
			c.Next()
			return
		}

		scope, err := tenant.ResolveScope(p)
		if err != nil {
			status := http.StatusForbidden
			if errors.Is(err, tenant.ErrUnauthenticated) {
				status = http.StatusUnauthorized
			}
			c.JSON(status, gin.H{
				"status": "error",
				"error":  "no tenant context",
			})
			c.Abort()
			return
		}

		c.Set(scopeKey, scope)
		if !scope.IsUnrestricted() {
			c.Header("X-Tenant-Organization-Id", scope.OrganizationID())
		}

		c.Next()
	}
}

// Scope returns the tenant scope stored by TenantScopeMiddleware. The second
// return is false on public endpoints where no principal was resolved.
func Scope(c *gin.Context) (tenant.Scope, bool) {
	v, ok := c.Get(scopeKey)
	if !ok {
		return tenant.Scope{}, false
	}
	s, ok := v.(tenant.Scope)
	return s, ok
}

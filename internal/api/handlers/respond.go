package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/invoiceworks/billing-core/internal/tenant"
)

// respondErr maps the tenancy error taxonomy onto HTTP statuses. Cross-tenant
// reads already surface as ErrNotFound from the gateway, so a 404 here never
// discloses whether the row exists in another organization.
func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, tenant.ErrNotFound):
		status = http.StatusNotFound
		msg = "not found"
	case errors.Is(err, tenant.ErrUnauthenticated):
		status = http.StatusUnauthorized
		msg = "authentication required"
	case errors.Is(err, tenant.ErrForbidden), errors.Is(err, tenant.ErrNoTenantContext):
		status = http.StatusForbidden
		msg = "forbidden"
	case errors.Is(err, tenant.ErrImmutableField):
		status = http.StatusUnprocessableEntity
		msg = "organization_id is immutable"
	case errors.Is(err, tenant.ErrInvalidScope):
		status = http.StatusUnprocessableEntity
		msg = "target organization required"
	case errors.Is(err, tenant.ErrIntegrityFault):
		status = http.StatusInternalServerError
		msg = "data integrity fault"
	}

	c.JSON(status, gin.H{"status": "error", "error": msg})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": data})
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": msg})
}

func respondForbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"status": "error", "error": "forbidden"})
}

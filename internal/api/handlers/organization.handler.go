package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/invoiceworks/billing-core/internal/api/middleware"
	"github.com/invoiceworks/billing-core/internal/audit"
	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/rbac"
	"github.com/invoiceworks/billing-core/internal/repo"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

// OrganizationHandler serves the tenancy roots. Restricted principals only
// ever see their own organization; creating or deleting one is reserved for
// the cross-tenant operator.
type OrganizationHandler struct {
	gateway *repo.Gateway
	policy  *rbac.Policy
	audit   *audit.Emitter
	logger  logger.Logger
}

func NewOrganizationHandler(g *repo.Gateway, p *rbac.Policy, a *audit.Emitter, l logger.Logger) *OrganizationHandler {
	return &OrganizationHandler{gateway: g, policy: p, audit: a, logger: l}
}

// GET /api/v1/organizations
func (h *OrganizationHandler) List(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindOrganization, rbac.OpRead, ownOrg(c)) {
		return
	}

	orgs, err := h.gateway.Organizations().List(c.Request.Context(), scope, listOptions(c, "currency"))
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), scope.OrganizationID(), "organization", "list")
	respondOK(c, gin.H{"organizations": orgs, "total": len(orgs)})
}

// GET /api/v1/organizations/:id
func (h *OrganizationHandler) Get(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindOrganization, rbac.OpRead, ownOrg(c)) {
		return
	}

	org, err := h.gateway.Organizations().Get(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), org.ID, "organization/"+org.ID, "read")
	respondOK(c, org)
}

// POST /api/v1/organizations
func (h *OrganizationHandler) Create(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	var org models.Organization
	if err := c.ShouldBindJSON(&org); err != nil {
		respondBadRequest(c, "invalid organization payload")
		return
	}
	if org.Name == "" || org.Code == "" {
		respondBadRequest(c, "name and code are required")
		return
	}

	if !authorize(c, h.policy, h.audit, tenant.KindOrganization, rbac.OpCreate, ownOrg(c)) {
		return
	}

	created, err := h.gateway.Organizations().Create(c.Request.Context(), &org, scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), created.ID, "organization/"+created.ID, "create")
	h.logger.Info("organization created", "organization_id", created.ID, "code", created.Code)
	respondCreated(c, created)
}

// PUT /api/v1/organizations/:id
func (h *OrganizationHandler) Update(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	var patch repo.OrganizationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid organization payload")
		return
	}

	if !authorize(c, h.policy, h.audit, tenant.KindOrganization, rbac.OpUpdate, ownOrg(c)) {
		return
	}

	updated, err := h.gateway.Organizations().Update(c.Request.Context(), c.Param("id"), patch, scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), updated.ID, "organization/"+updated.ID, "update")
	respondOK(c, updated)
}

// DELETE /api/v1/organizations/:id
func (h *OrganizationHandler) Delete(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindOrganization, rbac.OpDelete, ownOrg(c)) {
		return
	}

	id := c.Param("id")
	if _, err := h.gateway.Organizations().Delete(c.Request.Context(), id, scope); err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), id, "organization/"+id, "delete")
	respondOK(c, gin.H{"deleted": true})
}

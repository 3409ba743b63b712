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

type VendorHandler struct {
	gateway *repo.Gateway
	policy  *rbac.Policy
	audit   *audit.Emitter
	logger  logger.Logger
}

func NewVendorHandler(g *repo.Gateway, p *rbac.Policy, a *audit.Emitter, l logger.Logger) *VendorHandler {
	return &VendorHandler{gateway: g, policy: p, audit: a, logger: l}
}

type createVendorRequest struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	TaxID          string `json:"taxId"`
	// Active defaults to true when omitted.
	Active *bool `json:"active"`
}

// GET /api/v1/vendors
func (h *VendorHandler) List(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindVendor, rbac.OpRead, ownOrg(c)) {
		return
	}

	vendors, err := h.gateway.Vendors().List(c.Request.Context(), scope, listOptions(c, "active", "email"))
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), scope.OrganizationID(), "vendor", "list")
	respondOK(c, gin.H{"vendors": vendors, "total": len(vendors)})
}

// GET /api/v1/vendors/:id
func (h *VendorHandler) Get(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindVendor, rbac.OpRead, ownOrg(c)) {
		return
	}

	vendor, err := h.gateway.Vendors().Get(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), vendor.OrganizationID, "vendor/"+vendor.ID, "read")
	respondOK(c, vendor)
}

// POST /api/v1/vendors
func (h *VendorHandler) Create(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	var req createVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid vendor payload")
		return
	}
	if req.Name == "" {
		respondBadRequest(c, "name is required")
		return
	}

	if !authorize(c, h.policy, h.audit, tenant.KindVendor, rbac.OpCreate,
		targetOrgFor(middleware.Principal(c), req.OrganizationID)) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	vendor := &models.Vendor{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
		TaxID:          req.TaxID,
		Active:         active,
	}

	created, err := h.gateway.Vendors().Create(c.Request.Context(), vendor, scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), created.OrganizationID, "vendor/"+created.ID, "create")
	respondCreated(c, created)
}

// PUT /api/v1/vendors/:id
func (h *VendorHandler) Update(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	var patch repo.VendorPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid vendor payload")
		return
	}

	if !authorize(c, h.policy, h.audit, tenant.KindVendor, rbac.OpUpdate, ownOrg(c)) {
		return
	}

	updated, err := h.gateway.Vendors().Update(c.Request.Context(), c.Param("id"), patch, scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), updated.OrganizationID, "vendor/"+updated.ID, "update")
	respondOK(c, updated)
}

// DELETE /api/v1/vendors/:id
func (h *VendorHandler) Delete(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindVendor, rbac.OpDelete, ownOrg(c)) {
		return
	}

	id := c.Param("id")
	if _, err := h.gateway.Vendors().Delete(c.Request.Context(), id, scope); err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), scope.OrganizationID(), "vendor/"+id, "delete")
	respondOK(c, gin.H{"deleted": true})
}

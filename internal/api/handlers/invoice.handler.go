package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/invoiceworks/billing-core/internal/api/middleware"
	"github.com/invoiceworks/billing-core/internal/audit"
	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/rbac"
	"github.com/invoiceworks/billing-core/internal/repo"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

type InvoiceHandler struct {
	gateway *repo.Gateway
	policy  *rbac.Policy
	audit   *audit.Emitter
	logger  logger.Logger
}

func NewInvoiceHandler(g *repo.Gateway, p *rbac.Policy, a *audit.Emitter, l logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{gateway: g, policy: p, audit: a, logger: l}
}

type createInvoiceRequest struct {
	OrganizationID string          `json:"organizationId"`
	VendorID       string          `json:"vendorId"`
	Number         string          `json:"number"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	Date           time.Time       `json:"date"`
	DueDate        *time.Time      `json:"dueDate"`
	Notes          string          `json:"notes"`
}

// GET /api/v1/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindInvoice, rbac.OpRead, ownOrg(c)) {
		return
	}

	invoices, err := h.gateway.Invoices().List(c.Request.Context(), scope, listOptions(c, "status", "vendor_id", "number"))
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), scope.OrganizationID(), "invoice", "list")
	respondOK(c, gin.H{"invoices": invoices, "total": len(invoices)})
}

// GET /api/v1/invoices/status/:status
func (h *InvoiceHandler) ListByStatus(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	status := c.Param("status")
	if !models.ValidInvoiceStatus(status) {
		respondBadRequest(c, "unknown invoice status")
		return
	}

	if !authorize(c, h.policy, h.audit, tenant.KindInvoice, rbac.OpRead, ownOrg(c)) {
		return
	}

	opts := listOptions(c)
	opts.Filters = map[string]string{"status": status}
	invoices, err := h.gateway.Invoices().List(c.Request.Context(), scope, opts)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), scope.OrganizationID(), "invoice", "list")
	respondOK(c, gin.H{"invoices": invoices, "total": len(invoices), "filter": gin.H{"status": status}})
}

// GET /api/v1/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindInvoice, rbac.OpRead, ownOrg(c)) {
		return
	}

	invoice, err := h.gateway.Invoices().Get(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), invoice.OrganizationID, "invoice/"+invoice.ID, "read")
	respondOK(c, invoice)
}

// GET /api/v1/invoices/:id/vendor
//
// Traverses the invoice's vendor reference under the caller's scope. A
// reference pointing outside the invoice's own organization is a data fault
// and surfaces as a 500, never as the foreign vendor.
func (h *InvoiceHandler) GetVendor(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindInvoice, rbac.OpRead, ownOrg(c)) {
		return
	}

	invoice, err := h.gateway.Invoices().Get(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	vendor, err := h.gateway.InvoiceVendor(c.Request.Context(), scope, invoice)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), invoice.OrganizationID, "invoice/"+invoice.ID+"/vendor", "read")
	respondOK(c, vendor)
}

// POST /api/v1/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid invoice payload")
		return
	}
	if req.Number == "" {
		respondBadRequest(c, "number is required")
		return
	}
	if req.Status == "" {
		req.Status = models.InvoiceStatusDraft
	}
	if !models.ValidInvoiceStatus(req.Status) {
		respondBadRequest(c, "unknown invoice status")
		return
	}
	if req.Amount.IsNegative() {
		respondBadRequest(c, "amount must not be negative")
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	if !authorize(c, h.policy, h.audit, tenant.KindInvoice, rbac.OpCreate,
		targetOrgFor(middleware.Principal(c), req.OrganizationID)) {
		return
	}

	invoice := &models.Invoice{
		OrganizationID: req.OrganizationID,
		VendorID:       req.VendorID,
		Number:         req.Number,
		Amount:         req.Amount,
		Status:         req.Status,
		Date:           req.Date,
		DueDate:        req.DueDate,
		Notes:          req.Notes,
	}

	// A vendor reference must resolve inside the caller's scope before the
	// invoice is written.
	if invoice.VendorID != "" {
		if _, err := h.gateway.Vendors().Get(c.Request.Context(), invoice.VendorID, scope); err != nil {
			respondErr(c, err)
			return
		}
	}

	created, err := h.gateway.Invoices().Create(c.Request.Context(), invoice, scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), created.OrganizationID, "invoice/"+created.ID, "create")
	h.logger.Info("invoice created", "invoice_id", created.ID, "number", created.Number, "organization_id", created.OrganizationID)
	respondCreated(c, created)
}

// PUT /api/v1/invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	var patch repo.InvoicePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid invoice payload")
		return
	}
	if patch.Status != nil && !models.ValidInvoiceStatus(*patch.Status) {
		respondBadRequest(c, "unknown invoice status")
		return
	}
	if patch.Amount != nil && patch.Amount.IsNegative() {
		respondBadRequest(c, "amount must not be negative")
		return
	}

	if !authorize(c, h.policy, h.audit, tenant.KindInvoice, rbac.OpUpdate, ownOrg(c)) {
		return
	}

	// Re-pointing the invoice at a vendor requires that vendor to be visible
	// under the same scope.
	if patch.VendorID != nil && *patch.VendorID != "" {
		if _, err := h.gateway.Vendors().Get(c.Request.Context(), *patch.VendorID, scope); err != nil {
			respondErr(c, err)
			return
		}
	}

	updated, err := h.gateway.Invoices().Update(c.Request.Context(), c.Param("id"), patch, scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), updated.OrganizationID, "invoice/"+updated.ID, "update")
	respondOK(c, updated)
}

// DELETE /api/v1/invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindInvoice, rbac.OpDelete, ownOrg(c)) {
		return
	}

	id := c.Param("id")
	if _, err := h.gateway.Invoices().Delete(c.Request.Context(), id, scope); err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), scope.OrganizationID(), "invoice/"+id, "delete")
	respondOK(c, gin.H{"deleted": true})
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/invoiceworks/billing-core/internal/api/middleware"
	"github.com/invoiceworks/billing-core/internal/audit"
	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/rbac"
	"github.com/invoiceworks/billing-core/internal/repo"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

type UserHandler struct {
	gateway *repo.Gateway
	policy  *rbac.Policy
	audit   *audit.Emitter
	logger  logger.Logger
}

func NewUserHandler(g *repo.Gateway, p *rbac.Policy, a *audit.Emitter, l logger.Logger) *UserHandler {
	return &UserHandler{gateway: g, policy: p, audit: a, logger: l}
}

type createUserRequest struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Password       string `json:"password"`
	Role           string `json:"role"`
}

// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindUser, rbac.OpRead, ownOrg(c)) {
		return
	}

	users, err := h.gateway.Users().List(c.Request.Context(), scope, listOptions(c, "role", "email"))
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), scope.OrganizationID(), "user", "list")
	respondOK(c, gin.H{"users": users, "total": len(users)})
}

// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindUser, rbac.OpRead, ownOrg(c)) {
		return
	}

	user, err := h.gateway.Users().Get(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), user.OrganizationID, "user/"+user.ID, "read")
	respondOK(c, user)
}

// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid user payload")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondBadRequest(c, "name, email and password are required")
		return
	}
	role, err := tenant.ParseRole(req.Role)
	if err != nil {
		respondBadRequest(c, "unknown role")
		return
	}
	// Only the cross-tenant operator may mint another one.
	if role == tenant.RoleSuperAdmin && !middleware.Principal(c).IsSuperAdmin() {
		respondForbidden(c)
		return
	}

	if !authorize(c, h.policy, h.audit, tenant.KindUser, rbac.OpCreate,
		targetOrgFor(middleware.Principal(c), req.OrganizationID)) {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondErr(c, err)
		return
	}
	user := &models.User{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		PasswordHash:   string(hash),
		Role:           role,
	}

	created, err := h.gateway.Users().Create(c.Request.Context(), user, scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), created.OrganizationID, "user/"+created.ID, "create")
	h.logger.Info("user created", "user_id", created.ID, "organization_id", created.OrganizationID, "role", created.Role.String())
	respondCreated(c, created)
}

// PUT /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	var patch repo.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid user payload")
		return
	}
	if patch.Role != nil {
		role, err := tenant.ParseRole(*patch.Role)
		if err != nil {
			respondBadRequest(c, "unknown role")
			return
		}
		if role == tenant.RoleSuperAdmin && !middleware.Principal(c).IsSuperAdmin() {
			respondForbidden(c)
			return
		}
	}

	if !authorize(c, h.policy, h.audit, tenant.KindUser, rbac.OpUpdate, ownOrg(c)) {
		return
	}

	updated, err := h.gateway.Users().Update(c.Request.Context(), c.Param("id"), patch, scope)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), updated.OrganizationID, "user/"+updated.ID, "update")
	respondOK(c, updated)
}

// DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}
	if !authorize(c, h.policy, h.audit, tenant.KindUser, rbac.OpDelete, ownOrg(c)) {
		return
	}

	id := c.Param("id")
	if id == middleware.Principal(c).UserID {
		respondBadRequest(c, "cannot delete own account")
		return
	}
	if _, err := h.gateway.Users().Delete(c.Request.Context(), id, scope); err != nil {
		respondErr(c, err)
		return
	}
	h.audit.Record(middleware.Principal(c), scope.OrganizationID(), "user/"+id, "delete")
	respondOK(c, gin.H{"deleted": true})
}

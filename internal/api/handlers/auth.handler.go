package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/invoiceworks/billing-core/internal/api/middleware"
	"github.com/invoiceworks/billing-core/internal/services"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

type AuthHandler struct {
	auth   *services.AuthService
	logger logger.Logger
}

func NewAuthHandler(svc *services.AuthService, l logger.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, logger: l}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		respondBadRequest(c, "email and password are required")
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password,
		c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondErr(c, err)
		return
	}

	respondOK(c, gin.H{"token": token, "user": user})
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		h.logger.Warn("logout failed", "error", err)
	}
	respondOK(c, gin.H{"logged_out": true})
}

// GET /api/v1/auth/user
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	p := middleware.Principal(c)
	if p == nil {
		respondErr(c, tenant.ErrUnauthenticated)
		return
	}

	user, org, err := h.auth.CurrentUser(c.Request.Context(), p)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"user": user, "organization": org})
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return c.GetHeader("X-Session-Token")
}

package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/invoiceworks/billing-core/internal/audit"
	"github.com/invoiceworks/billing-core/internal/config"
	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/rbac"
	"github.com/invoiceworks/billing-core/internal/repo"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/cache"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

const apiTestSchema = `
CREATE TABLE organizations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    code TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    tax_rate TEXT NOT NULL DEFAULT '0',
    currency TEXT NOT NULL DEFAULT 'USD',
    payment_terms INTEGER NOT NULL DEFAULT 30,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    organization_id TEXT,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE TABLE vendors (
    id TEXT PRIMARY KEY,
    organization_id TEXT,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    tax_id TEXT NOT NULL DEFAULT '',
    active INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE TABLE invoices (
    id TEXT PRIMARY KEY,
    organization_id TEXT,
    vendor_id TEXT,
    number TEXT NOT NULL,
    amount TEXT NOT NULL DEFAULT '0',
    status TEXT NOT NULL DEFAULT 'draft',
    date DATETIME NOT NULL,
    due_date DATETIME,
    notes TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
`

type dbPinger struct{ db *sql.DB }

func (p dbPinger) HealthCheck(ctx context.Context) error { return p.db.PingContext(ctx) }

type apiFixture struct {
	router  *gin.Engine
	gateway *repo.Gateway
	cache   cache.Cache

	orgA *models.Organization
	orgB *models.Organization

	vendorA *models.Vendor
	vendorB *models.Vendor

	adminAToken      string
	accountantAToken string
	adminBToken      string
	superToken       string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(apiTestSchema)
	require.NoError(t, err)

	log := logger.NewNop()
	gateway := repo.New(db, log)
	c := cache.NewMemory(time.Hour)

	cfg := &config.Config{
		Environment: "test",
		Port:        0,
		Auth:        config.AuthConfig{SessionTTLMinutes: 60},
		Policy:      config.PolicyConfig{AccountantManageVendors: true},
		Audit:       config.AuditConfig{Sink: "log", Buffer: 64},
	}
	policy, err := rbac.Load(cfg.Policy)
	require.NoError(t, err)
	auditor := audit.NewEmitter(audit.NewLogAppender(log), log, audit.Options{Buffer: 64})
	t.Cleanup(auditor.Close)

	srv := NewServer(cfg, log, c, gateway, policy, auditor, dbPinger{db})

	fx := &apiFixture{router: srv.Router(), gateway: gateway, cache: c}

	ctx := context.Background()
	unrestricted := tenant.Unrestricted()

	fx.orgA, err = gateway.Organizations().Create(ctx, &models.Organization{Name: "Acme", Code: "ACME"}, unrestricted)
	require.NoError(t, err)
	fx.orgB, err = gateway.Organizations().Create(ctx, &models.Organization{Name: "Beta", Code: "BETA"}, unrestricted)
	require.NoError(t, err)

	fx.vendorA, err = gateway.Vendors().Create(ctx, &models.Vendor{Name: "A Supplies", Active: true}, tenant.Restricted(fx.orgA.ID))
	require.NoError(t, err)
	fx.vendorB, err = gateway.Vendors().Create(ctx, &models.Vendor{Name: "B Supplies", Active: true}, tenant.Restricted(fx.orgB.ID))
	require.NoError(t, err)

	fx.seedUser(t, "ada@acme.test", fx.orgA.ID, tenant.RoleAdmin)
	fx.seedUser(t, "alan@acme.test", fx.orgA.ID, tenant.RoleAccountant)
	fx.seedUser(t, "bea@beta.test", fx.orgB.ID, tenant.RoleAdmin)
	fx.seedUser(t, "root@invoiceworks.dev", "", tenant.RoleSuperAdmin)

	fx.adminAToken = fx.login(t, "ada@acme.test")
	fx.accountantAToken = fx.login(t, "alan@acme.test")
	fx.adminBToken = fx.login(t, "bea@beta.test")
	fx.superToken = fx.login(t, "root@invoiceworks.dev")

	return fx
}

func (fx *apiFixture) seedUser(t *testing.T, email, orgID string, role tenant.Role) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Name: email, Email: email, PasswordHash: string(hash), Role: role}
	scope := tenant.Unrestricted()
	if orgID != "" {
		user.OrganizationID = orgID
		_, err = fx.gateway.Users().Create(context.Background(), user, scope)
		require.NoError(t, err)
		return
	}
	// Super admins carry no organization and need a direct session; the
	// gateway refuses unrestricted creates without a target organization.
	user.ID = "sa-" + email
	session := &models.UserSession{ID: "tok-" + email, UserID: user.ID, Role: role.String()}
	require.NoError(t, fx.cache.SetSession(context.Background(), session))
}

func (fx *apiFixture) login(t *testing.T, email string) string {
	t.Helper()
	if email == "root@invoiceworks.dev" {
		return "tok-" + email
	}
	w := fx.do(t, http.MethodPost, "/api/v1/auth/login", "",
		gin.H{"email": email, "password": "pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func (fx *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpointsArePublic(t *testing.T) {
	fx := newAPIFixture(t)

	assert.Equal(t, http.StatusOK, fx.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, fx.do(t, http.MethodGet, "/ready", "", nil).Code)
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodGet, "/api/v1/vendors", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = fx.do(t, http.MethodGet, "/api/v1/vendors", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPublicExemptionIsExactMatch(t *testing.T) {
	fx := newAPIFixture(t)

	// Paths that merely share a public route's prefix still require a token.
	for _, path := range []string{
		"/api/v1/auth/login-history",
		"/healthz",
		"/readyness",
		"/metrics.json",
	} {
		w := fx.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestVendorListIsTenantScoped(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodGet, "/api/v1/vendors", fx.adminAToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, fx.orgA.ID, w.Header().Get("X-Tenant-Organization-Id"))

	var resp struct {
		Data struct {
			Vendors []models.Vendor `json:"vendors"`
			Total   int             `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, fx.vendorA.ID, resp.Data.Vendors[0].ID)
}

func TestCrossTenantReadReturns404(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodGet, "/api/v1/vendors/"+fx.vendorB.ID, fx.adminAToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Identical to a genuinely missing id.
	w2 := fx.do(t, http.MethodGet, "/api/v1/vendors/no-such-id", fx.adminAToken, nil)
	assert.Equal(t, http.StatusNotFound, w2.Code)
	assert.JSONEq(t, w2.Body.String(), w.Body.String())

	// The owner still sees it.
	w = fx.do(t, http.MethodGet, "/api/v1/vendors/"+fx.vendorB.ID, fx.adminBToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateCannotTargetForeignOrganization(t *testing.T) {
	fx := newAPIFixture(t)

	// Naming a foreign organization in the payload is a policy denial.
	w := fx.do(t, http.MethodPost, "/api/v1/vendors", fx.adminAToken,
		gin.H{"name": "Sneaky", "organizationId": fx.orgB.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Without one, the vendor lands in the caller's own organization.
	w = fx.do(t, http.MethodPost, "/api/v1/vendors", fx.adminAToken, gin.H{"name": "Honest"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data models.Vendor `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, fx.orgA.ID, resp.Data.OrganizationID)
	assert.True(t, resp.Data.Active)
}

func TestOrganizationReassignmentIsRejected(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPut, "/api/v1/vendors/"+fx.vendorA.ID, fx.adminAToken,
		gin.H{"organizationId": fx.orgB.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAccountantPermissions(t *testing.T) {
	fx := newAPIFixture(t)

	// Reads are fine.
	w := fx.do(t, http.MethodGet, "/api/v1/invoices", fx.accountantAToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Vendor management is enabled by the product toggle.
	w = fx.do(t, http.MethodPost, "/api/v1/vendors", fx.accountantAToken, gin.H{"name": "From Accounting"})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Invoice mutations are not.
	w = fx.do(t, http.MethodPost, "/api/v1/invoices", fx.accountantAToken,
		gin.H{"number": "INV-9", "amount": "10.00"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Neither is user management.
	w = fx.do(t, http.MethodPost, "/api/v1/users", fx.accountantAToken,
		gin.H{"name": "X", "email": "x@acme.test", "password": "pass", "role": "accountant"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrganizationLifecycleRequiresSuperAdmin(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/v1/organizations", fx.adminAToken,
		gin.H{"name": "New Org", "code": "NEW"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = fx.do(t, http.MethodPost, "/api/v1/organizations", fx.superToken,
		gin.H{"name": "New Org", "code": "NEW"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Restricted admins only ever see their own organization.
	w = fx.do(t, http.MethodGet, "/api/v1/organizations", fx.adminAToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Total)
}

func TestSuperAdminSeesAllTenants(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodGet, "/api/v1/vendors", fx.superToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, w.Header().Get("X-Tenant-Organization-Id"))

	var resp struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Total)

	// An unrestricted create still needs an explicit target organization.
	w = fx.do(t, http.MethodPost, "/api/v1/vendors", fx.superToken, gin.H{"name": "Floating"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = fx.do(t, http.MethodPost, "/api/v1/vendors", fx.superToken,
		gin.H{"name": "Placed", "organizationId": fx.orgB.ID})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestInvoiceStatusRoute(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/v1/invoices", fx.adminAToken,
		gin.H{"number": "INV-1", "amount": "99.95", "status": "sent", "vendorId": fx.vendorA.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = fx.do(t, http.MethodGet, "/api/v1/invoices/status/sent", fx.adminAToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Total)

	w = fx.do(t, http.MethodGet, "/api/v1/invoices/status/bogus", fx.adminAToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceVendorMustBeVisible(t *testing.T) {
	fx := newAPIFixture(t)

	// Referencing a foreign vendor fails like a missing one.
	w := fx.do(t, http.MethodPost, "/api/v1/invoices", fx.adminAToken,
		gin.H{"number": "INV-2", "amount": "10.00", "vendorId": fx.vendorB.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = fx.do(t, http.MethodPost, "/api/v1/invoices", fx.adminAToken,
		gin.H{"number": "INV-3", "amount": "10.00", "vendorId": fx.vendorA.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data models.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = fx.do(t, http.MethodGet, "/api/v1/invoices/"+resp.Data.ID+"/vendor", fx.adminAToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCurrentUserEndpoint(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodGet, "/api/v1/auth/user", fx.adminAToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			User         models.User          `json:"user"`
			Organization *models.Organization `json:"organization"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ada@acme.test", resp.Data.User.Email)
	require.NotNil(t, resp.Data.Organization)
	assert.Equal(t, fx.orgA.ID, resp.Data.Organization.ID)
}

func TestLogoutRevokesToken(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/v1/auth/logout", fx.adminAToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodGet, "/api/v1/vendors", fx.adminAToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminCannotMintSuperAdmin(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/v1/users", fx.adminAToken,
		gin.H{"name": "Evil", "email": "evil@acme.test", "password": "pass", "role": "super_admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = fx.do(t, http.MethodPost, "/api/v1/users", fx.adminAToken,
		gin.H{"name": "Fine", "email": "fine@acme.test", "password": "pass", "role": "accountant"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestDeleteIsScopedAndIdempotent(t *testing.T) {
	fx := newAPIFixture(t)

	// Cross-tenant delete looks like a missing row and changes nothing.
	w := fx.do(t, http.MethodDelete, "/api/v1/vendors/"+fx.vendorB.ID, fx.adminAToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = fx.do(t, http.MethodGet, "/api/v1/vendors/"+fx.vendorB.ID, fx.adminBToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodDelete, "/api/v1/vendors/"+fx.vendorA.ID, fx.adminAToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = fx.do(t, http.MethodDelete, "/api/v1/vendors/"+fx.vendorA.ID, fx.adminAToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

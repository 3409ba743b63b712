package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceworks/billing-core/internal/config"
	"github.com/invoiceworks/billing-core/internal/tenant"
)

func defaultPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := Load(config.PolicyConfig{AccountantManageVendors: true})
	require.NoError(t, err)
	return p
}

func TestSuperAdminAlwaysAllowed(t *testing.T) {
	p := defaultPolicy(t)
	sa := &tenant.Principal{UserID: "u1", Role: tenant.RoleSuperAdmin}

	for _, op := range []Operation{OpRead, OpCreate, OpUpdate, OpDelete} {
		d := p.Decide(sa, "any-org", tenant.KindInvoice, op)
		assert.True(t, d.Allowed, "op %s", op)
	}
	// Even organization lifecycle, and even with no target organization.
	assert.True(t, p.Decide(sa, "", tenant.KindOrganization, OpCreate).Allowed)
}

func TestCrossTenantIsDeniedBeforeRoleCheck(t *testing.T) {
	p := defaultPolicy(t)
	admin := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAdmin}

	d := p.Decide(admin, "org-2", tenant.KindVendor, OpRead)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCrossTenant, d.Reason)

	d = p.Decide(admin, "", tenant.KindVendor, OpRead)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCrossTenant, d.Reason)

	d = p.Decide(nil, "org-1", tenant.KindVendor, OpRead)
	assert.False(t, d.Allowed)
}

func TestAdminMatrix(t *testing.T) {
	p := defaultPolicy(t)
	admin := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAdmin}

	for _, kind := range []tenant.EntityKind{tenant.KindUser, tenant.KindVendor, tenant.KindInvoice} {
		for _, op := range []Operation{OpRead, OpCreate, OpUpdate, OpDelete} {
			assert.True(t, p.Decide(admin, "org-1", kind, op).Allowed, "%s %s", kind, op)
		}
	}

	// Organization lifecycle stays with the cross-tenant operator.
	assert.True(t, p.Decide(admin, "org-1", tenant.KindOrganization, OpRead).Allowed)
	assert.True(t, p.Decide(admin, "org-1", tenant.KindOrganization, OpUpdate).Allowed)
	d := p.Decide(admin, "org-1", tenant.KindOrganization, OpCreate)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientRole, d.Reason)
	assert.False(t, p.Decide(admin, "org-1", tenant.KindOrganization, OpDelete).Allowed)
}

func TestAccountantMatrix(t *testing.T) {
	p := defaultPolicy(t)
	acc := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAccountant}

	// Reads everywhere.
	for _, kind := range []tenant.EntityKind{tenant.KindOrganization, tenant.KindUser, tenant.KindVendor, tenant.KindInvoice} {
		assert.True(t, p.Decide(acc, "org-1", kind, OpRead).Allowed, "%s", kind)
	}

	// Vendor management is on via the product toggle.
	assert.True(t, p.Decide(acc, "org-1", tenant.KindVendor, OpCreate).Allowed)
	assert.True(t, p.Decide(acc, "org-1", tenant.KindVendor, OpUpdate).Allowed)

	// Everything else stays read-only.
	d := p.Decide(acc, "org-1", tenant.KindInvoice, OpCreate)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientRole, d.Reason)
	assert.False(t, p.Decide(acc, "org-1", tenant.KindUser, OpCreate).Allowed)
	assert.False(t, p.Decide(acc, "org-1", tenant.KindOrganization, OpUpdate).Allowed)
}

func TestAccountantTogglesOff(t *testing.T) {
	p, err := Load(config.PolicyConfig{})
	require.NoError(t, err)
	acc := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAccountant}

	assert.False(t, p.Decide(acc, "org-1", tenant.KindVendor, OpCreate).Allowed)
	assert.True(t, p.Decide(acc, "org-1", tenant.KindVendor, OpRead).Allowed)
}

func TestOverrides(t *testing.T) {
	p, err := Load(config.PolicyConfig{Overrides: map[string]string{
		"accountant.invoice.create": "allow",
		"admin.vendor.delete":       "deny",
	}})
	require.NoError(t, err)

	acc := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAccountant}
	admin := &tenant.Principal{UserID: "u2", OrganizationID: "org-1", Role: tenant.RoleAdmin}

	assert.True(t, p.Decide(acc, "org-1", tenant.KindInvoice, OpCreate).Allowed)
	assert.False(t, p.Decide(admin, "org-1", tenant.KindVendor, OpDelete).Allowed)
}

func TestInvalidOverridesRejected(t *testing.T) {
	keys := []string{
		"accountant.invoice",
		"superhero.invoice.create",
		"super_admin.invoice.create",
		"accountant.spaceship.create",
		"accountant.invoice.materialize",
	}
	for _, key := range keys {
		_, err := Load(config.PolicyConfig{Overrides: map[string]string{key: "allow"}})
		assert.Error(t, err, "override %q", key)
	}
}

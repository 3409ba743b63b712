package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScope(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		wantErr   error
		wantOrg   string
		wantOpen  bool
	}{
		{
			name:    "nil principal is unauthenticated",
			wantErr: ErrUnauthenticated,
		},
		{
			name:      "super admin is unrestricted",
			principal: &Principal{UserID: "u1", Role: RoleSuperAdmin},
			wantOpen:  true,
		},
		{
			name:      "super admin with organization is still unrestricted",
			principal: &Principal{UserID: "u1", OrganizationID: "org-1", Role: RoleSuperAdmin},
			wantOpen:  true,
		},
		{
			name:      "admin is confined to own organization",
			principal: &Principal{UserID: "u2", OrganizationID: "org-1", Role: RoleAdmin},
			wantOrg:   "org-1",
		},
		{
			name:      "accountant is confined to own organization",
			principal: &Principal{UserID: "u3", OrganizationID: "org-2", Role: RoleAccountant},
			wantOrg:   "org-2",
		},
		{
			name:      "admin without organization has no tenant context",
			principal: &Principal{UserID: "u4", Role: RoleAdmin},
			wantErr:   ErrNoTenantContext,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := ResolveScope(tt.principal)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOpen, scope.IsUnrestricted())
			assert.Equal(t, tt.wantOrg, scope.OrganizationID())
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"super_admin", "admin", "accountant"} {
		_, err := ParseRole(valid)
		assert.NoError(t, err)
	}
	for _, invalid := range []string{"", "root", "Administrator", "ADMIN"} {
		_, err := ParseRole(invalid)
		assert.Error(t, err)
	}
}

func TestIsSuperAdmin(t *testing.T) {
	var p *Principal
	assert.False(t, p.IsSuperAdmin())
	assert.False(t, (&Principal{Role: RoleAdmin}).IsSuperAdmin())
	assert.True(t, (&Principal{Role: RoleSuperAdmin}).IsSuperAdmin())
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "unrestricted", Unrestricted().String())
	assert.Equal(t, "restricted(org-1)", Restricted("org-1").String())
}

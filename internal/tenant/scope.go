package tenant

import "fmt"

// Scope is the tenant filter applied to every data operation. It is computed
// once per request from the Principal and passed explicitly through all
// gateway calls; there is deliberately no ambient "current organization"
// state anywhere in the codebase.
type Scope struct {
	orgID        string
	unrestricted bool
}

// Restricted returns a scope confined to a single organization.
func Restricted(organizationID string) Scope {
	return Scope{orgID: organizationID}
}

// Unrestricted returns the cross-tenant scope reserved for super_admin
// principals.
func Unrestricted() Scope {
	return Scope{unrestricted: true}
}

// IsUnrestricted reports whether the scope applies no organization filter.
func (s Scope) IsUnrestricted() bool { return s.unrestricted }

// OrganizationID returns the confining organization, or "" when the scope is
// unrestricted.
func (s Scope) OrganizationID() string {
	if s.unrestricted {
		return ""
	}
	return s.orgID
}

func (s Scope) String() string {
	if s.unrestricted {
		return "unrestricted"
	}
	return fmt.Sprintf("restricted(%s)", s.orgID)
}

// ResolveScope derives the effective tenant filter for a principal.
//
// super_admin principals operate unrestricted. Everyone else is confined to
// their own organization; a non-super-admin principal without an organization
// is a misconfigured account and fails with ErrNoTenantContext rather than
// falling back to any default.
func ResolveScope(p *Principal) (Scope, error) {
	if p == nil {
		return Scope{}, ErrUnauthenticated
	}
	if p.Role == RoleSuperAdmin {
		return Unrestricted(), nil
	}
	if p.OrganizationID == "" {
		return Scope{}, fmt.Errorf("principal %s has no organization: %w", p.UserID, ErrNoTenantContext)
	}
	return Restricted(p.OrganizationID), nil
}

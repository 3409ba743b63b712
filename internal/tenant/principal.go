package tenant

import "fmt"

// Role is the closed set of user roles. Role checks live in the access
// policy (internal/rbac); nothing else should compare roles directly.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
)

// ParseRole validates a stored role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSuperAdmin, RoleAdmin, RoleAccountant:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// Principal is the authenticated actor for a single request. It is built
// once per request by the identity resolver and discarded afterwards; it is
// never cached across requests.
type Principal struct {
	UserID string
	// OrganizationID is empty for principals without a tenant (the only
	// legitimate case is a super_admin).
	OrganizationID string
	Role           Role
}

// IsSuperAdmin reports whether the principal carries the cross-tenant
// operator role. This is a direct role check, never inferred from
// organization membership.
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Role == RoleSuperAdmin
}

// EntityKind names a tenant-scoped entity class handled by the data gateway.
type EntityKind string

const (
	KindOrganization EntityKind = "organization"
	KindUser         EntityKind = "user"
	KindVendor       EntityKind = "vendor"
	KindInvoice      EntityKind = "invoice"
)

func (k EntityKind) String() string { return string(k) }

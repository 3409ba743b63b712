// Package rbac implements the access decision layer: given a principal, a
// target organization, and an operation, it answers allow/deny with a reason.
//
// It is evaluated in addition to the data gateway's tenant filter, not
// instead of it. The gateway enforces what a principal can observe; this
// package enforces what it is allowed to act on. Either layer denying is
// enough to reject, so a bug in one does not open a cross-tenant hole.
package rbac

import (
	"fmt"
	"strings"

	"github.com/invoiceworks/billing-core/internal/config"
	"github.com/invoiceworks/billing-core/internal/tenant"
)

// Operation is the closed set of operation kinds the policy table knows.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) String() string { return string(o) }

// ParseOperation validates an operation name from config.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpRead, OpCreate, OpUpdate, OpDelete:
		return Operation(s), nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Reason explains a decision.
type Reason string

const (
	ReasonAllowed          Reason = "allowed"
	ReasonCrossTenant      Reason = "cross_tenant"
	ReasonInsufficientRole Reason = "insufficient_role"
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true, Reason: ReasonAllowed} }
func deny(r Reason) Decision { return Decision{Allowed: false, Reason: r} }

type ruleKey struct {
	role tenant.Role
	kind tenant.EntityKind
	op   Operation
}

// Policy is the immutable role/entity/operation table. Built once at process
// start from configuration; safe for concurrent reads.
type Policy struct {
	rules map[ruleKey]bool
}

// Load builds the policy table: the baseline matrix, then the two product
// toggles, then raw overrides from configuration.
func Load(cfg config.PolicyConfig) (*Policy, error) {
	p := &Policy{rules: make(map[ruleKey]bool)}

	kinds := []tenant.EntityKind{tenant.KindOrganization, tenant.KindUser, tenant.KindVendor, tenant.KindInvoice}
	ops := []Operation{OpRead, OpCreate, OpUpdate, OpDelete}

	// Baseline: admin manages everything inside the tenant except
	// organization lifecycle (create/delete stay with super_admin);
	// accountant reads everything, mutates nothing.
	for _, k := range kinds {
		for _, o := range ops {
			p.rules[ruleKey{tenant.RoleAdmin, k, o}] = true
			p.rules[ruleKey{tenant.RoleAccountant, k, o}] = o == OpRead
		}
	}
	p.rules[ruleKey{tenant.RoleAdmin, tenant.KindOrganization, OpCreate}] = false
	p.rules[ruleKey{tenant.RoleAdmin, tenant.KindOrganization, OpDelete}] = false

	if cfg.AccountantManageVendors {
		for _, o := range []Operation{OpCreate, OpUpdate, OpDelete} {
			p.rules[ruleKey{tenant.RoleAccountant, tenant.KindVendor, o}] = true
		}
	}
	if cfg.AccountantManageUsers {
		for _, o := range []Operation{OpCreate, OpUpdate, OpDelete} {
			p.rules[ruleKey{tenant.RoleAccountant, tenant.KindUser, o}] = true
		}
	}

	for key, val := range cfg.Overrides {
		parts := strings.Split(key, ".")
		if len(parts) != 3 {
			return nil, fmt.Errorf("policy override %q: want role.entity.operation", key)
		}
		role, err := tenant.ParseRole(parts[0])
		if err != nil {
			return nil, fmt.Errorf("policy override %q: %w", key, err)
		}
		if role == tenant.RoleSuperAdmin {
			return nil, fmt.Errorf("policy override %q: super_admin is not overridable", key)
		}
		kind := tenant.EntityKind(parts[1])
		switch kind {
		case tenant.KindOrganization, tenant.KindUser, tenant.KindVendor, tenant.KindInvoice:
		default:
			return nil, fmt.Errorf("policy override %q: unknown entity %q", key, parts[1])
		}
		op, err := ParseOperation(parts[2])
		if err != nil {
			return nil, fmt.Errorf("policy override %q: %w", key, err)
		}
		p.rules[ruleKey{role, kind, op}] = val == "allow"
	}

	return p, nil
}

// Decide evaluates (principal, target organization, entity kind, operation).
//
// super_admin is the designated cross-tenant operator and is always allowed.
// Everyone else is first checked for tenancy (the target organization must be
// the principal's own), then against the role/operation matrix.
func (p *Policy) Decide(pr *tenant.Principal, targetOrgID string, kind tenant.EntityKind, op Operation) Decision {
	if pr == nil {
		return deny(ReasonCrossTenant)
	}
	if pr.Role == tenant.RoleSuperAdmin {
		return allow()
	}
	if pr.OrganizationID == "" || targetOrgID == "" || targetOrgID != pr.OrganizationID {
		return deny(ReasonCrossTenant)
	}
	if p.rules[ruleKey{pr.Role, kind, op}] {
		return allow()
	}
	return deny(ReasonInsufficientRole)
}

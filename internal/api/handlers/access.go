// Package handlers contains the HTTP surface. Every handler follows the same
// shape: resolve principal and scope from middleware, evaluate the access
// policy, then go through the tenant-scoped gateway. The policy and the
// gateway each enforce tenancy on their own; a request must pass both.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/invoiceworks/billing-core/internal/api/middleware"
	"github.com/invoiceworks/billing-core/internal/audit"
	"github.com/invoiceworks/billing-core/internal/monitoring"
	"github.com/invoiceworks/billing-core/internal/rbac"
	"github.com/invoiceworks/billing-core/internal/repo"
	"github.com/invoiceworks/billing-core/internal/tenant"
)

// authorize evaluates the access policy and records the decision. A denial
// writes the error response and reports false; the caller just returns.
func authorize(c *gin.Context, policy *rbac.Policy, auditor *audit.Emitter,
	kind tenant.EntityKind, op rbac.Operation, targetOrg string) bool {

	p := middleware.Principal(c)
	decision := policy.Decide(p, targetOrg, kind, op)
	monitoring.RecordAccessDecision(kind.String(), op.String(), decision.Allowed)
	if !decision.Allowed {
		auditor.RecordDenied(p, targetOrg, kind.String(), op.String(), string(decision.Reason))
		respondForbidden(c)
		return false
	}
	return true
}

// targetOrgFor picks the organization a mutation is aimed at: the payload's
// explicit target when present, the principal's own organization otherwise.
// An admin naming a foreign organization in the payload is denied by the
// policy as cross_tenant before the gateway is ever reached.
func targetOrgFor(p *tenant.Principal, payloadOrg string) string {
	if payloadOrg != "" {
		return payloadOrg
	}
	if p == nil {
		return ""
	}
	return p.OrganizationID
}

// ownOrg is the policy target for operations addressed by id, where the row's
// organization is not known until the gateway resolves it under scope.
func ownOrg(c *gin.Context) string {
	p := middleware.Principal(c)
	if p == nil {
		return ""
	}
	return p.OrganizationID
}

// listOptions builds gateway list options from the query string. Only filter
// keys named by the handler are forwarded; the gateway whitelists them again
// against the entity descriptor.
func listOptions(c *gin.Context, filterKeys ...string) repo.ListOptions {
	opts := repo.ListOptions{}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
		opts.Offset = offset
	}
	if c.Query("include_orphans") == "true" {
		opts.IncludeOrphans = true
	}
	for _, key := range filterKeys {
		if val := c.Query(key); val != "" {
			if opts.Filters == nil {
				opts.Filters = make(map[string]string)
			}
			opts.Filters[key] = val
		}
	}
	return opts
}

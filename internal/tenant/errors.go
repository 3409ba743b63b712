package tenant

import "errors"

// Failure taxonomy for tenant-scoped operations. All failures are
// deterministic for a given input and are never retried.
var (
	// ErrUnauthenticated means the credential token is missing, malformed,
	// expired, or revoked. Raised before any gateway call.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNoTenantContext means a non-super-admin principal carries no
	// organization. Tenant-scoped operations refuse to proceed rather than
	// defaulting to an unrestricted or fallback scope.
	ErrNoTenantContext = errors.New("no tenant context")

	// ErrNotFound covers both true absence and cross-tenant existence. The
	// two cases are intentionally indistinguishable to the caller so that
	// record ids cannot be probed across organizations.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is a role/operation policy denial.
	ErrForbidden = errors.New("forbidden")

	// ErrImmutableField is an attempt to change organization_id after
	// creation.
	ErrImmutableField = errors.New("organization_id is immutable")

	// ErrInvalidScope is a create under unrestricted scope with no explicit
	// target organization.
	ErrInvalidScope = errors.New("ambiguous tenant target for create")

	// ErrIntegrityFault marks a stored relation that crosses organizations.
	// It indicates data corruption and is always surfaced, never folded into
	// ErrNotFound.
	ErrIntegrityFault = errors.New("cross-tenant relation integrity fault")
)

package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/tenant"
)

// InvoiceVendor resolves an invoice's vendor with the same scope the invoice
// was fetched under. A vendor row that exists but belongs to a different
// organization than its invoice is stored-data corruption, not a lookup
// miss: it is logged at high severity and surfaced as ErrIntegrityFault so
// an operator sees it instead of a silent 404.
func (g *Gateway) InvoiceVendor(ctx context.Context, scope tenant.Scope, inv *models.Invoice) (*models.Vendor, error) {
	if inv.VendorID == "" {
		return nil, fmt.Errorf("invoice %s has no vendor: %w", inv.ID, tenant.ErrNotFound)
	}

	// Raw by-id fetch so a cross-tenant reference is distinguishable from a
	// genuinely missing row.
	vendor, err := g.vendors.Get(ctx, inv.VendorID, tenant.Unrestricted())
	if err != nil {
		return nil, err
	}

	if vendor.OrganizationID != inv.OrganizationID {
		g.log.Error("cross-tenant invoice/vendor relation",
			"invoice_id", inv.ID,
			"invoice_organization_id", inv.OrganizationID,
			"vendor_id", vendor.ID,
			"vendor_organization_id", vendor.OrganizationID,
		)
		return nil, fmt.Errorf("invoice %s references vendor %s across organizations: %w",
			inv.ID, vendor.ID, tenant.ErrIntegrityFault)
	}

	// Re-assert the caller's scope on the related row. Redundant when the
	// invoice itself came through a scoped fetch, kept as the second layer.
	if !scope.IsUnrestricted() && vendor.OrganizationID != scope.OrganizationID() {
		return nil, fmt.Errorf("vendor %s: %w", vendor.ID, tenant.ErrNotFound)
	}
	return vendor, nil
}

// vendorOrganization returns the organization owning a vendor row, unscoped.
// A missing vendor is ErrNotFound.
func vendorOrganization(ctx context.Context, db *sql.DB, vendorID string) (string, error) {
	var org sql.NullString
	err := db.QueryRowContext(ctx, "SELECT organization_id FROM vendors WHERE id = ?", vendorID).Scan(&org)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("vendor %s: %w", vendorID, tenant.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("vendor %s organization: %w", vendorID, err)
	}
	return org.String, nil
}

// checkInvoiceVendorRef refuses to store an invoice/vendor relation that
// crosses organizations: the same condition InvoiceVendor surfaces as an
// integrity fault on read must never be accepted on write. Under a
// restricted scope a foreign vendor is indistinguishable from a missing one;
// under unrestricted scope the mismatch is reported as a scope error so the
// caller sees which reference was wrong.
func checkInvoiceVendorRef(ctx context.Context, db *sql.DB, vendorID, invoiceOrg string, scope tenant.Scope) error {
	if vendorID == "" {
		return nil
	}
	vendorOrg, err := vendorOrganization(ctx, db, vendorID)
	if err != nil {
		return err
	}
	if vendorOrg == invoiceOrg {
		return nil
	}
	if scope.IsUnrestricted() {
		return fmt.Errorf("vendor %s belongs to organization %q, not %q: %w",
			vendorID, vendorOrg, invoiceOrg, tenant.ErrInvalidScope)
	}
	return fmt.Errorf("vendor %s: %w", vendorID, tenant.ErrNotFound)
}

// FindUserByEmail is the credential lookup for login. It is unscoped by
// necessity: authentication happens before any tenant context exists. It
// lives here so the gateway remains the only package issuing queries against
// tenant-scoped tables.
func (g *Gateway) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT " + strings.Join(userDescriptor.Columns, ", ") + " FROM users WHERE email = ?"
	u, err := userDescriptor.Scan(g.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, tenant.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

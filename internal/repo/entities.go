package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/tenant"
)

// Per-kind table shapes. All scoping behavior lives in Store; nothing here
// may build WHERE clauses.

var organizationDescriptor = Descriptor[*models.Organization]{
	Kind:        tenant.KindOrganization,
	Table:       "organizations",
	ScopeColumn: "id",
	Columns: []string{
		"id", "name", "code", "description", "address", "phone", "email",
		"tax_rate", "currency", "payment_terms", "created_at", "updated_at",
	},
	Filterable: []string{"currency"},
	Scan: func(r rowScanner) (*models.Organization, error) {
		var o models.Organization
		err := r.Scan(&o.ID, &o.Name, &o.Code, &o.Description, &o.Address, &o.Phone,
			&o.Email, &o.TaxRate, &o.Currency, &o.PaymentTerms, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, err
		}
		return &o, nil
	},
	Insert: func(o *models.Organization) ([]string, []any) {
		return []string{"id", "name", "code", "description", "address", "phone", "email",
				"tax_rate", "currency", "payment_terms", "created_at", "updated_at"},
			[]any{o.ID, o.Name, o.Code, o.Description, o.Address, o.Phone, o.Email,
				o.TaxRate, o.Currency, o.PaymentTerms, o.CreatedAt, o.UpdatedAt}
	},
}

var userDescriptor = Descriptor[*models.User]{
	Kind:        tenant.KindUser,
	Table:       "users",
	ScopeColumn: "organization_id",
	Columns: []string{
		"id", "organization_id", "name", "email", "phone", "password_hash",
		"role", "created_at", "updated_at",
	},
	Filterable: []string{"role", "email"},
	Scan: func(r rowScanner) (*models.User, error) {
		var (
			u    models.User
			org  sql.NullString
			role string
		)
		err := r.Scan(&u.ID, &org, &u.Name, &u.Email, &u.Phone, &u.PasswordHash,
			&role, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, err
		}
		u.OrganizationID = org.String
		u.Role, err = tenant.ParseRole(role)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", u.ID, err)
		}
		return &u, nil
	},
	Insert: func(u *models.User) ([]string, []any) {
		return []string{"id", "organization_id", "name", "email", "phone",
				"password_hash", "role", "created_at", "updated_at"},
			[]any{u.ID, nullIfEmpty(u.OrganizationID), u.Name, u.Email, u.Phone,
				u.PasswordHash, u.Role.String(), u.CreatedAt, u.UpdatedAt}
	},
}

var vendorDescriptor = Descriptor[*models.Vendor]{
	Kind:        tenant.KindVendor,
	Table:       "vendors",
	ScopeColumn: "organization_id",
	Columns: []string{
		"id", "organization_id", "name", "email", "phone", "address", "tax_id",
		"active", "created_at", "updated_at",
	},
	Filterable: []string{"active", "email"},
	Scan: func(r rowScanner) (*models.Vendor, error) {
		var (
			v   models.Vendor
			org sql.NullString
		)
		err := r.Scan(&v.ID, &org, &v.Name, &v.Email, &v.Phone, &v.Address,
			&v.TaxID, &v.Active, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return nil, err
		}
		v.OrganizationID = org.String
		return &v, nil
	},
	Insert: func(v *models.Vendor) ([]string, []any) {
		return []string{"id", "organization_id", "name", "email", "phone", "address",
				"tax_id", "active", "created_at", "updated_at"},
			[]any{v.ID, nullIfEmpty(v.OrganizationID), v.Name, v.Email, v.Phone,
				v.Address, v.TaxID, v.Active, v.CreatedAt, v.UpdatedAt}
	},
}

var invoiceDescriptor = Descriptor[*models.Invoice]{
	Kind:        tenant.KindInvoice,
	Table:       "invoices",
	ScopeColumn: "organization_id",
	Columns: []string{
		"id", "organization_id", "vendor_id", "number", "amount", "status",
		"date", "due_date", "notes", "created_at", "updated_at",
	},
	Filterable: []string{"status", "vendor_id", "number"},
	Scan: func(r rowScanner) (*models.Invoice, error) {
		var (
			i       models.Invoice
			org     sql.NullString
			vendor  sql.NullString
			dueDate sql.NullTime
		)
		err := r.Scan(&i.ID, &org, &vendor, &i.Number, &i.Amount, &i.Status,
			&i.Date, &dueDate, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
		if err != nil {
			return nil, err
		}
		i.OrganizationID = org.String
		i.VendorID = vendor.String
		if dueDate.Valid {
			t := dueDate.Time
			i.DueDate = &t
		}
		return &i, nil
	},
	Insert: func(i *models.Invoice) ([]string, []any) {
		var due any
		if i.DueDate != nil {
			due = *i.DueDate
		}
		return []string{"id", "organization_id", "vendor_id", "number", "amount",
				"status", "date", "due_date", "notes", "created_at", "updated_at"},
			[]any{i.ID, nullIfEmpty(i.OrganizationID), nullIfEmpty(i.VendorID), i.Number,
				i.Amount, i.Status, i.Date, due, i.Notes, i.CreatedAt, i.UpdatedAt}
	},
	CheckInsert: func(ctx context.Context, db *sql.DB, i *models.Invoice, scope tenant.Scope) error {
		return checkInvoiceVendorRef(ctx, db, i.VendorID, i.OrganizationID, scope)
	},
	CheckPatch: func(ctx context.Context, db *sql.DB, id string, patch Patch, scope tenant.Scope) error {
		var vendorID *string
		switch p := patch.(type) {
		case InvoicePatch:
			vendorID = p.VendorID
		case *InvoicePatch:
			vendorID = p.VendorID
		default:
			return nil
		}
		if vendorID == nil || *vendorID == "" {
			return nil
		}
		invoiceOrg := scope.OrganizationID()
		if scope.IsUnrestricted() {
			var org sql.NullString
			err := db.QueryRowContext(ctx, "SELECT organization_id FROM invoices WHERE id = ?", id).Scan(&org)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("invoice %s: %w", id, tenant.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("invoice %s organization: %w", id, err)
			}
			invoiceOrg = org.String
		}
		return checkInvoiceVendorRef(ctx, db, *vendorID, invoiceOrg, scope)
	},
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Patches. A patch only carries columns the caller wants changed; a nil
// field is left untouched. Every patch exposes the organization_id the
// client tried to set so the gateway can refuse it.

type OrganizationPatch struct {
	Name         *string          `json:"name"`
	Code         *string          `json:"code"`
	Description  *string          `json:"description"`
	Address      *string          `json:"address"`
	Phone        *string          `json:"phone"`
	Email        *string          `json:"email"`
	TaxRate      *decimal.Decimal `json:"taxRate"`
	Currency     *string          `json:"currency"`
	PaymentTerms *int             `json:"paymentTerms"`
}

func (p OrganizationPatch) Changes() ([]string, []any) {
	var b patchBuilder
	b.str("name", p.Name)
	b.str("code", p.Code)
	b.str("description", p.Description)
	b.str("address", p.Address)
	b.str("phone", p.Phone)
	b.str("email", p.Email)
	if p.TaxRate != nil {
		b.add("tax_rate", *p.TaxRate)
	}
	b.str("currency", p.Currency)
	if p.PaymentTerms != nil {
		b.add("payment_terms", *p.PaymentTerms)
	}
	return b.cols, b.vals
}

// An organization's identity is its primary key; there is no parent tenant
// to reassign.
func (p OrganizationPatch) TouchesOrganization() bool { return false }

type UserPatch struct {
	OrganizationID *string `json:"organizationId"`
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	Role           *string `json:"role"`
}

func (p UserPatch) Changes() ([]string, []any) {
	var b patchBuilder
	b.str("name", p.Name)
	b.str("email", p.Email)
	b.str("phone", p.Phone)
	b.str("role", p.Role)
	return b.cols, b.vals
}

func (p UserPatch) TouchesOrganization() bool { return p.OrganizationID != nil }

type VendorPatch struct {
	OrganizationID *string `json:"organizationId"`
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	Address        *string `json:"address"`
	TaxID          *string `json:"taxId"`
	Active         *bool   `json:"active"`
}

func (p VendorPatch) Changes() ([]string, []any) {
	var b patchBuilder
	b.str("name", p.Name)
	b.str("email", p.Email)
	b.str("phone", p.Phone)
	b.str("address", p.Address)
	b.str("tax_id", p.TaxID)
	if p.Active != nil {
		b.add("active", *p.Active)
	}
	return b.cols, b.vals
}

func (p VendorPatch) TouchesOrganization() bool { return p.OrganizationID != nil }

type InvoicePatch struct {
	OrganizationID *string          `json:"organizationId"`
	VendorID       *string          `json:"vendorId"`
	Number         *string          `json:"number"`
	Amount         *decimal.Decimal `json:"amount"`
	Status         *string          `json:"status"`
	Date           *time.Time       `json:"date"`
	DueDate        *time.Time       `json:"dueDate"`
	Notes          *string          `json:"notes"`
}

func (p InvoicePatch) Changes() ([]string, []any) {
	var b patchBuilder
	b.str("vendor_id", p.VendorID)
	b.str("number", p.Number)
	if p.Amount != nil {
		b.add("amount", *p.Amount)
	}
	b.str("status", p.Status)
	if p.Date != nil {
		b.add("date", *p.Date)
	}
	if p.DueDate != nil {
		b.add("due_date", *p.DueDate)
	}
	b.str("notes", p.Notes)
	return b.cols, b.vals
}

func (p InvoicePatch) TouchesOrganization() bool { return p.OrganizationID != nil }

type patchBuilder struct {
	cols []string
	vals []any
}

func (b *patchBuilder) add(col string, val any) {
	b.cols = append(b.cols, col)
	b.vals = append(b.vals, val)
}

func (b *patchBuilder) str(col string, val *string) {
	if val != nil {
		b.add(col, *val)
	}
}

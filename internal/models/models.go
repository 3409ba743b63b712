package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceworks/billing-core/internal/tenant"
)

// Invoice statuses as stored. Kept in sync with the invoices.status column.
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusSent      = "sent"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// ValidInvoiceStatus reports whether s is a known invoice status.
func ValidInvoiceStatus(s string) bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Organization is the root of tenancy. Its billing-profile fields (tax rate,
// currency, payment terms) are opaque to the isolation layer.
type Organization struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Code         string          `json:"code"`
	Description  string          `json:"description"`
	Address      string          `json:"address"`
	Phone        string          `json:"phone"`
	Email        string          `json:"email"`
	TaxRate      decimal.Decimal `json:"taxRate"`
	Currency     string          `json:"currency"`
	PaymentTerms int             `json:"paymentTerms"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// User belongs to at most one organization. OrganizationID is empty only for
// orphaned rows and for super_admin operators.
type User struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organizationId"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	PasswordHash   string      `json:"-"`
	Role           tenant.Role `json:"role"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Vendor is a tenant-scoped supplier record.
type Vendor struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	TaxID          string    `json:"taxId"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Invoice is a tenant-scoped billing document. VendorID may be empty; when
// set it must reference a vendor in the same organization, anything else is
// an integrity fault.
type Invoice struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	VendorID       string          `json:"vendorId"`
	Number         string          `json:"number"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	Date           time.Time       `json:"date"`
	DueDate        *time.Time      `json:"dueDate"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// UserSession is the server-side session stored in the cache, keyed by the
// opaque token handed to the client at login.
type UserSession struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	OrganizationID string    `json:"organizationId"`
	Role           string    `json:"role"`
	IPAddress      string    `json:"ipAddress"`
	UserAgent      string    `json:"userAgent"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivity   time.Time `json:"lastActivity"`
}

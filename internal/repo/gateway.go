// Package repo is the tenant-scoped data gateway: the only code path allowed
// to issue queries against tenant-scoped entities. Every operation takes an
// explicit tenant.Scope; nothing in this package reads ambient request
// state. Handlers, services, and jobs all go through here, which is what
// keeps a new feature from ever shipping an unscoped query.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/monitoring"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

// Entity is the tenancy surface every stored entity exposes (implemented in
// internal/models).
type Entity interface {
	EntityID() string
	OrganizationRef() string
	SetOrganizationRef(string)
	SetEntityID(string)
	SetTimestamps(time.Time)
}

// Patch is a partial update. TouchesOrganization reporting true fails the
// update with ErrImmutableField before any SQL runs: organization_id is
// fixed at creation for the lifetime of the row.
type Patch interface {
	Changes() (columns []string, values []any)
	TouchesOrganization() bool
}

// ListOptions carries the extra predicates a listing may apply on top of the
// tenant filter.
type ListOptions struct {
	// Filters are exact-match column predicates; only columns whitelisted in
	// the entity descriptor are accepted.
	Filters map[string]string
	// IncludeOrphans makes an unrestricted listing also return rows with no
	// organization. Restricted scopes can never see orphans.
	IncludeOrphans bool
	Limit          int
	Offset         int
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Descriptor describes one entity kind to the generic store. The scoping
// logic itself exists exactly once, in Store; descriptors only carry the
// per-kind table shape.
type Descriptor[T Entity] struct {
	Kind  tenant.EntityKind
	Table string
	// ScopeColumn is the column the tenant filter matches. Organizations are
	// their own tenancy root and scope on "id"; everything else scopes on
	// "organization_id".
	ScopeColumn string
	Columns     []string
	Filterable  []string
	Scan        func(rowScanner) (T, error)
	Insert      func(T) (columns []string, values []any)
	// CheckInsert, when set, validates cross-entity references carried by a
	// new entity. It runs after tenancy stamping, so the entity's organization
	// is final.
	CheckInsert func(ctx context.Context, db *sql.DB, ent T, scope tenant.Scope) error
	// CheckPatch, when set, validates cross-entity references a patch
	// introduces before the UPDATE runs.
	CheckPatch func(ctx context.Context, db *sql.DB, id string, patch Patch, scope tenant.Scope) error
}

func (d Descriptor[T]) scopesOnSelf() bool { return d.ScopeColumn == "id" }

// Store is the generic tenant-scoped store for one entity kind.
type Store[T Entity] struct {
	db   *sql.DB
	log  logger.Logger
	desc Descriptor[T]
}

// Gateway bundles the per-kind stores over one database handle.
type Gateway struct {
	db  *sql.DB
	log logger.Logger

	organizations *Store[*models.Organization]
	users         *Store[*models.User]
	vendors       *Store[*models.Vendor]
	invoices      *Store[*models.Invoice]
}

// New builds the gateway over an opened database handle.
func New(db *sql.DB, log logger.Logger) *Gateway {
	if log == nil {
		log = logger.NewNop()
	}
	return &Gateway{
		db:            db,
		log:           log,
		organizations: &Store[*models.Organization]{db: db, log: log, desc: organizationDescriptor},
		users:         &Store[*models.User]{db: db, log: log, desc: userDescriptor},
		vendors:       &Store[*models.Vendor]{db: db, log: log, desc: vendorDescriptor},
		invoices:      &Store[*models.Invoice]{db: db, log: log, desc: invoiceDescriptor},
	}
}

func (g *Gateway) Organizations() *Store[*models.Organization] { return g.organizations }
func (g *Gateway) Users() *Store[*models.User]                 { return g.users }
func (g *Gateway) Vendors() *Store[*models.Vendor]             { return g.vendors }
func (g *Gateway) Invoices() *Store[*models.Invoice]           { return g.invoices }

// scopeClause renders the tenant filter for a scope. forList additionally
// excludes orphan rows from unrestricted listings; explicit-id operations
// under unrestricted scope apply no filter at all.
func (s *Store[T]) scopeClause(scope tenant.Scope, opts ListOptions, forList bool) (string, []any) {
	if !scope.IsUnrestricted() {
		return s.desc.ScopeColumn + " = ?", []any{scope.OrganizationID()}
	}
	if forList && !s.desc.scopesOnSelf() && !opts.IncludeOrphans {
		return s.desc.ScopeColumn + " IS NOT NULL", nil
	}
	return "", nil
}

// List returns entities visible under scope, newest first.
func (s *Store[T]) List(ctx context.Context, scope tenant.Scope, opts ListOptions) ([]T, error) {
	start := time.Now()

	where := make([]string, 0, 2+len(opts.Filters))
	args := make([]any, 0, 4)
	if clause, cargs := s.scopeClause(scope, opts, true); clause != "" {
		where = append(where, clause)
		args = append(args, cargs...)
	}
	for col, val := range opts.Filters {
		if !contains(s.desc.Filterable, col) {
			return nil, fmt.Errorf("unsupported filter %q for %s", col, s.desc.Kind)
		}
		where = append(where, col+" = ?")
		args = append(args, val)
	}

	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(s.desc.Columns, ", ") + " FROM " + s.desc.Table)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		monitoring.RecordDBOperation("list", s.desc.Kind.String(), time.Since(start), false)
		return nil, fmt.Errorf("list %s: %w", s.desc.Kind, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		ent, err := s.desc.Scan(rows)
		if err != nil {
			monitoring.RecordDBOperation("list", s.desc.Kind.String(), time.Since(start), false)
			return nil, fmt.Errorf("scan %s: %w", s.desc.Kind, err)
		}
		out = append(out, ent)
	}
	if err := rows.Err(); err != nil {
		monitoring.RecordDBOperation("list", s.desc.Kind.String(), time.Since(start), false)
		return nil, fmt.Errorf("list %s: %w", s.desc.Kind, err)
	}
	monitoring.RecordDBOperation("list", s.desc.Kind.String(), time.Since(start), true)
	return out, nil
}

// Get fetches one entity by id under scope. An id that exists in another
// organization reports ErrNotFound, exactly like a missing row, so record
// ids cannot be probed across tenants.
func (s *Store[T]) Get(ctx context.Context, id string, scope tenant.Scope) (T, error) {
	var zero T
	start := time.Now()

	query := "SELECT " + strings.Join(s.desc.Columns, ", ") + " FROM " + s.desc.Table + " WHERE id = ?"
	args := []any{id}
	if clause, cargs := s.scopeClause(scope, ListOptions{}, false); clause != "" {
		query += " AND " + clause
		args = append(args, cargs...)
	}

	ent, err := s.desc.Scan(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		monitoring.RecordDBOperation("get", s.desc.Kind.String(), time.Since(start), true)
		return zero, fmt.Errorf("%s %s: %w", s.desc.Kind, id, tenant.ErrNotFound)
	}
	if err != nil {
		monitoring.RecordDBOperation("get", s.desc.Kind.String(), time.Since(start), false)
		return zero, fmt.Errorf("get %s %s: %w", s.desc.Kind, id, err)
	}
	monitoring.RecordDBOperation("get", s.desc.Kind.String(), time.Since(start), true)
	return ent, nil
}

// Create persists a new entity. Under a restricted scope the organization is
// stamped from the scope, overwriting whatever the client supplied. Under
// unrestricted scope the payload must name a target organization explicitly,
// otherwise the create is ambiguous and fails with ErrInvalidScope.
func (s *Store[T]) Create(ctx context.Context, ent T, scope tenant.Scope) (T, error) {
	var zero T
	start := time.Now()

	if s.desc.scopesOnSelf() {
		// Organizations have no parent tenant; only the cross-tenant
		// operator may create one.
		if !scope.IsUnrestricted() {
			return zero, fmt.Errorf("create %s requires unrestricted scope: %w", s.desc.Kind, tenant.ErrForbidden)
		}
	} else if scope.IsUnrestricted() {
		if ent.OrganizationRef() == "" {
			return zero, fmt.Errorf("create %s: %w", s.desc.Kind, tenant.ErrInvalidScope)
		}
	} else {
		ent.SetOrganizationRef(scope.OrganizationID())
	}

	if s.desc.CheckInsert != nil {
		if err := s.desc.CheckInsert(ctx, s.db, ent, scope); err != nil {
			return zero, fmt.Errorf("create %s: %w", s.desc.Kind, err)
		}
	}

	ent.SetEntityID(uuid.NewString())
	ent.SetTimestamps(time.Now().UTC())

	cols, vals := s.desc.Insert(ent)
	query := "INSERT INTO " + s.desc.Table + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	if _, err := s.db.ExecContext(ctx, query, vals...); err != nil {
		monitoring.RecordDBOperation("create", s.desc.Kind.String(), time.Since(start), false)
		return zero, fmt.Errorf("create %s: %w", s.desc.Kind, err)
	}
	monitoring.RecordDBOperation("create", s.desc.Kind.String(), time.Since(start), true)
	return ent, nil
}

// Update applies a patch as a single conditional UPDATE: the tenant filter
// sits in the WHERE clause of the mutation itself, so a row changing owner
// or disappearing between a check and the write is impossible.
func (s *Store[T]) Update(ctx context.Context, id string, patch Patch, scope tenant.Scope) (T, error) {
	var zero T
	start := time.Now()

	if patch.TouchesOrganization() {
		return zero, fmt.Errorf("update %s %s: %w", s.desc.Kind, id, tenant.ErrImmutableField)
	}
	if s.desc.CheckPatch != nil {
		if err := s.desc.CheckPatch(ctx, s.db, id, patch, scope); err != nil {
			return zero, fmt.Errorf("update %s %s: %w", s.desc.Kind, id, err)
		}
	}

	cols, vals := patch.Changes()
	set := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(vals)+3)
	for i, col := range cols {
		set = append(set, col+" = ?")
		args = append(args, vals[i])
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC())

	query := "UPDATE " + s.desc.Table + " SET " + strings.Join(set, ", ") + " WHERE id = ?"
	args = append(args, id)
	if clause, cargs := s.scopeClause(scope, ListOptions{}, false); clause != "" {
		query += " AND " + clause
		args = append(args, cargs...)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		monitoring.RecordDBOperation("update", s.desc.Kind.String(), time.Since(start), false)
		return zero, fmt.Errorf("update %s %s: %w", s.desc.Kind, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		monitoring.RecordDBOperation("update", s.desc.Kind.String(), time.Since(start), false)
		return zero, fmt.Errorf("update %s %s: %w", s.desc.Kind, id, err)
	}
	if affected == 0 {
		monitoring.RecordDBOperation("update", s.desc.Kind.String(), time.Since(start), true)
		return zero, fmt.Errorf("%s %s: %w", s.desc.Kind, id, tenant.ErrNotFound)
	}
	monitoring.RecordDBOperation("update", s.desc.Kind.String(), time.Since(start), true)
	// Read-back under the same scope. A delete landing between the UPDATE and
	// this read reports ErrNotFound, reflecting the row's state at response
	// time; the mutation itself either fully applied or did not run.
	return s.Get(ctx, id, scope)
}

// Delete removes one entity under scope. The second delete of the same id
// reports ErrNotFound with removed == false, never a crash.
func (s *Store[T]) Delete(ctx context.Context, id string, scope tenant.Scope) (bool, error) {
	start := time.Now()

	query := "DELETE FROM " + s.desc.Table + " WHERE id = ?"
	args := []any{id}
	if clause, cargs := s.scopeClause(scope, ListOptions{}, false); clause != "" {
		query += " AND " + clause
		args = append(args, cargs...)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		monitoring.RecordDBOperation("delete", s.desc.Kind.String(), time.Since(start), false)
		return false, fmt.Errorf("delete %s %s: %w", s.desc.Kind, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		monitoring.RecordDBOperation("delete", s.desc.Kind.String(), time.Since(start), false)
		return false, fmt.Errorf("delete %s %s: %w", s.desc.Kind, id, err)
	}
	monitoring.RecordDBOperation("delete", s.desc.Kind.String(), time.Since(start), true)
	if affected == 0 {
		return false, fmt.Errorf("%s %s: %w", s.desc.Kind, id, tenant.ErrNotFound)
	}
	return true, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

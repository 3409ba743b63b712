package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/invoiceworks/billing-core/internal/config"
)

type Client struct {
	DB *sql.DB
}

func dsnFrom(cfg config.DatabaseConfig) string {
	user := cfg.User
	if user == "" {
		user = "root"
	}
	pass := cfg.Password
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	dbName := cfg.Name
	if dbName == "" {
		dbName = "billing"
	}

	params := url.Values{}
	params.Set("parseTime", "true")
	// Matched rows, not changed rows: the gateway maps RowsAffected() == 0 to
	// ErrNotFound, so a no-op update against an existing row must still
	// count as one matched row.
	params.Set("clientFoundRows", "true")
	if cfg.TLS {
		params.Set("tls", "preferred")
	}
	for k, v := range cfg.Params {
		params.Set(k, v)
	}
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", auth, host, port, dbName, params.Encode())
}

func Connect(cfg config.DatabaseConfig) (*Client, error) {
	dsn := dsnFrom(cfg)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	c := &Client{DB: db}
	if err := c.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Close() error { return c.DB.Close() }

func (c *Client) HealthCheck(ctx context.Context) error {
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	return c.DB.PingContext(ctx)
}

// ensureSchema creates the billing tables if missing. organization_id is
// nullable everywhere it appears: rows without one are orphans and stay
// invisible to organization-scoped reads.
func (c *Client) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS organizations (
            id VARCHAR(36) NOT NULL,
            name VARCHAR(255) NOT NULL,
            code VARCHAR(64) NOT NULL,
            description TEXT,
            address TEXT,
            phone VARCHAR(64),
            email VARCHAR(255),
            tax_rate DECIMAL(8,4) NOT NULL DEFAULT 0,
            currency VARCHAR(8) NOT NULL DEFAULT 'USD',
            payment_terms INT NOT NULL DEFAULT 30,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (id),
            UNIQUE KEY uq_organizations_code (code)
        )`,
		`CREATE TABLE IF NOT EXISTS users (
            id VARCHAR(36) NOT NULL,
            organization_id VARCHAR(36) NULL,
            name VARCHAR(255) NOT NULL,
            email VARCHAR(255) NOT NULL,
            phone VARCHAR(64),
            password_hash VARCHAR(255) NOT NULL,
            role VARCHAR(32) NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (id),
            UNIQUE KEY uq_users_email (email),
            KEY idx_users_organization (organization_id)
        )`,
		`CREATE TABLE IF NOT EXISTS vendors (
            id VARCHAR(36) NOT NULL,
            organization_id VARCHAR(36) NULL,
            name VARCHAR(255) NOT NULL,
            email VARCHAR(255),
            phone VARCHAR(64),
            address TEXT,
            tax_id VARCHAR(64),
            active TINYINT(1) NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (id),
            KEY idx_vendors_organization (organization_id)
        )`,
		`CREATE TABLE IF NOT EXISTS invoices (
            id VARCHAR(36) NOT NULL,
            organization_id VARCHAR(36) NULL,
            vendor_id VARCHAR(36) NULL,
            number VARCHAR(64) NOT NULL,
            amount DECIMAL(12,2) NOT NULL DEFAULT 0,
            status VARCHAR(32) NOT NULL DEFAULT 'draft',
            date DATETIME NOT NULL,
            due_date DATETIME NULL,
            notes TEXT,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (id),
            KEY idx_invoices_organization (organization_id),
            KEY idx_invoices_vendor (vendor_id),
            KEY idx_invoices_status (organization_id, status)
        )`,
	}
	for _, q := range stmts {
		if _, err := c.DB.Exec(q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

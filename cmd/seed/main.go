// Command seed loads a YAML fixture of organizations, users, vendors and
// invoices into the database through the tenant-scoped gateway, under the
// unrestricted scope. Passwords in the fixture are plaintext and hashed on
// the way in; only use it against development databases.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/invoiceworks/billing-core/internal/config"
	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/repo"
	"github.com/invoiceworks/billing-core/internal/storage/mysql"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

type fixture struct {
	Organizations []struct {
		Name         string `yaml:"name"`
		Code         string `yaml:"code"`
		Currency     string `yaml:"currency"`
		TaxRate      string `yaml:"tax_rate"`
		PaymentTerms int    `yaml:"payment_terms"`

		Users []struct {
			Name     string `yaml:"name"`
			Email    string `yaml:"email"`
			Password string `yaml:"password"`
			Role     string `yaml:"role"`
		} `yaml:"users"`

		Vendors []struct {
			Name   string `yaml:"name"`
			Email  string `yaml:"email"`
			TaxID  string `yaml:"tax_id"`
			Active *bool  `yaml:"active"`

			Invoices []struct {
				Number  string `yaml:"number"`
				Amount  string `yaml:"amount"`
				Status  string `yaml:"status"`
				DueDays int    `yaml:"due_days"`
			} `yaml:"invoices"`
		} `yaml:"vendors"`
	} `yaml:"organizations"`

	SuperAdmins []struct {
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"super_admins"`
}

func main() {
	fixturePath := flag.String("fixture", "configs/seed.yaml", "path to the seed fixture")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Seeding billing-core", "fixture", *fixturePath)

	raw, err := os.ReadFile(*fixturePath)
	if err != nil {
		log.Fatalf("Failed to read fixture: %v", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		log.Fatalf("Failed to parse fixture: %v", err)
	}

	db, err := mysql.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	gateway := repo.New(db.DB, logger)
	scope := tenant.Unrestricted()
	ctx := context.Background()

	for _, sa := range fx.SuperAdmins {
		hash, err := bcrypt.GenerateFromPassword([]byte(sa.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password for %s: %v", sa.Email, err)
		}
		// Super admins carry no organization; the gateway requires a target
		// organization for unrestricted creates, so they go in directly.
		if err := insertSuperAdmin(ctx, db, sa.Name, sa.Email, string(hash)); err != nil {
			log.Fatalf("Failed to seed super admin %s: %v", sa.Email, err)
		}
		logger.Info("seeded super admin", "email", sa.Email)
	}

	for _, o := range fx.Organizations {
		taxRate, _ := decimal.NewFromString(o.TaxRate)
		org, err := gateway.Organizations().Create(ctx, &models.Organization{
			Name:         o.Name,
			Code:         o.Code,
			Currency:     o.Currency,
			TaxRate:      taxRate,
			PaymentTerms: o.PaymentTerms,
		}, scope)
		if err != nil {
			log.Fatalf("Failed to seed organization %s: %v", o.Code, err)
		}
		logger.Info("seeded organization", "organization_id", org.ID, "code", org.Code)

		for _, u := range o.Users {
			role, err := tenant.ParseRole(u.Role)
			if err != nil {
				log.Fatalf("Fixture user %s: %v", u.Email, err)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				log.Fatalf("Failed to hash password for %s: %v", u.Email, err)
			}
			if _, err := gateway.Users().Create(ctx, &models.User{
				OrganizationID: org.ID,
				Name:           u.Name,
				Email:          u.Email,
				PasswordHash:   string(hash),
				Role:           role,
			}, scope); err != nil {
				log.Fatalf("Failed to seed user %s: %v", u.Email, err)
			}
		}

		for _, v := range o.Vendors {
			active := true
			if v.Active != nil {
				active = *v.Active
			}
			vendor, err := gateway.Vendors().Create(ctx, &models.Vendor{
				OrganizationID: org.ID,
				Name:           v.Name,
				Email:          v.Email,
				TaxID:          v.TaxID,
				Active:         active,
			}, scope)
			if err != nil {
				log.Fatalf("Failed to seed vendor %s: %v", v.Name, err)
			}

			for _, inv := range v.Invoices {
				amount, _ := decimal.NewFromString(inv.Amount)
				status := inv.Status
				if status == "" {
					status = models.InvoiceStatusDraft
				}
				if !models.ValidInvoiceStatus(status) {
					log.Fatalf("Fixture invoice %s: unknown status %q", inv.Number, status)
				}
				due := time.Now().UTC().AddDate(0, 0, inv.DueDays)
				if _, err := gateway.Invoices().Create(ctx, &models.Invoice{
					OrganizationID: org.ID,
					VendorID:       vendor.ID,
					Number:         inv.Number,
					Amount:         amount,
					Status:         status,
					Date:           time.Now().UTC(),
					DueDate:        &due,
				}, scope); err != nil {
					log.Fatalf("Failed to seed invoice %s: %v", inv.Number, err)
				}
			}
		}
	}

	logger.Info("Seed complete")
}

func insertSuperAdmin(ctx context.Context, db *mysql.Client, name, email, hash string) error {
	now := time.Now().UTC()
	_, err := db.DB.ExecContext(ctx,
		`INSERT INTO users (id, organization_id, name, email, phone, password_hash, role, created_at, updated_at)
         VALUES (?, NULL, ?, ?, '', ?, ?, ?, ?)`,
		uuid.NewString(), name, email, hash, tenant.RoleSuperAdmin.String(), now, now)
	return err
}

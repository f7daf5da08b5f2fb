package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	principaldomain "tenant-auth-engine/internal/principal/domain"
	"tenant-auth-engine/internal/tenant/domain"
)

// Defaults applied to tenants provisioned on federated first login.
const (
	defaultPlan = "free"
)

var defaultModules = []string{"basic"}

// PostgresRepository stores tenants in the organizations table and provisions
// federated admins across organizations and organization_admins.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository returns a tenant repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the tenant for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var (
		t         domain.Tenant
		status    string
		createdBy *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, db_name, status, subscription_plan, enabled_modules, created_by, created_at
		 FROM organizations WHERE id = $1`, id).Scan(
		&t.ID, &t.Name, &t.DBName, &status, &t.Plan, &t.Modules, &createdBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Status = domain.Status(status)
	if createdBy != nil {
		t.CreatedBy = *createdBy
	}
	return &t, nil
}

// Create persists the tenant.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO organizations (id, name, db_name, status, subscription_plan, enabled_modules, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.DBName, t.Status, t.Plan, t.Modules, nullable(t.CreatedBy), t.CreatedAt)
	return err
}

// ProvisionFederatedAdmin creates the admin principal, its default tenant,
// and the binding inside one transaction. A failure at any step rolls the
// whole provisioning back.
func (r *PostgresRepository) ProvisionFederatedAdmin(ctx context.Context, email, name, pictureURL string) (*principaldomain.Principal, *domain.Tenant, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant: begin provisioning: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	p := &principaldomain.Principal{
		ID:         uuid.New().String(),
		Email:      email,
		Name:       name,
		Role:       principaldomain.RoleAdmin,
		PictureURL: pictureURL,
		Provider:   principaldomain.ProviderGoogle,
		Active:     true,
		CreatedAt:  now,
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO organization_admins (id, email, name, password_hash, auth_provider, picture_url, is_active, created_at)
		 VALUES ($1, $2, $3, NULL, $4, $5, TRUE, $6)`,
		p.ID, p.Email, p.Name, p.Provider, p.PictureURL, p.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant: create federated admin: %w", err)
	}

	t := &domain.Tenant{
		ID:        uuid.New().String(),
		Name:      defaultTenantName(name, email),
		Status:    domain.StatusActive,
		Plan:      defaultPlan,
		Modules:   defaultModules,
		CreatedBy: p.ID,
		CreatedAt: now,
	}
	t.DBName = "org_" + strings.ReplaceAll(t.ID, "-", "")
	_, err = tx.Exec(ctx,
		`INSERT INTO organizations (id, name, db_name, status, subscription_plan, enabled_modules, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.DBName, t.Status, t.Plan, t.Modules, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant: create default tenant: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE organization_admins SET organization_id = $1 WHERE id = $2`, t.ID, p.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant: bind admin to tenant: %w", err)
	}
	p.TenantID = t.ID

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("tenant: commit provisioning: %w", err)
	}
	return p, t, nil
}

func defaultTenantName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name + "'s Organization"
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at] + "'s Organization"
	}
	return "New Organization"
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenant-auth-engine/internal/principal/domain"
)

// PostgresRepository resolves principals from the superadmins and
// organization_admins tables in the system store.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository returns a principal repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByEmail returns the principal for email, or nil if neither store matches.
// The superadmin store is checked first; a match there short-circuits the
// organization-admin lookup.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	p, err := r.findSuperadmin(ctx,
		`SELECT id, email, name, password_hash, is_active, last_login, created_at
		 FROM superadmins WHERE email = $1`, email)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}
	return r.findAdmin(ctx,
		`SELECT id, email, name, password_hash, auth_provider, picture_url,
		        organization_id, is_active, last_login, created_at
		 FROM organization_admins WHERE email = $1`, email)
}

// GetByID returns the principal for id within the store selected by role, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string, role domain.Role) (*domain.Principal, error) {
	if role == domain.RoleSuperadmin {
		return r.findSuperadmin(ctx,
			`SELECT id, email, name, password_hash, is_active, last_login, created_at
			 FROM superadmins WHERE id = $1`, id)
	}
	return r.findAdmin(ctx,
		`SELECT id, email, name, password_hash, auth_provider, picture_url,
		        organization_id, is_active, last_login, created_at
		 FROM organization_admins WHERE id = $1`, id)
}

// TouchLastLogin sets last_login to now on the row selected by role. Returns
// an error only for database failures; a missing row is not an error.
func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string, role domain.Role) error {
	table := "organization_admins"
	if role == domain.RoleSuperadmin {
		table = "superadmins"
	}
	_, err := r.db.Exec(ctx,
		"UPDATE "+table+" SET last_login = NOW() WHERE id = $1", id)
	return err
}

func (r *PostgresRepository) findSuperadmin(ctx context.Context, query, arg string) (*domain.Principal, error) {
	var (
		p         domain.Principal
		hash      *string
		lastLogin *time.Time
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.Name, &hash, &p.Active, &lastLogin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if hash != nil {
		p.PasswordHash = *hash
	}
	p.LastLogin = lastLogin
	p.Role = domain.RoleSuperadmin
	p.Provider = domain.ProviderLocal
	return &p, nil
}

func (r *PostgresRepository) findAdmin(ctx context.Context, query, arg string) (*domain.Principal, error) {
	var (
		p         domain.Principal
		hash      *string
		orgID     *string
		lastLogin *time.Time
		provider  string
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.Name, &hash, &provider, &p.PictureURL,
		&orgID, &p.Active, &lastLogin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if hash != nil {
		p.PasswordHash = *hash
	}
	if orgID != nil {
		p.TenantID = *orgID
	}
	p.LastLogin = lastLogin
	p.Role = domain.RoleAdmin
	p.Provider = domain.AuthProvider(provider)
	return &p, nil
}

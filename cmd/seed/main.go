// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev superadmin (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"tenant-auth-engine/internal/config"
	"tenant-auth-engine/internal/db"
	"tenant-auth-engine/internal/security"
)

const (
	devSuperadminEmail = "dev@example.com"
	devAdminEmail      = "admin@acme.example.com"
	devPassword        = "password123"
	devOrgName         = "Acme Trading Co"
	devOrgDBName       = "org_acme_dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM superadmins WHERE email = $1)`,
		devSuperadminEmail,
	).Scan(&exists)
	if err != nil {
		log.Fatalf("seed: check existing: %v", err)
	}
	if exists {
		log.Printf("seed: %s already present, nothing to do", devSuperadminEmail)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("seed: begin: %v", err)
	}
	defer tx.Rollback(ctx)

	superadminID := uuid.New().String()
	if _, err := tx.Exec(ctx,
		`INSERT INTO superadmins (id, email, name, password_hash, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)`,
		superadminID, devSuperadminEmail, "Dev Superadmin", hash,
	); err != nil {
		log.Fatalf("seed: superadmin: %v", err)
	}

	orgID := uuid.New().String()
	if _, err := tx.Exec(ctx,
		`INSERT INTO organizations (id, name, db_name, status, subscription_plan, enabled_modules, created_by)
		 VALUES ($1, $2, $3, 'active', 'standard', $4, $5)`,
		orgID, devOrgName, devOrgDBName, []string{"basic", "banking", "purchases"}, superadminID,
	); err != nil {
		log.Fatalf("seed: organization: %v", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO organization_admins (id, email, name, password_hash, auth_provider, organization_id, is_active)
		 VALUES ($1, $2, $3, $4, 'local', $5, TRUE)`,
		uuid.New().String(), devAdminEmail, "Acme Admin", hash, orgID,
	); err != nil {
		log.Fatalf("seed: organization admin: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("seed: commit: %v", err)
	}

	log.Printf("seed: created superadmin %s, organization %q (%s), admin %s; password %q",
		devSuperadminEmail, devOrgName, orgID, devAdminEmail, devPassword)
}

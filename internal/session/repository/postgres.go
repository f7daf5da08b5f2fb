package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenant-auth-engine/internal/session/domain"
)

// PostgresRepository stores sessions in the login_sessions table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository returns a session repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the session row.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO login_sessions (id, principal_id, tenant_id, token, role, login_method, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.PrincipalID, s.TenantID, s.Token, s.Role, s.Method, s.ExpiresAt, s.CreatedAt)
	return err
}

// GetLiveByToken returns the unexpired session for token, or nil if none exists.
func (r *PostgresRepository) GetLiveByToken(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx,
		`SELECT id, principal_id, tenant_id, token, role, login_method, expires_at, created_at
		 FROM login_sessions
		 WHERE token = $1 AND expires_at > $2`,
		token, now).Scan(&s.ID, &s.PrincipalID, &s.TenantID, &s.Token, &s.Role, &s.Method, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// InvalidateByToken deletes the session row for token; deleting an unknown
// token is a no-op.
func (r *PostgresRepository) InvalidateByToken(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM login_sessions WHERE token = $1`, token)
	return err
}

// DeleteExpired removes sessions that expired before cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM login_sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

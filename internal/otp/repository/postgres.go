package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenant-auth-engine/internal/otp/domain"
)

// PostgresRepository stores OTP challenges in the otp_challenges table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository returns an OTP challenge repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the challenge.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO otp_challenges (id, identifier, code_hash, expires_at, used, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Identifier, c.CodeHash, c.ExpiresAt, c.Used, c.CreatedAt)
	return err
}

// NewestLive returns the most recently created unused, unexpired challenge
// for identifier, or nil if none exists.
func (r *PostgresRepository) NewestLive(ctx context.Context, identifier string, now time.Time) (*domain.Challenge, error) {
	var c domain.Challenge
	err := r.db.QueryRow(ctx,
		`SELECT id, identifier, code_hash, expires_at, used, created_at
		 FROM otp_challenges
		 WHERE identifier = $1 AND used = FALSE AND expires_at > $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		identifier, now).Scan(&c.ID, &c.Identifier, &c.CodeHash, &c.ExpiresAt, &c.Used, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Consume marks the challenge used only if it is still unused, and reports
// whether this caller won the transition by checking the affected-row count.
func (r *PostgresRepository) Consume(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE otp_challenges SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpired removes challenges that expired before cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM otp_challenges WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

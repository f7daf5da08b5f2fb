package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger stores attempt records in the login_attempts table.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger returns an attempt ledger backed by the given pool.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// CountSince returns the number of attempt records for identifier at or after since.
func (l *PostgresLedger) CountSince(ctx context.Context, identifier string, since time.Time) (int, error) {
	var n int
	err := l.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM login_attempts WHERE identifier = $1 AND created_at >= $2`,
		identifier, since).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Record appends one attempt record for identifier.
func (l *PostgresLedger) Record(ctx context.Context, identifier string) error {
	_, err := l.db.Exec(ctx,
		`INSERT INTO login_attempts (identifier) VALUES ($1)`, identifier)
	return err
}

// Clear deletes all attempt records for identifier.
func (l *PostgresLedger) Clear(ctx context.Context, identifier string) error {
	_, err := l.db.Exec(ctx,
		`DELETE FROM login_attempts WHERE identifier = $1`, identifier)
	return err
}

// PruneOlderThan deletes attempt records older than cutoff and returns how many were removed.
func (l *PostgresLedger) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := l.db.Exec(ctx,
		`DELETE FROM login_attempts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

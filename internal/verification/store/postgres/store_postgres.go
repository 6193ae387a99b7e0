// Package postgres persists verification records in PostgreSQL behind a pgx
// connection pool. Save is an upsert on user_id so resubmissions overwrite
// the facet they re-enter.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aegis/internal/verification"
	"aegis/pkg/sentinel"
)

// PostgresStore implements the verification store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New constructs a pool-backed verification store.
func New(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Open creates and pings a pgx connection pool.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// Get returns the record for one user.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*verification.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, age_verified, cert_verified, cert_submitted,
		       COALESCE(cert_type, ''), cert_expiry,
		       COALESCE(rejection_reason, ''), created_at, updated_at
		FROM verification_records
		WHERE user_id = $1
	`, userID)

	var r verification.Record
	err := row.Scan(&r.UserID, &r.AgeVerified, &r.CertVerified, &r.CertSubmitted,
		&r.CertType, &r.CertExpiry, &r.RejectionReason, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return &r, nil
}

// Save upserts the record on user_id.
func (s *PostgresStore) Save(ctx context.Context, record *verification.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verification_records
			(user_id, age_verified, cert_verified, cert_submitted, cert_type, cert_expiry, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			age_verified = EXCLUDED.age_verified,
			cert_verified = EXCLUDED.cert_verified,
			cert_submitted = EXCLUDED.cert_submitted,
			cert_type = EXCLUDED.cert_type,
			cert_expiry = EXCLUDED.cert_expiry,
			rejection_reason = EXCLUDED.rejection_reason,
			updated_at = EXCLUDED.updated_at
	`, record.UserID, record.AgeVerified, record.CertVerified, record.CertSubmitted,
		string(record.CertType), record.CertExpiry, record.RejectionReason,
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

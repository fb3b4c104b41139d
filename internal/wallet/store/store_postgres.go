package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"idwallet/pkg/platform/sentinel"
)

// PostgresRecordStore persists encrypted records in the identity_wallet
// table, one blob per user. Parameterized queries only.
//
// Schema (external collaborator):
//
//	CREATE TABLE identity_wallet (
//	    user_id       UUID PRIMARY KEY REFERENCES users(id),
//	    identity_card BYTEA NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresRecordStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRecordStore(pool *pgxpool.Pool) *PostgresRecordStore {
	return &PostgresRecordStore{pool: pool}
}

func (s *PostgresRecordStore) Upsert(ctx context.Context, ownerID uuid.UUID, ciphertext []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identity_wallet (user_id, identity_card, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET identity_card = EXCLUDED.identity_card, updated_at = now()`,
		ownerID, ciphertext,
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) Find(ctx context.Context, ownerID uuid.UUID) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT identity_card FROM identity_wallet WHERE user_id = $1`,
		ownerID,
	).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return blob, nil
}

func (s *PostgresRecordStore) Exists(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM identity_wallet WHERE user_id = $1)`,
		ownerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("record exists: %w", err)
	}
	return exists, nil
}

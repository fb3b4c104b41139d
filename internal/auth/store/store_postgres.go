package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"idwallet/internal/auth/models"
	"idwallet/pkg/platform/sentinel"
)

// PostgresUserStore persists accounts in the users table. Every query is
// parameterized; caller-asserted identifiers never reach SQL as text.
//
// Schema (external collaborator):
//
//	CREATE TABLE users (
//	    id            UUID PRIMARY KEY,
//	    username      TEXT UNIQUE NOT NULL,
//	    email         TEXT UNIQUE NOT NULL,
//	    phone_number  TEXT UNIQUE,
//	    password_hash TEXT NOT NULL,
//	    role          TEXT NOT NULL DEFAULT 'User',
//	    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

func (s *PostgresUserStore) Create(ctx context.Context, user models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, phone_number, password_hash, role, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`,
		user.ID, user.Username, user.Email, user.Phone, user.PasswordHash, user.Role, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindByLogin(ctx context.Context, login string) (models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, username, email, COALESCE(phone_number, ''), password_hash, role, created_at
		 FROM users
		 WHERE username = $1 OR email = $1 OR phone_number = $1`,
		login,
	))
}

func (s *PostgresUserStore) FindByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, username, email, COALESCE(phone_number, ''), password_hash, role, created_at
		 FROM users
		 WHERE id = $1`,
		id,
	))
}

func (s *PostgresUserStore) scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Phone,
		&user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

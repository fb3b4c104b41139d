package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"idwallet/internal/auth/models"
)

// UserStore persists accounts. Implementations return sentinel errors
// (pkg/platform/sentinel) for not-found and conflict facts.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	// FindByLogin resolves a caller-asserted identifier - username, email,
	// or phone number - to the stable account.
	FindByLogin(ctx context.Context, login string) (models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

// SessionStore is the session table. It is the sole source of truth for
// "is this caller authenticated"; tokens only reference rows here.
type SessionStore interface {
	Save(ctx context.Context, session models.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (models.Session, error)
	// Delete is idempotent on unknown ids.
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteExpired removes every session past its expiry at now and
	// returns how many were swept.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	// Count reports how many sessions are currently held, expired or not.
	// Backends that evict on their own make this the only trustworthy
	// source for a live-session gauge.
	Count(ctx context.Context) (int, error)
}

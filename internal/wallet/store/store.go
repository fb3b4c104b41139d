package store

import (
	"context"

	"github.com/google/uuid"
)

// RecordStore persists one encrypted identity record per user. Only
// ciphertext crosses this interface; plaintext stays behind the wallet
// service's encryption boundary.
type RecordStore interface {
	// Upsert inserts the record if absent, replaces it if present. A
	// completed Upsert is visible to any subsequent Find for the same
	// owner, regardless of which connection issues either.
	Upsert(ctx context.Context, ownerID uuid.UUID, ciphertext []byte) error
	// Find returns sentinel.ErrNotFound when the owner has no record yet.
	Find(ctx context.Context, ownerID uuid.UUID) ([]byte, error)
	// Exists reports whether the owner has a record without fetching it.
	Exists(ctx context.Context, ownerID uuid.UUID) (bool, error)
}
